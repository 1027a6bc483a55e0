// ABOUTME: Plugin directory resolver decoding free-text chat replies into records
// ABOUTME: Strict line-positional grammar; any deviation is a hard decode error

package carter

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Plugin is a capability the remote agent exposes, discovered through the
// slash-command convention. Description is nil when the info reply carried no
// Description field.
type Plugin struct {
	ID          string
	Name        string
	Description *string
}

// DecodeError reports a plugin reply that does not match the expected
// line-positional grammar. The remote protocol is a text UI repurposed as a
// machine interface; a reply that deviates from the grammar is a breaking
// protocol change, not something to guess around.
type DecodeError struct {
	Command string // the slash command whose reply failed to decode
	Line    string // the offending line, empty when a line was missing entirely
	Reason  string
}

func (e *DecodeError) Error() string {
	if e.Line == "" {
		return fmt.Sprintf("decoding %q reply: %s", e.Command, e.Reason)
	}
	return fmt.Sprintf("decoding %q reply: %s (line %q)", e.Command, e.Reason, e.Line)
}

// PluginList enumerates the agent's plugin catalogue. It issues "/plugin list"
// over the chat channel with speech disabled, then resolves each listed id
// through PluginInfo, one sequential round trip per plugin.
//
// ErrNoReply means the agent does not support the plugin subsystem. Any
// malformed line or failed info lookup fails the whole listing: a visibly
// failed catalogue beats a silently truncated one. Records come back in reply
// order.
func (c *Client) PluginList(ctx context.Context, cred Credential) ([]Plugin, error) {
	resp, err := c.chat(ctx, cred, "/plugin list", false)
	if err != nil {
		return nil, err
	}
	if resp.Output == nil {
		return nil, ErrNoReply
	}

	lines := strings.Split(resp.Output.Text, "\n")
	if len(lines) > 0 {
		// The first line is always a header ("Here are the plugins:").
		lines = lines[1:]
	}

	var plugins []Plugin
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		rawID, _, found := strings.Cut(line, " - ")
		if !found {
			return nil, &DecodeError{
				Command: "/plugin list",
				Line:    line,
				Reason:  `missing " - " separator`,
			}
		}
		id := strings.TrimSpace(rawID)

		info, err := c.PluginInfo(ctx, cred, id)
		if err != nil {
			// A listed plugin whose info lookup comes back empty is a
			// protocol failure of the listing, not the list-level
			// "subsystem unsupported" condition.
			if errors.Is(err, ErrNoReply) {
				return nil, &DecodeError{
					Command: "/plugin info " + id,
					Reason:  "plugin info returned no output",
				}
			}
			return nil, fmt.Errorf("resolving plugin %q: %w", id, err)
		}
		plugins = append(plugins, *info)
	}

	return plugins, nil
}

// PluginInfo fetches one plugin's metadata via "/plugin info <id>". The reply
// grammar has three zones:
//
//	line 1:  decorative markup around the canonical id, "... #<id>: ..."
//	line 2:  "<label>: <display name>"
//	rest:    "Key: Value" pairs, of which only Description is retained
//
// ErrNoReply means the agent produced no output for the lookup. A reply with
// fewer lines than the grammar expects, or a line that does not split as
// required, yields a DecodeError.
func (c *Client) PluginInfo(ctx context.Context, cred Credential, id string) (*Plugin, error) {
	command := "/plugin info " + id

	resp, err := c.chat(ctx, cred, command, false)
	if err != nil {
		return nil, err
	}
	if resp.Output == nil {
		return nil, ErrNoReply
	}

	lines := strings.Split(resp.Output.Text, "\n")
	if len(lines) < 2 {
		return nil, &DecodeError{Command: command, Reason: "expected at least an id line and a name line"}
	}

	// Zone 1: the id sits between '#' markers; stripping ':' recovers it
	// independent of whatever decoration the remote wraps around it.
	idFields := strings.Split(lines[0], "#")
	if len(idFields) < 2 {
		return nil, &DecodeError{Command: command, Line: lines[0], Reason: "missing '#'-delimited id"}
	}
	canonicalID := strings.ReplaceAll(idFields[1], ":", "")

	// Zone 2: everything after the first ": " is the display name.
	_, name, found := strings.Cut(lines[1], ": ")
	if !found {
		return nil, &DecodeError{Command: command, Line: lines[1], Reason: "missing name separator"}
	}

	// Zone 3: metadata pairs. Unknown keys are ignored so new fields on the
	// remote side do not break decoding.
	var description *string
	for _, line := range lines[2:] {
		key, value, found := strings.Cut(line, ": ")
		if !found {
			continue
		}
		if strings.TrimSpace(key) == "Description" {
			v := strings.TrimSpace(value)
			description = &v
		}
	}

	return &Plugin{
		ID:          canonicalID,
		Name:        name,
		Description: description,
	}, nil
}

// ABOUTME: Agent protocol operations (chat, opener, personalise) and reply types
// ABOUTME: Each operation builds a fixed envelope and delegates to the transport

package carter

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoReply is returned when the remote agent produced a well-formed reply
// with no output. This is a legitimate condition, not a transport or decode
// failure: callers that need a reply treat it as fatal for their operation,
// callers probing optional subsystems treat it as absence.
var ErrNoReply = errors.New("agent returned no output")

// Credential identifies one agent/conversation scope for a single remote call.
// It is supplied per call and never persisted by this package.
type Credential struct {
	Key    string
	UserID string
}

// ChatOutput is the agent's reply. Audio is an optional encoded voice
// rendering, passed through opaque and never parsed.
type ChatOutput struct {
	Text  string  `json:"text"`
	Audio *string `json:"audio"`
}

// ForcedBehaviour is a directive the caller layer may act on. The client only
// transports it.
type ForcedBehaviour struct {
	Name string `json:"name"`
}

// AgentDescriptor describes the remote persona as reported in a chat reply.
type AgentDescriptor struct {
	Name  string  `json:"name"`
	Image *string `json:"image"`
}

// ChatResponse is the reply to a conversational turn. Output is nil when the
// agent produced no reply; that is a soft failure, not a decode error.
type ChatResponse struct {
	Output           *ChatOutput       `json:"output"`
	Input            *string           `json:"input"`
	ForcedBehaviours []ForcedBehaviour `json:"forced_behaviours"`
	Agent            *AgentDescriptor  `json:"agent"`
}

// OpenerResponse is the reply to a conversation-opening request. Only the
// output is meaningful, and it may legitimately be absent.
type OpenerResponse struct {
	Output *ChatOutput `json:"output"`
}

// PersonaliseResponse is the reply to a persona-shaping request. Unlike chat
// and opener, the personalise endpoint always returns output; its absence is
// an error, not a soft condition.
type PersonaliseResponse struct {
	Output ChatOutput `json:"output"`
}

// chatEnvelope is the request body shared by the chat and personalise
// endpoints. The opener envelope is separate because it carries neither text
// nor a speak flag.
type chatEnvelope struct {
	Key    string `json:"key"`
	Text   string `json:"text"`
	UserID string `json:"user_id"`
	Speak  bool   `json:"speak"`
}

type openerEnvelope struct {
	Key    string `json:"key"`
	UserID string `json:"user_id"`
}

// Chat sends one conversational turn. Empty text is forwarded as-is; the
// remote decides what to do with it.
func (c *Client) Chat(ctx context.Context, cred Credential, text string) (*ChatResponse, error) {
	return c.chat(ctx, cred, text, true)
}

// chat is the shared implementation behind Chat and the plugin directory
// operations, which disable speech synthesis for machine-consumed replies.
func (c *Client) chat(ctx context.Context, cred Credential, text string, speak bool) (*ChatResponse, error) {
	envelope := chatEnvelope{
		Key:    cred.Key,
		Text:   text,
		UserID: cred.UserID,
		Speak:  speak,
	}
	return post[ChatResponse](ctx, c, "api/chat", envelope)
}

// Opener requests an agent-initiated message that starts a conversation with
// no preceding user input.
func (c *Client) Opener(ctx context.Context, cred Credential) (*OpenerResponse, error) {
	envelope := openerEnvelope{
		Key:    cred.Key,
		UserID: cred.UserID,
	}
	return post[OpenerResponse](ctx, c, "api/opener", envelope)
}

// Personalise sends a tone/persona-shaping turn. The endpoint contract
// requires output to be present.
func (c *Client) Personalise(ctx context.Context, cred Credential, text string) (*PersonaliseResponse, error) {
	envelope := chatEnvelope{
		Key:    cred.Key,
		Text:   text,
		UserID: cred.UserID,
		Speak:  true,
	}
	resp, err := post[personaliseReply](ctx, c, "api/personalise", envelope)
	if err != nil {
		return nil, err
	}
	if resp.Output == nil {
		return nil, fmt.Errorf("decoding api/personalise response: missing output")
	}
	return &PersonaliseResponse{Output: *resp.Output}, nil
}

// personaliseReply is the decode target for personalise; the pointer lets the
// required-field check distinguish a missing output from an empty one.
type personaliseReply struct {
	Output *ChatOutput `json:"output"`
}

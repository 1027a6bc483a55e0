// ABOUTME: Entry point for the carter CLI
// ABOUTME: Manages local agents and conversations, and talks to the Carter API

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/slowlife01/carterclient/internal/carter"
	"github.com/slowlife01/carterclient/internal/config"
	"github.com/slowlife01/carterclient/internal/conversation"
	"github.com/slowlife01/carterclient/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

func usage() {
	fmt.Println("Usage: carter <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  init                       Create a default config file")
	fmt.Println("  agent add <name> <key>     Register a new agent")
	fmt.Println("  agent update <id> <name> <key>  Change an agent's name and key")
	fmt.Println("  agent list                 List registered agents")
	fmt.Println("  agent rm <id>              Remove an agent")
	fmt.Println("  agent select <id>          Make an agent the active one")
	fmt.Println("  chats                      List the active agent's conversations")
	fmt.Println("  new [title]                Start a conversation (agent speaks first)")
	fmt.Println("  send <chat-id> <text>      Send one turn in a conversation")
	fmt.Println("  show <chat-id>             Print a conversation's history")
	fmt.Println("  rm <chat-id>               Delete a conversation")
	fmt.Println("  plugins <chat-id>          List the agent's plugins")
	fmt.Println("  personalise <chat-id> <text>  Send a persona-shaping message")
	fmt.Println()
	fmt.Printf("version: %s\n", version)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "init":
		err = runInit()
	case "agent":
		err = runAgent(ctx, os.Args[2:])
	case "chats":
		err = runChats(ctx)
	case "new":
		err = runNew(ctx, os.Args[2:])
	case "send":
		err = runSend(ctx, os.Args[2:])
	case "show":
		err = runShow(ctx, os.Args[2:])
	case "rm":
		err = runRemoveChat(ctx, os.Args[2:])
	case "plugins":
		err = runPlugins(ctx, os.Args[2:])
	case "personalise":
		err = runPersonalise(ctx, os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

const defaultConfig = `# carterclient configuration
api:
  # base_url: "https://api.carterlabs.ai"

database:
  path: "${XDG_DATA_HOME}/carter/library.db"

logging:
  level: "info"
  format: "text"
`

func runInit() error {
	path := config.DefaultPath()
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists at %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultConfig), 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	color.New(color.FgGreen).Print("✓ ")
	fmt.Printf("Wrote %s\n", path)
	return nil
}

// app bundles everything a command needs after setup
type app struct {
	cfg     *config.Config
	store   *store.SQLiteStore
	client  *carter.Client
	service *conversation.Service
}

func setup() (*app, error) {
	cfg := config.Default()
	if info, err := os.Stat(config.DefaultPath()); err == nil && !info.IsDir() {
		loaded, err := config.Load(config.DefaultPath())
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	setupLogger(cfg.Logging)

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	var opts []carter.Option
	if cfg.API.BaseURL != "" {
		opts = append(opts, carter.WithBaseURL(cfg.API.BaseURL))
	}
	client := carter.New(opts...)

	return &app{
		cfg:     cfg,
		store:   s,
		client:  client,
		service: conversation.New(client, s, nil),
	}, nil
}

func (a *app) Close() {
	a.store.Close()
}

func setupLogger(cfg config.LoggingConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// credential builds the per-call credential for a conversation: the agent's
// key plus the conversation id as the remote user scope, so each conversation
// is an independent thread on the remote side.
func (a *app) credential(ctx context.Context, chatID string) (carter.Credential, *store.Conversation, error) {
	conv, err := a.store.GetConversation(ctx, chatID)
	if err != nil {
		return carter.Credential{}, nil, fmt.Errorf("looking up conversation: %w", err)
	}
	agent, err := a.store.GetAgent(ctx, conv.AgentID)
	if err != nil {
		return carter.Credential{}, nil, fmt.Errorf("looking up agent: %w", err)
	}
	return carter.Credential{Key: agent.Key, UserID: conv.ID}, conv, nil
}

func runAgent(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: carter agent add|update|list|rm|select")
	}

	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	switch args[0] {
	case "add":
		if len(args) != 3 {
			return errors.New("usage: carter agent add <name> <key>")
		}
		agent := &store.Agent{
			ID:        uuid.New().String(),
			Name:      args[1],
			Key:       args[2],
			CreatedAt: time.Now(),
		}
		if err := a.store.CreateAgent(ctx, agent); err != nil {
			return err
		}
		fmt.Printf("Added agent %s (%s)\n", agent.Name, agent.ID)
		return nil

	case "update":
		if len(args) != 4 {
			return errors.New("usage: carter agent update <id> <name> <key>")
		}
		agent := &store.Agent{
			ID:   args[1],
			Name: args[2],
			Key:  args[3],
		}
		if err := a.store.UpdateAgent(ctx, agent); err != nil {
			return err
		}
		fmt.Printf("Updated agent %s\n", agent.Name)
		return nil

	case "list":
		agents, err := a.store.ListAgents(ctx)
		if err != nil {
			return err
		}
		if len(agents) == 0 {
			fmt.Println("No agents registered. Add one with: carter agent add <name> <key>")
			return nil
		}
		for _, agent := range agents {
			marker := "  "
			if agent.IsSelected {
				marker = color.GreenString("* ")
			}
			fmt.Printf("%s%s  %s\n", marker, agent.ID, agent.Name)
		}
		return nil

	case "rm":
		if len(args) != 2 {
			return errors.New("usage: carter agent rm <id>")
		}
		if err := a.store.DeleteAgent(ctx, args[1]); err != nil {
			return err
		}
		fmt.Println("Agent removed")
		return nil

	case "select":
		if len(args) != 2 {
			return errors.New("usage: carter agent select <id>")
		}
		agent, err := a.store.SetSelectedAgent(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Selected agent %s\n", agent.Name)
		return nil

	default:
		return fmt.Errorf("unknown agent command: %s", args[0])
	}
}

func runChats(ctx context.Context) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	agent, err := a.store.GetSelectedAgent(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errors.New("no agent selected; run: carter agent select <id>")
		}
		return err
	}

	conversations, err := a.store.ListConversations(ctx, agent.ID)
	if err != nil {
		return err
	}
	if len(conversations) == 0 {
		fmt.Printf("No conversations with %s yet. Start one with: carter new\n", agent.Name)
		return nil
	}

	for _, conv := range conversations {
		fmt.Printf("%s  %s\n", conv.ID, color.New(color.Bold).Sprint(conv.Title))
		if conv.LastMessage != nil {
			fmt.Printf("    %s\n", color.HiBlackString(conv.LastMessage.Content))
		}
	}
	return nil
}

func runNew(ctx context.Context, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	agent, err := a.store.GetSelectedAgent(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errors.New("no agent selected; run: carter agent select <id>")
		}
		return err
	}

	title := "New conversation"
	if len(args) > 0 {
		title = args[0]
	}

	conv := &store.Conversation{
		ID:        uuid.New().String(),
		Title:     title,
		AgentID:   agent.ID,
		CreatedAt: time.Now(),
	}
	if err := a.store.CreateConversation(ctx, conv); err != nil {
		return err
	}

	cred := carter.Credential{Key: agent.Key, UserID: conv.ID}
	resp, err := a.service.RecordOpener(ctx, conv.ID, cred)
	if err != nil {
		if errors.Is(err, carter.ErrNoReply) {
			// The conversation exists; the agent just has nothing to open with.
			fmt.Printf("Created conversation %s\n", conv.ID)
			return nil
		}
		return err
	}

	fmt.Printf("Created conversation %s\n", conv.ID)
	printAgentLine(agent.Name, resp.Output.Text)
	return nil
}

func runSend(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: carter send <chat-id> <text>")
	}

	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	cred, conv, err := a.credential(ctx, args[0])
	if err != nil {
		return err
	}

	resp, err := a.service.RecordTurn(ctx, conv.ID, cred, args[1])
	if err != nil {
		return err
	}

	name := "agent"
	if resp.Agent != nil {
		name = resp.Agent.Name
	}
	printAgentLine(name, resp.Output.Text)

	for _, behaviour := range resp.ForcedBehaviours {
		fmt.Printf("%s %s\n", color.YellowString("▶"), behaviour.Name)
	}
	return nil
}

func runShow(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: carter show <chat-id>")
	}

	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	conv, err := a.store.GetConversation(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("%s\n\n", color.New(color.Bold).Sprint(conv.Title))
	for _, msg := range conv.Messages {
		if msg.IsFromAgent {
			printAgentLine("agent", msg.Content)
		} else {
			fmt.Printf("%s %s\n", color.CyanString("you:"), msg.Content)
		}
	}
	return nil
}

func runRemoveChat(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: carter rm <chat-id>")
	}

	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.DeleteConversation(ctx, args[0]); err != nil {
		return err
	}
	fmt.Println("Conversation deleted")
	return nil
}

func runPlugins(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: carter plugins <chat-id>")
	}

	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	cred, _, err := a.credential(ctx, args[0])
	if err != nil {
		return err
	}

	plugins, err := a.client.PluginList(ctx, cred)
	if err != nil {
		if errors.Is(err, carter.ErrNoReply) {
			fmt.Println("This agent does not expose plugins")
			return nil
		}
		return err
	}
	if len(plugins) == 0 {
		fmt.Println("No plugins installed")
		return nil
	}

	for _, plugin := range plugins {
		fmt.Printf("%s  %s\n", plugin.ID, color.New(color.Bold).Sprint(plugin.Name))
		if plugin.Description != nil {
			fmt.Printf("    %s\n", color.HiBlackString(*plugin.Description))
		}
	}
	return nil
}

func runPersonalise(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: carter personalise <chat-id> <text>")
	}

	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	cred, _, err := a.credential(ctx, args[0])
	if err != nil {
		return err
	}

	resp, err := a.client.Personalise(ctx, cred, args[1])
	if err != nil {
		return err
	}

	printAgentLine("agent", resp.Output.Text)
	return nil
}

func printAgentLine(name, text string) {
	fmt.Printf("%s %s\n", color.MagentaString(name+":"), text)
}

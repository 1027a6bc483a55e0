// ABOUTME: Turn persistence orchestrator pairing remote exchanges with local writes
// ABOUTME: A turn is stored as one atomic batch or not at all

package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/slowlife01/carterclient/internal/carter"
	"github.com/slowlife01/carterclient/internal/store"
)

// AgentClient defines what the service needs from the protocol adapter
type AgentClient interface {
	Chat(ctx context.Context, cred carter.Credential, text string) (*carter.ChatResponse, error)
	Opener(ctx context.Context, cred carter.Credential) (*carter.OpenerResponse, error)
}

// MessageWriter defines what the service needs from storage
type MessageWriter interface {
	CreateMessages(ctx context.Context, messages []*store.Message) error
}

// Service orchestrates one chat turn: remote exchange first, then both sides
// of the turn written to the store as a single all-or-nothing batch. There is
// never a persisted user message without its agent reply.
type Service struct {
	client AgentClient
	writer MessageWriter
	logger *slog.Logger
}

// New creates a turn orchestrator
func New(client AgentClient, writer MessageWriter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		client: client,
		writer: writer,
		logger: logger.With("component", "conversation"),
	}
}

// RecordTurn sends userText as one conversational turn and persists the pair
// (user message, agent reply) atomically. An exchange without output is fatal
// for the turn: nothing is persisted and the caller sees the failure.
//
// If the local write fails, the remote call has already happened and is not
// compensated; the turn surfaces as failed without a stored record. That gap
// is accepted: the remote side-effect cannot be rolled back.
func (s *Service) RecordTurn(ctx context.Context, conversationID string, cred carter.Credential, userText string) (*carter.ChatResponse, error) {
	resp, err := s.client.Chat(ctx, cred, userText)
	if err != nil {
		return nil, fmt.Errorf("chat request failed: %w", err)
	}
	if resp.Output == nil {
		s.logger.Warn("agent returned no output, turn discarded", "conversation_id", conversationID)
		return nil, carter.ErrNoReply
	}

	now := time.Now()
	batch := []*store.Message{
		{
			ID:             uuid.New().String(),
			ConversationID: conversationID,
			Content:        userText,
			IsFromAgent:    false,
			CreatedAt:      now,
		},
		{
			ID:             uuid.New().String(),
			ConversationID: conversationID,
			Content:        resp.Output.Text,
			IsFromAgent:    true,
			CreatedAt:      now,
		},
	}

	if err := s.writer.CreateMessages(ctx, batch); err != nil {
		return nil, fmt.Errorf("persisting turn: %w", err)
	}

	s.logger.Debug("recorded turn", "conversation_id", conversationID)
	return resp, nil
}

// RecordOpener requests an agent-initiated opening message and persists it as
// the conversation's single agent-side message. No user-side message exists
// for an opener.
func (s *Service) RecordOpener(ctx context.Context, conversationID string, cred carter.Credential) (*carter.OpenerResponse, error) {
	resp, err := s.client.Opener(ctx, cred)
	if err != nil {
		return nil, fmt.Errorf("opener request failed: %w", err)
	}
	if resp.Output == nil {
		s.logger.Warn("agent returned no opener, nothing persisted", "conversation_id", conversationID)
		return nil, carter.ErrNoReply
	}

	msg := &store.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Content:        resp.Output.Text,
		IsFromAgent:    true,
		CreatedAt:      time.Now(),
	}

	if err := s.writer.CreateMessages(ctx, []*store.Message{msg}); err != nil {
		return nil, fmt.Errorf("persisting opener: %w", err)
	}

	s.logger.Debug("recorded opener", "conversation_id", conversationID)
	return resp, nil
}

// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides agent/conversation/message persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	// WAL for better concurrent performance. Pragmas ride in the DSN because
	// foreign_keys is per-connection; every connection the pool opens must
	// have it, not just the first.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS agents (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			key TEXT NOT NULL,
			is_selected BOOLEAN NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_agents_selected ON agents(is_selected);

		CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			agent_id TEXT NOT NULL,
			created_at TEXT NOT NULL,
			FOREIGN KEY (agent_id) REFERENCES agents(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_conversations_agent ON conversations(agent_id);

		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			content TEXT NOT NULL,
			is_from_agent BOOLEAN NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_messages_conversation
			ON messages(conversation_id, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// CreateAgent creates a new agent record.
// Returns ErrDuplicate if an agent with the same ID already exists.
func (s *SQLiteStore) CreateAgent(ctx context.Context, agent *Agent) error {
	query := `
		INSERT INTO agents (id, name, key, is_selected, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		agent.ID,
		agent.Name,
		agent.Key,
		agent.IsSelected,
		agent.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("inserting agent: %w", err)
	}

	s.logger.Debug("created agent", "id", agent.ID, "name", agent.Name)
	return nil
}

// GetAgent retrieves an agent by ID.
// Returns ErrNotFound if the agent doesn't exist.
func (s *SQLiteStore) GetAgent(ctx context.Context, id string) (*Agent, error) {
	query := `
		SELECT id, name, key, is_selected, created_at
		FROM agents
		WHERE id = ?
	`
	return s.scanAgent(s.db.QueryRowContext(ctx, query, id))
}

// GetSelectedAgent retrieves the currently selected agent.
// Returns ErrNotFound when no agent is selected.
func (s *SQLiteStore) GetSelectedAgent(ctx context.Context) (*Agent, error) {
	query := `
		SELECT id, name, key, is_selected, created_at
		FROM agents
		WHERE is_selected = 1
	`
	return s.scanAgent(s.db.QueryRowContext(ctx, query))
}

// scanAgent reads one agent row, mapping sql.ErrNoRows to ErrNotFound
func (s *SQLiteStore) scanAgent(row *sql.Row) (*Agent, error) {
	var agent Agent
	var createdAtStr string

	err := row.Scan(
		&agent.ID,
		&agent.Name,
		&agent.Key,
		&agent.IsSelected,
		&createdAtStr,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying agent: %w", err)
	}

	agent.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	return &agent, nil
}

// UpdateAgent updates an agent's name and key.
// Returns ErrNotFound if the agent doesn't exist.
func (s *SQLiteStore) UpdateAgent(ctx context.Context, agent *Agent) error {
	query := `
		UPDATE agents
		SET name = ?, key = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query, agent.Name, agent.Key, agent.ID)
	if err != nil {
		return fmt.Errorf("updating agent: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("updated agent", "id", agent.ID)
	return nil
}

// DeleteAgent removes an agent and, through foreign key cascades, its
// conversations and their messages.
// Returns ErrNotFound if the agent doesn't exist.
func (s *SQLiteStore) DeleteAgent(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM agents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting agent: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted agent", "id", id)
	return nil
}

// ListAgents returns all agents ordered by creation time.
func (s *SQLiteStore) ListAgents(ctx context.Context) ([]*Agent, error) {
	query := `
		SELECT id, name, key, is_selected, created_at
		FROM agents
		ORDER BY created_at
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying agents: %w", err)
	}
	defer rows.Close()

	var agents []*Agent
	for rows.Next() {
		var agent Agent
		var createdAtStr string
		if err := rows.Scan(&agent.ID, &agent.Name, &agent.Key, &agent.IsSelected, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scanning agent: %w", err)
		}
		agent.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		agents = append(agents, &agent)
	}

	return agents, rows.Err()
}

// SetSelectedAgent marks the given agent as selected and clears the flag on
// every other agent, in one transaction so two agents are never selected at
// once. Returns the newly selected agent, or ErrNotFound if it doesn't exist.
func (s *SQLiteStore) SetSelectedAgent(ctx context.Context, id string) (*Agent, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `UPDATE agents SET is_selected = 1 WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("selecting agent: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `UPDATE agents SET is_selected = 0 WHERE id != ?`, id); err != nil {
		return nil, fmt.Errorf("clearing previous selection: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing selection: %w", err)
	}

	s.logger.Debug("selected agent", "id", id)
	return s.GetAgent(ctx, id)
}

// CreateConversation creates a new conversation record.
// Returns ErrDuplicate if the ID is already taken.
func (s *SQLiteStore) CreateConversation(ctx context.Context, conv *Conversation) error {
	query := `
		INSERT INTO conversations (id, title, agent_id, created_at)
		VALUES (?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		conv.ID,
		conv.Title,
		conv.AgentID,
		conv.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("inserting conversation: %w", err)
	}

	s.logger.Debug("created conversation", "id", conv.ID, "agent_id", conv.AgentID)
	return nil
}

// GetConversation retrieves a conversation with its messages in chronological
// order. Returns ErrNotFound if the conversation doesn't exist.
func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	query := `
		SELECT id, title, agent_id, created_at
		FROM conversations
		WHERE id = ?
	`

	var conv Conversation
	var createdAtStr string

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&conv.ID,
		&conv.Title,
		&conv.AgentID,
		&createdAtStr,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying conversation: %w", err)
	}

	conv.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	messages, err := s.conversationMessages(ctx, id)
	if err != nil {
		return nil, err
	}
	conv.Messages = messages

	return &conv, nil
}

// conversationMessages returns a conversation's messages oldest first.
// Timestamps are stored at second resolution, so rowid breaks ties in
// insertion order; both halves of a turn carry the same timestamp.
func (s *SQLiteStore) conversationMessages(ctx context.Context, conversationID string) ([]*Message, error) {
	query := `
		SELECT id, conversation_id, content, is_from_agent, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at, rowid
	`

	rows, err := s.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

func scanMessage(rows *sql.Rows) (*Message, error) {
	var msg Message
	var createdAtStr string
	if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Content, &msg.IsFromAgent, &createdAtStr); err != nil {
		return nil, fmt.Errorf("scanning message: %w", err)
	}
	createdAt, err := time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	msg.CreatedAt = createdAt
	return &msg, nil
}

// DeleteConversation removes a conversation and its messages.
// Returns ErrNotFound if the conversation doesn't exist.
func (s *SQLiteStore) DeleteConversation(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted conversation", "id", id)
	return nil
}

// ListConversations returns an agent's conversations, newest first, each with
// its latest agent-authored message attached as a preview.
func (s *SQLiteStore) ListConversations(ctx context.Context, agentID string) ([]*Conversation, error) {
	query := `
		SELECT id, title, agent_id, created_at
		FROM conversations
		WHERE agent_id = ?
		ORDER BY created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, agentID)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer rows.Close()

	var conversations []*Conversation
	for rows.Next() {
		var conv Conversation
		var createdAtStr string
		if err := rows.Scan(&conv.ID, &conv.Title, &conv.AgentID, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		conv.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		conversations = append(conversations, &conv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, conv := range conversations {
		preview, err := s.latestAgentMessage(ctx, conv.ID)
		if err != nil {
			return nil, err
		}
		conv.LastMessage = preview
	}

	return conversations, nil
}

// latestAgentMessage returns the newest agent-authored message in a
// conversation, or nil when there is none.
func (s *SQLiteStore) latestAgentMessage(ctx context.Context, conversationID string) (*Message, error) {
	query := `
		SELECT id, conversation_id, content, is_from_agent, created_at
		FROM messages
		WHERE conversation_id = ? AND is_from_agent = 1
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1
	`

	rows, err := s.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("querying latest message: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanMessage(rows)
}

// CreateMessages writes a batch of messages in a single transaction. Either
// every message in the batch lands or none does; a failure on any insert
// rolls back the whole batch.
func (s *SQLiteStore) CreateMessages(ctx context.Context, messages []*Message) error {
	if len(messages) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO messages (id, conversation_id, content, is_from_agent, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	for _, msg := range messages {
		_, err := tx.ExecContext(ctx, query,
			msg.ID,
			msg.ConversationID,
			msg.Content,
			msg.IsFromAgent,
			msg.CreatedAt.UTC().Format(time.RFC3339),
		)
		if err != nil {
			if isConstraintViolation(err) {
				return ErrDuplicate
			}
			return fmt.Errorf("inserting message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing messages: %w", err)
	}

	s.logger.Debug("created messages", "count", len(messages))
	return nil
}

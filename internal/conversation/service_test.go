// ABOUTME: Tests for the turn persistence orchestrator
// ABOUTME: Verifies atomic turn writes, empty-reply handling, and opener persistence

package conversation

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlife01/carterclient/internal/carter"
	"github.com/slowlife01/carterclient/internal/store"
)

// mockClient implements AgentClient for testing
type mockClient struct {
	chatResp   *carter.ChatResponse
	openerResp *carter.OpenerResponse
	err        error
	lastText   string
	lastCred   carter.Credential
}

func (m *mockClient) Chat(ctx context.Context, cred carter.Credential, text string) (*carter.ChatResponse, error) {
	m.lastCred = cred
	m.lastText = text
	return m.chatResp, m.err
}

func (m *mockClient) Opener(ctx context.Context, cred carter.Credential) (*carter.OpenerResponse, error) {
	m.lastCred = cred
	return m.openerResp, m.err
}

// failingWriter fails every batch, simulating a local store write failure
type failingWriter struct {
	batches [][]*store.Message
}

func (w *failingWriter) CreateMessages(ctx context.Context, messages []*store.Message) error {
	w.batches = append(w.batches, messages)
	return errors.New("disk full")
}

func createTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	require.NoError(t, s.CreateAgent(ctx, &store.Agent{ID: "agent-1", Name: "Aria", Key: "k"}))
	require.NoError(t, s.CreateConversation(ctx, &store.Conversation{ID: "conv-1", Title: "test", AgentID: "agent-1"}))
	return s
}

var testCred = carter.Credential{Key: "k", UserID: "conv-1"}

func TestRecordTurn_PersistsBothSides(t *testing.T) {
	testStore := createTestStore(t)
	client := &mockClient{
		chatResp: &carter.ChatResponse{
			Output: &carter.ChatOutput{Text: "hello!"},
		},
	}
	svc := New(client, testStore, nil)

	ctx := context.Background()
	resp, err := svc.RecordTurn(ctx, "conv-1", testCred, "hi")
	require.NoError(t, err)
	require.NotNil(t, resp.Output)
	assert.Equal(t, "hi", client.lastText)
	assert.Equal(t, testCred, client.lastCred)

	conv, err := testStore.GetConversation(ctx, "conv-1")
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)

	assert.Equal(t, "hi", conv.Messages[0].Content)
	assert.False(t, conv.Messages[0].IsFromAgent)
	assert.Equal(t, "conv-1", conv.Messages[0].ConversationID)

	assert.Equal(t, "hello!", conv.Messages[1].Content)
	assert.True(t, conv.Messages[1].IsFromAgent)
	assert.Equal(t, "conv-1", conv.Messages[1].ConversationID)
}

func TestRecordTurn_NoOutputPersistsNothing(t *testing.T) {
	testStore := createTestStore(t)
	client := &mockClient{chatResp: &carter.ChatResponse{}}
	svc := New(client, testStore, nil)

	ctx := context.Background()
	_, err := svc.RecordTurn(ctx, "conv-1", testCred, "hi")
	require.ErrorIs(t, err, carter.ErrNoReply)

	conv, err := testStore.GetConversation(ctx, "conv-1")
	require.NoError(t, err)
	assert.Empty(t, conv.Messages)
}

func TestRecordTurn_ChatFailurePersistsNothing(t *testing.T) {
	testStore := createTestStore(t)
	client := &mockClient{err: errors.New("connection refused")}
	svc := New(client, testStore, nil)

	ctx := context.Background()
	_, err := svc.RecordTurn(ctx, "conv-1", testCred, "hi")
	require.Error(t, err)

	conv, err := testStore.GetConversation(ctx, "conv-1")
	require.NoError(t, err)
	assert.Empty(t, conv.Messages)
}

func TestRecordTurn_WriteFailureSurfaced(t *testing.T) {
	client := &mockClient{
		chatResp: &carter.ChatResponse{
			Output: &carter.ChatOutput{Text: "hello!"},
		},
	}
	writer := &failingWriter{}
	svc := New(client, writer, nil)

	_, err := svc.RecordTurn(context.Background(), "conv-1", testCred, "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persisting turn")

	// The pair was handed to the store as one batch, not as two writes.
	require.Len(t, writer.batches, 1)
	assert.Len(t, writer.batches[0], 2)
}

func TestRecordTurn_NotIdempotent(t *testing.T) {
	testStore := createTestStore(t)
	client := &mockClient{
		chatResp: &carter.ChatResponse{
			Output: &carter.ChatOutput{Text: "hello!"},
		},
	}
	svc := New(client, testStore, nil)

	ctx := context.Background()
	_, err := svc.RecordTurn(ctx, "conv-1", testCred, "hi")
	require.NoError(t, err)
	_, err = svc.RecordTurn(ctx, "conv-1", testCred, "hi")
	require.NoError(t, err)

	// Identical input yields two independent turns; no deduplication.
	conv, err := testStore.GetConversation(ctx, "conv-1")
	require.NoError(t, err)
	assert.Len(t, conv.Messages, 4)
}

func TestRecordOpener_PersistsAgentMessageOnly(t *testing.T) {
	testStore := createTestStore(t)
	client := &mockClient{
		openerResp: &carter.OpenerResponse{
			Output: &carter.ChatOutput{Text: "hey, how have you been?"},
		},
	}
	svc := New(client, testStore, nil)

	ctx := context.Background()
	resp, err := svc.RecordOpener(ctx, "conv-1", testCred)
	require.NoError(t, err)
	require.NotNil(t, resp.Output)

	conv, err := testStore.GetConversation(ctx, "conv-1")
	require.NoError(t, err)
	require.Len(t, conv.Messages, 1)
	assert.True(t, conv.Messages[0].IsFromAgent)
	assert.Equal(t, "hey, how have you been?", conv.Messages[0].Content)
}

func TestRecordOpener_NoOutputPersistsNothing(t *testing.T) {
	testStore := createTestStore(t)
	client := &mockClient{openerResp: &carter.OpenerResponse{}}
	svc := New(client, testStore, nil)

	ctx := context.Background()
	_, err := svc.RecordOpener(ctx, "conv-1", testCred)
	require.ErrorIs(t, err, carter.ErrNoReply)

	conv, err := testStore.GetConversation(ctx, "conv-1")
	require.NoError(t, err)
	assert.Empty(t, conv.Messages)
}

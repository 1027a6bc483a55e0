// ABOUTME: Tests for the HTTP transport layer
// ABOUTME: Covers envelope delivery, status handling, and decode failures

package carter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChat_SendsEnvelope(t *testing.T) {
	var gotPath string
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]any{
			"output": map[string]any{"text": "hello there"},
		})
	}))
	defer server.Close()

	client := New(WithBaseURL(server.URL))
	cred := Credential{Key: "secret-key", UserID: "conv-1"}

	resp, err := client.Chat(context.Background(), cred, "hi")
	require.NoError(t, err)

	assert.Equal(t, "/api/chat", gotPath)
	assert.Equal(t, "secret-key", gotBody["key"])
	assert.Equal(t, "conv-1", gotBody["user_id"])
	assert.Equal(t, "hi", gotBody["text"])
	assert.Equal(t, true, gotBody["speak"])

	require.NotNil(t, resp.Output)
	assert.Equal(t, "hello there", resp.Output.Text)
	assert.Nil(t, resp.Output.Audio)
}

func TestChat_EmptyTextForwarded(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]any{})
	}))
	defer server.Close()

	client := New(WithBaseURL(server.URL))
	_, err := client.Chat(context.Background(), Credential{Key: "k", UserID: "u"}, "")
	require.NoError(t, err)

	// The remote decides what to do with empty input; the client forwards it.
	assert.Equal(t, "", gotBody["text"])
}

func TestChat_NoOutputIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"output": nil})
	}))
	defer server.Close()

	client := New(WithBaseURL(server.URL))
	resp, err := client.Chat(context.Background(), Credential{Key: "k", UserID: "u"}, "hi")
	require.NoError(t, err)
	assert.Nil(t, resp.Output)
}

func TestTransport_NonOKStatusIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]any{"error": "bad key"})
	}))
	defer server.Close()

	client := New(WithBaseURL(server.URL))
	_, err := client.Chat(context.Background(), Credential{Key: "bad", UserID: "u"}, "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
}

func TestTransport_UndecodableBodyIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer server.Close()

	client := New(WithBaseURL(server.URL))
	_, err := client.Chat(context.Background(), Credential{Key: "k", UserID: "u"}, "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding api/chat response")
}

func TestTransport_ConnectionFailureIsError(t *testing.T) {
	// Point at a server that is already closed.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := New(WithBaseURL(server.URL))
	_, err := client.Chat(context.Background(), Credential{Key: "k", UserID: "u"}, "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sending api/chat request")
}

func TestOpener_OmitsTextAndSpeak(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]any{
			"output": map[string]any{"text": "hey, I was just thinking about you"},
		})
	}))
	defer server.Close()

	client := New(WithBaseURL(server.URL))
	resp, err := client.Opener(context.Background(), Credential{Key: "k", UserID: "conv-2"})
	require.NoError(t, err)

	assert.Equal(t, "/api/opener", gotPath)
	assert.Equal(t, "k", gotBody["key"])
	assert.Equal(t, "conv-2", gotBody["user_id"])
	assert.NotContains(t, gotBody, "text")
	assert.NotContains(t, gotBody, "speak")

	require.NotNil(t, resp.Output)
	assert.Equal(t, "hey, I was just thinking about you", resp.Output.Text)
}

func TestPersonalise_RequiresOutput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"output": nil})
	}))
	defer server.Close()

	client := New(WithBaseURL(server.URL))
	_, err := client.Personalise(context.Background(), Credential{Key: "k", UserID: "u"}, "be cheerful")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing output")
}

func TestPersonalise_Success(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(map[string]any{
			"output": map[string]any{"text": "noted, I'll be cheerful"},
		})
	}))
	defer server.Close()

	client := New(WithBaseURL(server.URL))
	resp, err := client.Personalise(context.Background(), Credential{Key: "k", UserID: "u"}, "be cheerful")
	require.NoError(t, err)
	assert.Equal(t, "/api/personalise", gotPath)
	assert.Equal(t, "noted, I'll be cheerful", resp.Output.Text)
}

func TestChat_DecodesForcedBehavioursAndAgent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"output":            map[string]any{"text": "ok", "audio": "base64audio=="},
			"forced_behaviours": []map[string]any{{"name": "wave"}, {"name": "smile"}},
			"agent":             map[string]any{"name": "Aria"},
		})
	}))
	defer server.Close()

	client := New(WithBaseURL(server.URL))
	resp, err := client.Chat(context.Background(), Credential{Key: "k", UserID: "u"}, "hi")
	require.NoError(t, err)

	require.NotNil(t, resp.Output)
	require.NotNil(t, resp.Output.Audio)
	assert.Equal(t, "base64audio==", *resp.Output.Audio)

	require.Len(t, resp.ForcedBehaviours, 2)
	assert.Equal(t, "wave", resp.ForcedBehaviours[0].Name)
	assert.Equal(t, "smile", resp.ForcedBehaviours[1].Name)

	require.NotNil(t, resp.Agent)
	assert.Equal(t, "Aria", resp.Agent.Name)
	assert.Nil(t, resp.Agent.Image)
}

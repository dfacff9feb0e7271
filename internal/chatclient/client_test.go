package chatclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evidence-rag/internal/models"
)

func TestSendPostsConversation(t *testing.T) {
	var got models.ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(models.ChatMessage{Role: models.RoleAssistant, Content: "A red sedan."})
	}))
	defer srv.Close()

	history := []models.ChatMessage{
		{Role: models.RoleAssistant, Content: models.Greeting},
		{Role: models.RoleUser, Content: "What color was the car?"},
	}
	reply, err := New(srv.URL+"/", time.Second).Send(context.Background(), history)
	require.NoError(t, err)

	assert.Equal(t, "A red sedan.", reply.Content)
	assert.Equal(t, models.RoleAssistant, reply.Role)
	assert.Equal(t, history, got.Messages)
}

func TestSendReturnsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(models.ErrorResponse{Error: "GOOGLE_API_KEY not configured"})
	}))
	defer srv.Close()

	_, err := New(srv.URL, time.Second).Send(context.Background(), []models.ChatMessage{{Role: models.RoleUser, Content: "q"}})
	require.Error(t, err)
	assert.Equal(t, "GOOGLE_API_KEY not configured", err.Error())
}

func TestSendUnreachable(t *testing.T) {
	_, err := New("http://127.0.0.1:1", 200*time.Millisecond).Send(context.Background(), nil)
	assert.Error(t, err)
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evidence-rag/internal/models"
)

type fakeAssistant struct {
	mu        sync.Mutex
	inits     int
	questions []string
	initErr   error
	answerErr error
	reply     string
}

func (f *fakeAssistant) InitializeIfNeeded(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inits++
	return f.initErr
}

func (f *fakeAssistant) Answer(_ context.Context, question string) (*models.PromptResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.questions = append(f.questions, question)
	if f.answerErr != nil {
		return nil, f.answerErr
	}
	return &models.PromptResponse{Query: question, Content: f.reply}, nil
}

func withKey(key string) CredentialFunc {
	return func() (string, string) { return key, "GOOGLE_API_KEY" }
}

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestChatMissingCredential(t *testing.T) {
	a := &fakeAssistant{reply: "unused"}
	h := NewHandler(a, withKey("")).Routes()

	rec := post(t, h, `{"messages":[{"role":"user","content":"What color was the car?"}]}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body models.ErrorResponse
	decode(t, rec, &body)
	assert.Equal(t, "GOOGLE_API_KEY not configured", body.Error)
	assert.Zero(t, a.inits)
	assert.Empty(t, a.questions)
}

func TestChatAnswersLastMessage(t *testing.T) {
	a := &fakeAssistant{reply: "A red sedan [witness_statement.txt]."}
	h := NewHandler(a, withKey("secret")).Routes()

	rec := post(t, h, `{"messages":[
		{"role":"assistant","content":"Detective online."},
		{"role":"user","content":"Who called the police?"},
		{"role":"assistant","content":"A neighbour."},
		{"role":"user","content":"What color was the car?"}
	]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body models.ChatMessage
	decode(t, rec, &body)
	assert.Equal(t, models.RoleAssistant, body.Role)
	assert.Equal(t, "A red sedan [witness_statement.txt].", body.Content)
	assert.Equal(t, []string{"What color was the car?"}, a.questions)
	assert.Equal(t, 1, a.inits)
}

func TestChatNoCredentialNeeded(t *testing.T) {
	a := &fakeAssistant{reply: "ok"}
	h := NewHandler(a, func() (string, string) { return "", "" }).Routes()

	rec := post(t, h, `{"messages":[{"role":"user","content":"q"}]}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestChatBadRequests(t *testing.T) {
	for name, body := range map[string]string{
		"malformed":      `{"messages":`,
		"empty body":     ``,
		"no messages":    `{"messages":[]}`,
		"blank question": `{"messages":[{"role":"user","content":"  "}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			a := &fakeAssistant{}
			rec := post(t, NewHandler(a, withKey("secret")).Routes(), body)
			assert.Equal(t, http.StatusInternalServerError, rec.Code)

			var resp models.ErrorResponse
			decode(t, rec, &resp)
			assert.Equal(t, "Internal Server Error", resp.Error)
			assert.Empty(t, a.questions)
		})
	}
}

func TestChatAssistantFailures(t *testing.T) {
	for name, a := range map[string]*fakeAssistant{
		"init":   {initErr: errors.New("model weights missing")},
		"answer": {answerErr: errors.New("store unreachable")},
	} {
		t.Run(name, func(t *testing.T) {
			rec := post(t, NewHandler(a, withKey("secret")).Routes(), `{"messages":[{"role":"user","content":"q"}]}`)
			assert.Equal(t, http.StatusInternalServerError, rec.Code)

			var resp models.ErrorResponse
			decode(t, rec, &resp)
			assert.Equal(t, "Internal Server Error", resp.Error)
		})
	}
}

func TestChatRejectsGet(t *testing.T) {
	h := NewHandler(&fakeAssistant{}, withKey("secret")).Routes()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/chat", nil))
	assert.NotEqual(t, http.StatusOK, rec.Code)
}

func TestIndexAndHealth(t *testing.T) {
	h := NewHandler(&fakeAssistant{}, withKey("secret")).Routes()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Cold Case Detective")
	assert.Contains(t, rec.Body.String(), models.Greeting)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestChatRejectsOversizedBody(t *testing.T) {
	a := &fakeAssistant{reply: "unused"}
	h := NewHandler(a, withKey("secret")).Routes()

	huge := strings.Repeat("x", MaxBodyBytes+1)
	rec := post(t, h, `{"messages":[{"role":"user","content":"`+huge+`"}]}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp models.ErrorResponse
	decode(t, rec, &resp)
	assert.Equal(t, "Internal Server Error", resp.Error)
	assert.Zero(t, a.inits)
	assert.Empty(t, a.questions)
}

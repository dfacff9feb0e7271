package api

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"evidence-rag/internal/models"
)

const (
	internalError = "Internal Server Error"

	// MaxBodyBytes caps a chat request; the whole conversation is posted every turn
	MaxBodyBytes = 1 << 20
)

//go:embed static
var staticFiles embed.FS

// Assistant answers a single question against the evidence store
type Assistant interface {
	InitializeIfNeeded(ctx context.Context) error
	Answer(ctx context.Context, question string) (*models.PromptResponse, error)
}

// CredentialFunc reports the generation key and the environment variable it comes from
type CredentialFunc func() (key, envName string)

type Handler struct {
	assistant  Assistant
	credential CredentialFunc
}

func NewHandler(assistant Assistant, credential CredentialFunc) *Handler {
	return &Handler{assistant: assistant, credential: credential}
}

// Routes returns the server mux wrapped in request logging
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", h.Chat)
	mux.HandleFunc("GET /healthz", h.Health)

	static, err := fs.Sub(staticFiles, "static")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load embedded page")
	}
	mux.Handle("GET /", http.FileServer(http.FS(static)))

	return accessLog(log.Logger)(mux)
}

func accessLog(logger zerolog.Logger) func(http.Handler) http.Handler {
	chain := []func(http.Handler) http.Handler{
		hlog.NewHandler(logger),
		hlog.RequestIDHandler("req_id", "X-Request-Id"),
		hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
			hlog.FromRequest(r).Info().
				Str("method", r.Method).
				Stringer("url", r.URL).
				Int("status", status).
				Int("size", size).
				Dur("duration", duration).
				Msg("request")
		}),
	}
	return func(next http.Handler) http.Handler {
		for i := len(chain) - 1; i >= 0; i-- {
			next = chain[i](next)
		}
		return next
	}
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// Chat answers the last message of the posted conversation
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	logger := hlog.FromRequest(r)

	if key, envName := h.credential(); envName != "" && key == "" {
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: envName + " not configured"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	question, err := lastQuestion(r)
	if err != nil {
		logger.Error().Err(err).Msg("Invalid chat request")
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: internalError})
		return
	}

	ctx := r.Context()
	if err := h.assistant.InitializeIfNeeded(ctx); err != nil {
		logger.Error().Err(err).Msg("Failed to initialize vector store")
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: internalError})
		return
	}

	logger.Info().Str("question", question).Msg("Searching evidence")
	resp, err := h.assistant.Answer(ctx, question)
	if err != nil {
		logger.Error().Err(err).Msg("API error")
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: internalError})
		return
	}

	writeJSON(w, http.StatusOK, models.ChatMessage{Role: models.RoleAssistant, Content: resp.Content})
}

func lastQuestion(r *http.Request) (string, error) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", err
	}
	if len(req.Messages) == 0 {
		return "", errors.New("no messages in request")
	}
	question := req.Messages[len(req.Messages)-1].Content
	if strings.TrimSpace(question) == "" {
		return "", errors.New("empty question")
	}
	return question, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to write response")
	}
}

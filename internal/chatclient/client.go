package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"evidence-rag/internal/models"
)

const chatPath = "/api/chat"

// Client posts the whole conversation to a running server, the same way the
// browser page does
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Send returns the assistant reply to the last message in messages
func (c *Client) Send(ctx context.Context, messages []models.ChatMessage) (models.ChatMessage, error) {
	body, err := json.Marshal(models.ChatRequest{Messages: messages})
	if err != nil {
		return models.ChatMessage{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatPath, bytes.NewReader(body))
	if err != nil {
		return models.ChatMessage{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return models.ChatMessage{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.ChatMessage{}, err
	}

	var errResp models.ErrorResponse
	if json.Unmarshal(data, &errResp) == nil && errResp.Error != "" {
		return models.ChatMessage{}, errors.New(errResp.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return models.ChatMessage{}, fmt.Errorf("request failed: %d, %s", resp.StatusCode, string(data))
	}

	var reply models.ChatMessage
	if err := json.Unmarshal(data, &reply); err != nil {
		return models.ChatMessage{}, fmt.Errorf("invalid response: %w", err)
	}
	return reply, nil
}

// Package ollama talks to a local Ollama server for chat completions.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jdmmit/agente/internal/logging"
	"github.com/jdmmit/agente/internal/types"
)

// Client handles chat generation via Ollama
type Client struct {
	baseURL       string
	model         string
	assistantName string
	client        *http.Client
}

// Config holds connection settings
type Config struct {
	BaseURL       string
	Model         string
	AssistantName string
	Timeout       time.Duration
}

// NewClient creates a new Ollama chat client
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "llama3.2" // fast, available by default
	}
	if cfg.AssistantName == "" {
		cfg.AssistantName = "JDMMitAgente"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &Client{
		baseURL:       cfg.BaseURL,
		model:         cfg.Model,
		assistantName: cfg.AssistantName,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Model returns the configured model name
func (c *Client) Model() string {
	return c.model
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the Ollama API request format for /api/chat
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

// chatResponse is the Ollama API response format for /api/chat
type chatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

// Chat sends the user text with a system prompt built from history and
// returns the model's raw reply.
func (c *Client) Chat(ctx context.Context, userText string, history []types.Conversation) (string, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: SystemPrompt(c.assistantName, history)},
			{Role: "user", Content: userText},
		},
		Stream: false,
	}

	var result chatResponse
	if err := c.post(ctx, "/api/chat", reqBody, &result); err != nil {
		return "", err
	}

	logging.For("ollama").Debugw("chat reply", "model", c.model, "content", result.Message.Content)
	return result.Message.Content, nil
}

// tagsResponse is the Ollama API response format for /api/tags
type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Ping verifies the server is reachable and the model exists, pulling it
// when pullMissing is set.
func (c *Client) Ping(ctx context.Context, pullMissing bool) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, string(body))
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	log := logging.For("ollama")
	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		if m.Name == c.model || m.Name == c.model+":latest" {
			log.Infow("connected", "host", c.baseURL, "model", c.model)
			return nil
		}
		names = append(names, m.Name)
	}

	if !pullMissing {
		return fmt.Errorf("model %q not available (have %v)", c.model, names)
	}
	log.Warnw("model not available, pulling", "model", c.model, "available", names)
	return c.Pull(ctx)
}

type pullRequest struct {
	Model  string `json:"model"`
	Stream bool   `json:"stream"`
}

type pullResponse struct {
	Status string `json:"status"`
}

// Pull downloads the configured model
func (c *Client) Pull(ctx context.Context) error {
	var result pullResponse
	if err := c.post(ctx, "/api/pull", pullRequest{Model: c.model, Stream: false}, &result); err != nil {
		return fmt.Errorf("pull %s: %w", c.model, err)
	}
	if result.Status != "success" {
		return fmt.Errorf("pull %s: unexpected status %q", c.model, result.Status)
	}
	logging.For("ollama").Infow("model pulled", "model", c.model)
	return nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

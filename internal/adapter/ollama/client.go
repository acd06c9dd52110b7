// Package ollama implements the decision port against a local Ollama server.
// The model is asked for a JSON envelope of proposed actions; transport
// failures surface as plain errors (the orchestrator absorbs them as
// recoverable), while unparseable responses are wrapped in
// decision.ErrMalformed and end the task.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Strob0t/CodeSmith/internal/config"
	"github.com/Strob0t/CodeSmith/internal/port/decision"
	"github.com/Strob0t/CodeSmith/internal/resilience"
)

// Client talks to the Ollama chat API.
type Client struct {
	baseURL     string
	model       string
	temperature float64
	httpClient  *http.Client
	breaker     *resilience.Breaker
}

// NewClient creates an Ollama decision client from config.
func NewClient(cfg config.Decision) *Client {
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
	}
}

// SetBreaker attaches a circuit breaker to all outgoing HTTP calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  chatOptions   `json:"options"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

// Propose sends the transcript to the model and parses the reply into typed
// actions.
func (c *Client) Propose(ctx context.Context, req decision.Request) (*decision.Proposal, error) {
	body, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: buildMessages(req),
		Stream:   false,
		Options:  chatOptions{Temperature: c.temperature},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/api/chat", body)
	if err != nil {
		return nil, fmt.Errorf("propose: %w", err)
	}

	var chat chatResponse
	if err := json.Unmarshal(resp, &chat); err != nil {
		return nil, fmt.Errorf("unmarshal chat response: %w", err)
	}

	return parseProposal(chat.Message.Content)
}

// Health checks whether the Ollama server is reachable.
func (c *Client) Health(ctx context.Context) (bool, error) {
	_, err := c.doRequest(ctx, http.MethodGet, "/api/tags", nil)
	return err == nil, err
}

// ModelAvailable reports whether the configured model has been pulled.
func (c *Client) ModelAvailable(ctx context.Context) (bool, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/api/tags", nil)
	if err != nil {
		return false, fmt.Errorf("list models: %w", err)
	}

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return false, fmt.Errorf("unmarshal models: %w", err)
	}

	for _, m := range result.Models {
		if strings.Contains(m.Name, c.model) || strings.Contains(c.model, m.Name) {
			return true, nil
		}
	}
	return false, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var result []byte
	call := func() error {
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode >= 400 {
			return fmt.Errorf("ollama API error %d: %s", resp.StatusCode, string(data))
		}

		result = data
		return nil
	}

	if c.breaker != nil {
		if err := c.breaker.Execute(call); err != nil {
			return nil, err
		}
		return result, nil
	}

	if err := call(); err != nil {
		return nil, err
	}
	return result, nil
}

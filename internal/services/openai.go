// OpenAI-compatible chat completions client shared by the vision extractor and the match oracle
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/desertthunder/snapsong/internal/shared"
	"golang.org/x/time/rate"
)

const (
	defaultChatURL     = "https://api.openai.com/v1/chat/completions"
	defaultChatModel   = "gpt-4o"
	defaultChatTimeout = 60 * time.Second
)

// ChatConfig captures the runtime settings required to talk to the model.
type ChatConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// ChatMessage is one message of a chat completion request.
//
// Content is either a string or a slice of [ContentPart].
type ChatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// ContentPart is one element of a multi-part message (text or image).
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL references an image by URL or data URI, with a rendering detail hint.
type ImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// ChatRequest is a model-agnostic completion request; the client fills in the model.
type ChatRequest struct {
	Messages  []ChatMessage
	MaxTokens int
}

// Completer issues chat completions and returns the first choice's text.
type Completer interface {
	Complete(ctx context.Context, req ChatRequest) (string, error)
}

// ChatClient implements [Completer] over HTTP.
type ChatClient struct {
	cfg        ChatConfig
	httpClient *http.Client
	limiter    *rate.Limiter
}

// ChatOption customizes the client.
type ChatOption func(*ChatClient)

// WithChatHTTPClient overrides the default HTTP client.
func WithChatHTTPClient(client *http.Client) ChatOption {
	return func(c *ChatClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithChatLimiter paces outgoing requests.
func WithChatLimiter(limiter *rate.Limiter) ChatOption {
	return func(c *ChatClient) {
		c.limiter = limiter
	}
}

// NewChatClient constructs a client using the supplied configuration.
func NewChatClient(cfg ChatConfig, opts ...ChatOption) *ChatClient {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultChatURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultChatModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultChatTimeout
	}

	client := &ChatClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Model returns the configured model name.
func (c *ChatClient) Model() string {
	return c.cfg.Model
}

type chatCompletionRequest struct {
	Model     string        `json:"model"`
	Messages  []ChatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// StatusError is a non-2xx response from an HTTP provider.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: http %d: %s", e.Provider, e.StatusCode, summarizeBody(e.Body))
}

func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return shared.ErrTokenExpired
	}
	return shared.ErrAPIRequest
}

// Complete sends one chat completion request. No retry is attempted.
func (c *ChatClient) Complete(ctx context.Context, req ChatRequest) (string, error) {
	if c.cfg.APIKey == "" {
		return "", fmt.Errorf("%w: chat api key", shared.ErrMissingCredentials)
	}
	if len(req.Messages) == 0 {
		return "", fmt.Errorf("%w: chat request has no messages", shared.ErrInvalidInput)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("chat request: %w", err)
		}
	}

	encoded, err := json.Marshal(chatCompletionRequest{
		Model:     c.cfg.Model,
		Messages:  req.Messages,
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat request: encode body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("chat request: new request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: chat request: %w", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("chat request: read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &StatusError{Provider: "chat", StatusCode: resp.StatusCode, Body: string(body)}
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", fmt.Errorf("%w: chat response: %v (body: %s)", shared.ErrAPIRequest, err, summarizeBody(string(body)))
	}
	if completion.Error != nil {
		return "", fmt.Errorf("%w: chat api error: %s", shared.ErrAPIRequest, strings.TrimSpace(completion.Error.Message))
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: chat response has no choices", shared.ErrAPIRequest)
	}

	choice := completion.Choices[0]
	content := strings.TrimSpace(choice.Message.Content)
	if content == "" {
		return "", fmt.Errorf(
			"%w (finish_reason=%q, refusal=%q)",
			shared.ErrEmptyExtraction,
			choice.FinishReason,
			choice.Message.Refusal,
		)
	}
	return content, nil
}

func summarizeBody(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	if clean == "" {
		return "<empty>"
	}
	const limit = 160
	runes := []rune(clean)
	if len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}

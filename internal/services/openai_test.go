package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/snapsong/internal/shared"
	tu "github.com/desertthunder/snapsong/internal/testing"
)

func TestChatClient(t *testing.T) {
	t.Run("sends model, messages and bearer key", func(t *testing.T) {
		var payload map[string]any
		var auth string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth = r.Header.Get("Authorization")
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				t.Errorf("decode payload: %v", err)
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"choices":[{"message":{"content":"  Artist Song  "}}]}`))
		}))
		defer ts.Close()

		client := NewChatClient(ChatConfig{APIKey: "sk-test", BaseURL: ts.URL, Model: "gpt-4o"})
		got, err := client.Complete(context.Background(), ChatRequest{
			Messages:  []ChatMessage{{Role: "user", Content: "hi"}},
			MaxTokens: 300,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if got != "Artist Song" {
			t.Errorf("expected trimmed content, got %q", got)
		}
		if auth != "Bearer sk-test" {
			t.Errorf("unexpected authorization header %q", auth)
		}
		if payload["model"] != "gpt-4o" {
			t.Errorf("unexpected model %v", payload["model"])
		}
		if payload["max_tokens"] != float64(300) {
			t.Errorf("unexpected max_tokens %v", payload["max_tokens"])
		}
	})

	t.Run("defaults", func(t *testing.T) {
		client := NewChatClient(ChatConfig{APIKey: " key "})
		if client.Model() != defaultChatModel {
			t.Errorf("expected default model, got %s", client.Model())
		}
		if client.cfg.BaseURL != defaultChatURL {
			t.Errorf("expected default url, got %s", client.cfg.BaseURL)
		}
		if client.cfg.APIKey != "key" {
			t.Errorf("expected trimmed key, got %q", client.cfg.APIKey)
		}
	})

	t.Run("missing api key", func(t *testing.T) {
		client := NewChatClient(ChatConfig{})
		_, err := client.Complete(context.Background(), ChatRequest{Messages: []ChatMessage{{Role: "user", Content: "x"}}})
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("no messages", func(t *testing.T) {
		client := NewChatClient(ChatConfig{APIKey: "k"})
		if _, err := client.Complete(context.Background(), ChatRequest{}); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("non-2xx is a status error without retry", func(t *testing.T) {
		calls := 0
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":{"message":"slow down"}}`))
		}))
		defer ts.Close()

		client := NewChatClient(ChatConfig{APIKey: "k", BaseURL: ts.URL})
		_, err := client.Complete(context.Background(), ChatRequest{Messages: []ChatMessage{{Role: "user", Content: "x"}}})

		var statusErr *StatusError
		if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusTooManyRequests {
			t.Fatalf("expected 429 status error, got %v", err)
		}
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
		if !strings.Contains(err.Error(), "slow down") {
			t.Errorf("expected body in error, got %v", err)
		}
		if calls != 1 {
			t.Errorf("expected exactly one call, got %d", calls)
		}
	})

	t.Run("empty choices", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"choices":[]}`))
		}))
		defer ts.Close()

		client := NewChatClient(ChatConfig{APIKey: "k", BaseURL: ts.URL})
		_, err := client.Complete(context.Background(), ChatRequest{Messages: []ChatMessage{{Role: "user", Content: "x"}}})
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})

	t.Run("empty content", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"choices":[{"message":{"content":"","refusal":"no"},"finish_reason":"stop"}]}`))
		}))
		defer ts.Close()

		client := NewChatClient(ChatConfig{APIKey: "k", BaseURL: ts.URL})
		_, err := client.Complete(context.Background(), ChatRequest{Messages: []ChatMessage{{Role: "user", Content: "x"}}})
		if !errors.Is(err, shared.ErrEmptyExtraction) {
			t.Errorf("expected ErrEmptyExtraction, got %v", err)
		}
	})

	t.Run("transport failure", func(t *testing.T) {
		client := NewChatClient(ChatConfig{APIKey: "k", BaseURL: "http://llm.invalid"},
			WithChatHTTPClient(&http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("connection reset"))}))

		_, err := client.Complete(context.Background(), ChatRequest{Messages: []ChatMessage{{Role: "user", Content: "x"}}})
		if !errors.Is(err, shared.ErrAPIRequest) || !strings.Contains(err.Error(), "connection reset") {
			t.Errorf("expected wrapped transport error, got %v", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))
		defer ts.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		client := NewChatClient(ChatConfig{APIKey: "k", BaseURL: ts.URL})
		_, err := client.Complete(ctx, ChatRequest{Messages: []ChatMessage{{Role: "user", Content: "x"}}})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

// stubCompleter records requests and returns canned answers.
type stubCompleter struct {
	answer   string
	err      error
	requests []ChatRequest
}

func (s *stubCompleter) Complete(_ context.Context, req ChatRequest) (string, error) {
	s.requests = append(s.requests, req)
	return s.answer, s.err
}

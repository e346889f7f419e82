package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/snapsong/internal/models"
	"github.com/desertthunder/snapsong/internal/shared"
)

var oracleCandidates = []models.Candidate{
	{ID: "a", Title: "One More Time", Artists: []string{"Daft Punk"}},
	{ID: "b", Title: "One More Time (Live)", Artists: []string{"Daft Punk", "Romanthony"}},
	{ID: "c", Title: "Another", Artists: []string{"Someone"}},
}

func TestParseMatchDecision(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		n       int
		want    models.MatchDecision
		wantErr bool
	}{
		{name: "first index", text: "0", n: 3, want: models.Selected(0)},
		{name: "last index", text: "2", n: 3, want: models.Selected(2)},
		{name: "no match", text: "-1", n: 3, want: models.NoMatch()},
		{name: "whitespace", text: "  1\n", n: 3, want: models.Selected(1)},
		{name: "quoted", text: `"1"`, n: 3, want: models.Selected(1)},
		{name: "code fence", text: "```\n1\n```", n: 3, want: models.Selected(1)},
		{name: "code fence with info string", text: "```text\n-1\n```", n: 3, want: models.NoMatch()},
		{name: "out of range", text: "3", n: 3, want: models.NoMatch(), wantErr: true},
		{name: "below -1", text: "-2", n: 3, want: models.NoMatch(), wantErr: true},
		{name: "prose", text: "The answer is 1", n: 3, want: models.NoMatch(), wantErr: true},
		{name: "empty", text: "", n: 3, want: models.NoMatch(), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMatchDecision(tt.text, tt.n)
			if tt.wantErr {
				if !errors.Is(err, shared.ErrOracleProtocol) {
					t.Fatalf("expected ErrOracleProtocol, got %v", err)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestBuildOraclePrompt(t *testing.T) {
	prompt, err := BuildOraclePrompt("daft punk one more time", oracleCandidates)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(prompt, "(0-2)") {
		t.Error("expected index range in prompt")
	}
	if !strings.Contains(prompt, "err on the side of caution") {
		t.Error("expected caution instruction")
	}

	start := strings.Index(prompt, "[")
	end := strings.LastIndex(prompt, "]")
	var input []struct {
		Query      string   `json:"query"`
		Candidates []string `json:"candidates"`
	}
	if err := json.Unmarshal([]byte(prompt[start:end+1]), &input); err != nil {
		t.Fatalf("embedded input is not valid JSON: %v", err)
	}
	if input[0].Query != "daft punk one more time" {
		t.Errorf("unexpected query %q", input[0].Query)
	}
	if input[0].Candidates[1] != "Daft Punk Romanthony - One More Time (Live)" {
		t.Errorf("unexpected rendered candidate %q", input[0].Candidates[1])
	}
}

func TestLLMOracle(t *testing.T) {
	t.Run("returns selected index", func(t *testing.T) {
		stub := &stubCompleter{answer: "1"}
		got, err := NewLLMOracle(stub).Disambiguate(context.Background(), "q", oracleCandidates)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != models.Selected(1) {
			t.Errorf("expected index 1, got %+v", got)
		}

		msgs := stub.requests[0].Messages
		if len(msgs) != 2 || msgs[0].Role != "system" || msgs[0].Content != OracleSystemPrompt {
			t.Errorf("unexpected messages %+v", msgs)
		}
	})

	t.Run("empty candidates never call the model", func(t *testing.T) {
		stub := &stubCompleter{answer: "0"}
		got, err := NewLLMOracle(stub).Disambiguate(context.Background(), "q", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.IsMatch() {
			t.Error("expected no match")
		}
		if len(stub.requests) != 0 {
			t.Error("expected no model call")
		}
	})

	t.Run("protocol violation", func(t *testing.T) {
		stub := &stubCompleter{answer: "7"}
		_, err := NewLLMOracle(stub).Disambiguate(context.Background(), "q", oracleCandidates)
		if !errors.Is(err, shared.ErrOracleProtocol) {
			t.Errorf("expected ErrOracleProtocol, got %v", err)
		}
	})

	t.Run("transport error", func(t *testing.T) {
		stub := &stubCompleter{err: shared.ErrAPIRequest}
		_, err := NewLLMOracle(stub).Disambiguate(context.Background(), "q", oracleCandidates)
		if err != shared.ErrAPIRequest {
			t.Errorf("expected the completer error unchanged, got %v", err)
		}
	})
	t.Run("empty answer is a protocol violation", func(t *testing.T) {
		for _, content := range []string{"", "  \n "} {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprintf(w, `{"choices":[{"message":{"content":%q},"finish_reason":"stop"}]}`, content)
			}))

			oracle := NewLLMOracle(NewChatClient(ChatConfig{APIKey: "k", BaseURL: ts.URL}))
			got, err := oracle.Disambiguate(context.Background(), "q", oracleCandidates)
			ts.Close()

			if !errors.Is(err, shared.ErrOracleProtocol) {
				t.Errorf("content %q: expected ErrOracleProtocol, got %v", content, err)
			}
			if got.IsMatch() {
				t.Errorf("content %q: expected no match", content)
			}
		}
	})
}

package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/desertthunder/snapsong/internal/models"
	"github.com/desertthunder/snapsong/internal/shared"
)

// OracleSystemPrompt frames the model as the judge.
const OracleSystemPrompt = "You are a music expert helping to match song queries with search results."

const oraclePromptTemplate = `Given a song query extracted from image OCR and its search results, determine which result (if any) is the most likely match.
Since the query comes from OCR, there may be slight errors or inconsistencies in the text.
Compare the artist name and song title, allowing for minor variations due to OCR errors.
Return the index (0-%d) of the best matching result, or -1 if none of the results are a confident match.
Be somewhat flexible due to potential OCR errors, but err on the side of caution if no result is clearly similar.

Input:
%s

Output:
Only return the matching integer or -1 if no match is found. No text, just the integer.`

type oracleInput struct {
	Query      string   `json:"query"`
	Candidates []string `json:"candidates"`
}

// BuildOraclePrompt renders the user prompt for query and candidates.
func BuildOraclePrompt(query string, candidates []models.Candidate) (string, error) {
	rendered := make([]string, len(candidates))
	for i, c := range candidates {
		rendered[i] = c.Render()
	}

	input, err := json.MarshalIndent([]oracleInput{{Query: query, Candidates: rendered}}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode oracle input: %w", err)
	}

	return fmt.Sprintf(oraclePromptTemplate, len(candidates)-1, string(input)), nil
}

// LLMOracle implements [Oracle] with a chat model.
type LLMOracle struct {
	client Completer
}

// NewLLMOracle wraps client.
func NewLLMOracle(client Completer) *LLMOracle {
	return &LLMOracle{client: client}
}

// Disambiguate asks the model for the index of the best candidate.
func (o *LLMOracle) Disambiguate(ctx context.Context, query string, candidates []models.Candidate) (models.MatchDecision, error) {
	if len(candidates) == 0 {
		return models.NoMatch(), nil
	}

	prompt, err := BuildOraclePrompt(query, candidates)
	if err != nil {
		return models.NoMatch(), err
	}

	text, err := o.client.Complete(ctx, ChatRequest{
		Messages: []ChatMessage{
			{Role: "system", Content: OracleSystemPrompt},
			{Role: "user", Content: prompt},
		},
	})
	if errors.Is(err, shared.ErrEmptyExtraction) {
		return models.NoMatch(), fmt.Errorf("%w: empty answer", shared.ErrOracleProtocol)
	}
	if err != nil {
		return models.NoMatch(), err
	}

	return ParseMatchDecision(text, len(candidates))
}

// ParseMatchDecision validates the oracle's answer against n candidates.
//
// The answer must be a bare integer, optionally wrapped in whitespace, quotes or a code fence.
// -1 is [models.NoMatch]; 0..n-1 is [models.Selected]; anything else wraps [shared.ErrOracleProtocol].
func ParseMatchDecision(text string, n int) (models.MatchDecision, error) {
	cleaned := strings.TrimSpace(stripCodeFence(text))
	cleaned = strings.TrimSpace(strings.Trim(cleaned, "\"'`"))

	index, err := strconv.Atoi(cleaned)
	if err != nil {
		return models.NoMatch(), fmt.Errorf("%w: not an integer: %q", shared.ErrOracleProtocol, summarizeBody(text))
	}

	switch {
	case index == models.NoMatchIndex:
		return models.NoMatch(), nil
	case index >= 0 && index < n:
		return models.Selected(index), nil
	default:
		return models.NoMatch(), fmt.Errorf("%w: index %d out of range [0, %d)", shared.ErrOracleProtocol, index, n)
	}
}

func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
	body = strings.TrimSuffix(body, "```")
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		// info string, e.g. ```text
		if _, err := strconv.Atoi(strings.TrimSpace(body[:nl])); err != nil {
			body = body[nl+1:]
		}
	}
	return strings.TrimSpace(body)
}

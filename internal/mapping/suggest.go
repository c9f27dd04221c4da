package mapping

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// AISuggestion is one per-header recommendation from the suggestion service.
type AISuggestion struct {
	CSVHeader         string  `json:"csvHeader"`
	SuggestedCategory string  `json:"suggestedCategory"`
	SuggestedField    string  `json:"suggestedField"`
	CategoryType      string  `json:"categoryType"` // "existing" or "new"
	Confidence        float64 `json:"confidence"`   // 0-100
	Reasoning         string  `json:"reasoning"`
	SampleValue       string  `json:"sampleValue"`
}

// SuggestionResult is the full suggestion service response.
type SuggestionResult struct {
	Mappings      []AISuggestion `json:"mappings"`
	Confidence    float64        `json:"confidence"`
	AnalysisNotes string         `json:"analysisNotes,omitempty"`
}

// Suggester produces column-mapping suggestions. The service is stateless
// and idempotent per request; a second call is never blocked by a pending
// one, and there is no cancellation beyond the context.
type Suggester interface {
	Suggest(ctx context.Context, headers []string, sampleRows [][]string, categories []string, guidance string) (SuggestionResult, error)
}

// HTTPSuggester calls an external LLM mapping endpoint over JSON.
type HTTPSuggester struct {
	endpoint string
	client   *http.Client
}

func NewHTTPSuggester(endpoint string, timeout time.Duration) *HTTPSuggester {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPSuggester{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type suggestRequest struct {
	Headers            []string   `json:"headers"`
	SampleRows         [][]string `json:"sampleRows"`
	ExistingCategories []string   `json:"existingCategories"`
	UserContext        string     `json:"userContext,omitempty"`
}

func (s *HTTPSuggester) Suggest(ctx context.Context, headers []string, sampleRows [][]string, categories []string, guidance string) (SuggestionResult, error) {
	payload, err := json.Marshal(suggestRequest{
		Headers:            headers,
		SampleRows:         sampleRows,
		ExistingCategories: categories,
		UserContext:        guidance,
	})
	if err != nil {
		return SuggestionResult{}, fmt.Errorf("marshal suggest request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return SuggestionResult{}, fmt.Errorf("build suggest request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return SuggestionResult{}, fmt.Errorf("call suggestion service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return SuggestionResult{}, fmt.Errorf("suggestion service returned status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var result SuggestionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return SuggestionResult{}, fmt.Errorf("decode suggestion response: %w", err)
	}
	return result, nil
}

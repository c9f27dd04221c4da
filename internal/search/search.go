// Package search provides full-text search over startups, preferring
// Meilisearch and falling back to Postgres when it is unavailable.
package search

// Query is a normalized search request.
type Query struct {
	Text   string
	Sector string
	Limit  int
	Offset int
}

// StartupRecord is the indexed projection of a startup.
type StartupRecord struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Sector        string  `json:"sector"`
	PipelineStage string  `json:"pipelineStage"`
	Description   string  `json:"description"`
	Score         float64 `json:"score"`
}

// Result is one search hit.
type Result struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Sector        string  `json:"sector"`
	PipelineStage string  `json:"pipelineStage"`
	Snippet       string  `json:"snippet"`
	Score         float64 `json:"score"`
}

// Response is the search payload returned to clients.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

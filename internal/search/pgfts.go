package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFallback serves search directly from Postgres when Meilisearch is down.
type PgFallback struct {
	db *sql.DB
}

func NewPgFallback(db *sql.DB) *PgFallback {
	return &PgFallback{db: db}
}

// Search runs a case-insensitive substring match over name and description.
func (p *PgFallback) Search(ctx context.Context, q Query) ([]Result, int, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	pattern := "%" + escapeLike(q.Text) + "%"
	args := []any{pattern}
	where := `WHERE (name ILIKE $1 OR description ILIKE $1)`
	if q.Sector != "" {
		where += ` AND sector = $2`
		args = append(args, q.Sector)
	}

	var total int
	if err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM startups `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count search results: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, name, sector, pipeline_stage, LEFT(description, 200), score
		FROM startups %s
		ORDER BY score DESC, name ASC
		LIMIT %d OFFSET %d
	`, where, limit, q.Offset)
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search startups: %w", err)
	}
	defer rows.Close()

	results := make([]Result, 0)
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Name, &r.Sector, &r.PipelineStage, &r.Snippet, &r.Score); err != nil {
			return nil, 0, fmt.Errorf("scan search result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate search results: %w", err)
	}
	return results, total, nil
}

// LoadAllRecords reads every startup for reindexing into Meilisearch.
func (p *PgFallback) LoadAllRecords(ctx context.Context) ([]StartupRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, name, sector, pipeline_stage, description, score FROM startups
	`)
	if err != nil {
		return nil, fmt.Errorf("load startups for reindex: %w", err)
	}
	defer rows.Close()

	records := make([]StartupRecord, 0)
	for rows.Next() {
		var record StartupRecord
		if err := rows.Scan(&record.ID, &record.Name, &record.Sector, &record.PipelineStage,
			&record.Description, &record.Score); err != nil {
			return nil, fmt.Errorf("scan startup record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate startup records: %w", err)
	}
	return records, nil
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}

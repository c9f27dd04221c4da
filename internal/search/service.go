package search

import (
	"context"
	"log"
)

// Service is the facade that tries Meilisearch first and falls back to
// Postgres. meili may be nil when Meilisearch is not configured.
type Service struct {
	meili    *Meili
	fallback *PgFallback
}

func NewService(meili *Meili, fallback *PgFallback) *Service {
	return &Service{meili: meili, fallback: fallback}
}

// Search tries Meilisearch if healthy, otherwise queries Postgres directly.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to postgres: %v", err)
	}

	results, total, err := s.fallback.Search(ctx, q)
	if err != nil {
		log.Printf("search: postgres fallback error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexStartup indexes a startup (fire-and-forget to Meilisearch).
func (s *Service) IndexStartup(record StartupRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexStartup(record); err != nil {
			log.Printf("search: index startup %s: %v", record.ID, err)
		}
	}()
}

// IndexStartups bulk-indexes startups (fire-and-forget).
func (s *Service) IndexStartups(records []StartupRecord) {
	if s.meili == nil || !s.meili.Healthy() || len(records) == 0 {
		return
	}
	go func() {
		if err := s.meili.IndexStartups(records); err != nil {
			log.Printf("search: bulk index %d startups: %v", len(records), err)
		}
	}()
}

// DeleteStartup removes a startup from the index (fire-and-forget).
func (s *Service) DeleteStartup(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteStartup(id); err != nil {
			log.Printf("search: delete startup %s: %v", id, err)
		}
	}()
}

// ReindexAllFromPG pushes every startup from Postgres into Meilisearch.
// Called during bootstrap when Meilisearch is healthy.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.fallback == nil {
		return
	}
	records, err := s.fallback.LoadAllRecords(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	if err := s.meili.IndexStartups(records); err != nil {
		log.Printf("search: reindex failed: %v", err)
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}

package search

import (
	"context"
	"strings"

	"taskboard/api/internal/logging"
)

const (
	SourceIndex = "meilisearch"
	SourceStore = "postgres"
)

// Service is the facade that tries the index first and falls back to the store.
type Service struct {
	index    Index
	fallback *StoreSearcher
	log      logging.Logger
}

// NewService creates a search service. index may be nil when Meilisearch is
// not configured.
func NewService(index Index, fallback *StoreSearcher, logger logging.Logger) *Service {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Service{index: index, fallback: fallback, log: logger.With("component", "search")}
}

func (s *Service) indexReady() bool {
	return s.index != nil && s.index.Healthy()
}

// Search never fails; errors degrade to the fallback or an empty response.
func (s *Service) Search(ctx context.Context, q Query) Response {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return Response{Results: []Result{}, Query: q.Text, Source: SourceStore}
	}

	if s.indexReady() {
		results, total, err := s.index.Search(ctx, q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text, Source: SourceIndex}
		}
		s.log.Warn("index search failed, falling back to store", "err", err)
	}

	results, total, err := s.fallback.Search(ctx, q)
	if err != nil {
		s.log.Error("store search failed", "err", err)
		return Response{Results: []Result{}, Query: q.Text, Source: SourceStore}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text, Source: SourceStore}
}

// IndexTask pushes a task to the index in the background.
func (s *Service) IndexTask(record TaskRecord) {
	if !s.indexReady() {
		return
	}
	go func() {
		if err := s.index.IndexTasks([]TaskRecord{record}); err != nil {
			s.log.Warn("index task", "task_id", record.ID, "err", err)
		}
	}()
}

// ReindexAll loads every task from the store and pushes it to the index.
// Called at startup when the index is reachable.
func (s *Service) ReindexAll(ctx context.Context) {
	if !s.indexReady() || s.fallback == nil {
		return
	}
	records, err := s.fallback.LoadAllRecords(ctx)
	if err != nil {
		s.log.Error("reindex load failed", "err", err)
		return
	}
	if err := s.index.IndexTasks(records); err != nil {
		s.log.Error("reindex tasks", "err", err)
		return
	}
	s.log.Info("reindexed tasks", "count", len(records))
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}

package search

import (
	"context"
	"fmt"
	"strings"

	"taskboard/api/internal/store"
)

// TaskFinder is the slice of the task store the fallback needs.
type TaskFinder interface {
	SearchTasks(ctx context.Context, userID, text string, limit int) ([]store.Task, error)
	AllTasks(ctx context.Context) ([]store.Task, error)
}

// StoreSearcher searches tasks with a case-insensitive match in Postgres.
type StoreSearcher struct {
	tasks TaskFinder
}

func NewStoreSearcher(tasks TaskFinder) *StoreSearcher {
	return &StoreSearcher{tasks: tasks}
}

// Healthy is always true; without Postgres there is nothing to search.
func (p *StoreSearcher) Healthy() bool {
	return true
}

func (p *StoreSearcher) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return []Result{}, 0, nil
	}
	tasks, err := p.tasks.SearchTasks(ctx, q.UserID, q.Text, clampLimit(q.Limit))
	if err != nil {
		return nil, 0, fmt.Errorf("store search: %w", err)
	}
	results := make([]Result, 0, len(tasks))
	for _, t := range tasks {
		results = append(results, Result{
			ID:      t.ID,
			Title:   t.Title,
			Snippet: t.Description,
			Date:    t.Date,
			Status:  t.Status,
		})
	}
	return results, len(results), nil
}

// LoadAllRecords returns every task for a full reindex.
func (p *StoreSearcher) LoadAllRecords(ctx context.Context) ([]TaskRecord, error) {
	tasks, err := p.tasks.AllTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	records := make([]TaskRecord, 0, len(tasks))
	for _, t := range tasks {
		records = append(records, RecordFromTask(t))
	}
	return records, nil
}

func RecordFromTask(t store.Task) TaskRecord {
	return TaskRecord{
		ID:          t.ID,
		UserID:      t.UserID,
		Title:       t.Title,
		Description: t.Description,
		Date:        t.Date,
		Status:      t.Status,
	}
}

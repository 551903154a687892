package search

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard/api/internal/logging"
	"taskboard/api/internal/store"
)

type fakeFinder struct {
	searchFn func(ctx context.Context, userID, text string, limit int) ([]store.Task, error)
	allFn    func(ctx context.Context) ([]store.Task, error)
}

func (f fakeFinder) SearchTasks(ctx context.Context, userID, text string, limit int) ([]store.Task, error) {
	if f.searchFn == nil {
		return nil, nil
	}
	return f.searchFn(ctx, userID, text, limit)
}

func (f fakeFinder) AllTasks(ctx context.Context) ([]store.Task, error) {
	if f.allFn == nil {
		return nil, nil
	}
	return f.allFn(ctx)
}

type fakeIndex struct {
	healthy  bool
	searchFn func(ctx context.Context, q Query) ([]Result, int, error)
	indexFn  func(tasks []TaskRecord) error
}

func (f *fakeIndex) Healthy() bool { return f.healthy }

func (f *fakeIndex) Search(ctx context.Context, q Query) ([]Result, int, error) {
	return f.searchFn(ctx, q)
}

func (f *fakeIndex) IndexTasks(tasks []TaskRecord) error {
	if f.indexFn == nil {
		return nil
	}
	return f.indexFn(tasks)
}

func TestSearchUsesStoreWithoutIndex(t *testing.T) {
	var gotUser, gotText string
	var gotLimit int
	finder := fakeFinder{searchFn: func(_ context.Context, userID, text string, limit int) ([]store.Task, error) {
		gotUser, gotText, gotLimit = userID, text, limit
		return []store.Task{{ID: "tsk_1", Title: "Buy milk", Description: "oat", Date: "19 Oct", Status: "Done"}}, nil
	}}
	svc := NewService(nil, NewStoreSearcher(finder), logging.Nop())

	resp := svc.Search(context.Background(), Query{UserID: "usr_1", Text: " milk "})
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "usr_1", gotUser)
	assert.Equal(t, "milk", gotText)
	assert.Equal(t, 20, gotLimit)
	assert.Equal(t, SourceStore, resp.Source)
	assert.Equal(t, Result{ID: "tsk_1", Title: "Buy milk", Snippet: "oat", Date: "19 Oct", Status: "Done"}, resp.Results[0])
}

func TestSearchBlankQueryIsEmpty(t *testing.T) {
	finder := fakeFinder{searchFn: func(context.Context, string, string, int) ([]store.Task, error) {
		t.Fatal("store should not be queried")
		return nil, nil
	}}
	svc := NewService(nil, NewStoreSearcher(finder), nil)

	resp := svc.Search(context.Background(), Query{UserID: "usr_1", Text: "   "})
	assert.NotNil(t, resp.Results)
	assert.Empty(t, resp.Results)
}

func TestSearchPrefersHealthyIndex(t *testing.T) {
	index := &fakeIndex{healthy: true, searchFn: func(_ context.Context, q Query) ([]Result, int, error) {
		return []Result{{ID: "tsk_9"}}, 1, nil
	}}
	finder := fakeFinder{searchFn: func(context.Context, string, string, int) ([]store.Task, error) {
		t.Fatal("store should not be queried")
		return nil, nil
	}}
	svc := NewService(index, NewStoreSearcher(finder), logging.Nop())

	resp := svc.Search(context.Background(), Query{UserID: "usr_1", Text: "milk"})
	assert.Equal(t, SourceIndex, resp.Source)
	assert.Equal(t, 1, resp.Total)
}

func TestSearchFallsBackOnIndexError(t *testing.T) {
	index := &fakeIndex{healthy: true, searchFn: func(context.Context, Query) ([]Result, int, error) {
		return nil, 0, errors.New("boom")
	}}
	finder := fakeFinder{searchFn: func(context.Context, string, string, int) ([]store.Task, error) {
		return []store.Task{{ID: "tsk_1"}}, nil
	}}
	svc := NewService(index, NewStoreSearcher(finder), logging.Nop())

	resp := svc.Search(context.Background(), Query{UserID: "usr_1", Text: "milk"})
	assert.Equal(t, SourceStore, resp.Source)
	require.Len(t, resp.Results, 1)
}

func TestSearchStoreErrorYieldsEmpty(t *testing.T) {
	finder := fakeFinder{searchFn: func(context.Context, string, string, int) ([]store.Task, error) {
		return nil, errors.New("db down")
	}}
	svc := NewService(nil, NewStoreSearcher(finder), logging.Nop())

	resp := svc.Search(context.Background(), Query{UserID: "usr_1", Text: "milk"})
	assert.NotNil(t, resp.Results)
	assert.Zero(t, resp.Total)
}

func TestIndexTaskRunsInBackground(t *testing.T) {
	indexed := make(chan []TaskRecord, 1)
	index := &fakeIndex{healthy: true, indexFn: func(tasks []TaskRecord) error {
		indexed <- tasks
		return nil
	}}
	svc := NewService(index, nil, logging.Nop())

	svc.IndexTask(TaskRecord{ID: "tsk_1", UserID: "usr_1"})
	select {
	case tasks := <-indexed:
		require.Len(t, tasks, 1)
		assert.Equal(t, "tsk_1", tasks[0].ID)
	case <-time.After(time.Second):
		t.Fatal("task was not indexed")
	}
}

func TestIndexTaskSkippedWhenUnhealthy(t *testing.T) {
	index := &fakeIndex{healthy: false, indexFn: func([]TaskRecord) error {
		t.Error("unhealthy index should not receive writes")
		return nil
	}}
	svc := NewService(index, nil, logging.Nop())
	svc.IndexTask(TaskRecord{ID: "tsk_1"})
	svc.ReindexAll(context.Background())
}

func TestReindexAllLoadsFromStore(t *testing.T) {
	var got []TaskRecord
	index := &fakeIndex{healthy: true, indexFn: func(tasks []TaskRecord) error {
		got = tasks
		return nil
	}}
	finder := fakeFinder{allFn: func(context.Context) ([]store.Task, error) {
		return []store.Task{
			{ID: "tsk_1", UserID: "usr_1", Title: "A"},
			{ID: "tsk_2", UserID: "usr_2", Title: "B"},
		}, nil
	}}
	svc := NewService(index, NewStoreSearcher(finder), logging.Nop())

	svc.ReindexAll(context.Background())
	require.Len(t, got, 2)
	assert.Equal(t, "usr_2", got[1].UserID)
}

func TestHitToResultPrefersHighlight(t *testing.T) {
	hit := meili.Hit{
		"id":          json.RawMessage(`"tsk_1"`),
		"title":       json.RawMessage(`"Buy milk"`),
		"description": json.RawMessage(`"oat milk"`),
		"date":        json.RawMessage(`"19 Oct"`),
		"status":      json.RawMessage(`"Done"`),
		"_formatted":  json.RawMessage(`{"title":"Buy <mark>milk</mark>","id":"tsk_1"}`),
	}
	r := hitToResult(hit)
	assert.Equal(t, "tsk_1", r.ID)
	assert.Equal(t, "Buy <mark>milk</mark>", r.Title)
	assert.Equal(t, "oat milk", r.Snippet)
	assert.Equal(t, "19 Oct", r.Date)
	assert.Equal(t, "Done", r.Status)
}

func TestUserFilterQuotes(t *testing.T) {
	assert.Equal(t, `userId = "usr_1"`, userFilter("usr_1"))
}

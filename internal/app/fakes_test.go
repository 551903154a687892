package app

import (
	"context"
	"time"

	"taskboard/api/internal/identity"
	"taskboard/api/internal/logging"
	"taskboard/api/internal/search"
	"taskboard/api/internal/session"
	"taskboard/api/internal/signup"
	"taskboard/api/internal/store"
)

var fixedNow = time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

type fakeStore struct {
	pingFn        func(context.Context) error
	createTaskFn  func(context.Context, store.Task) error
	replaceTaskFn func(context.Context, store.Task) error
	getTaskFn     func(ctx context.Context, userID, taskID string) (store.Task, error)
	listTasksFn   func(ctx context.Context, userID string) ([]store.Task, error)
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

func (f *fakeStore) CreateTask(ctx context.Context, t store.Task) error {
	if f.createTaskFn != nil {
		return f.createTaskFn(ctx, t)
	}
	return nil
}

func (f *fakeStore) ReplaceTask(ctx context.Context, t store.Task) error {
	if f.replaceTaskFn != nil {
		return f.replaceTaskFn(ctx, t)
	}
	return nil
}

func (f *fakeStore) GetTask(ctx context.Context, userID, taskID string) (store.Task, error) {
	if f.getTaskFn != nil {
		return f.getTaskFn(ctx, userID, taskID)
	}
	return store.Task{}, store.ErrNotFound
}

func (f *fakeStore) ListTasks(ctx context.Context, userID string) ([]store.Task, error) {
	if f.listTasksFn != nil {
		return f.listTasksFn(ctx, userID)
	}
	return []store.Task{}, nil
}

type fakeIdentity struct {
	signUpFn         func(ctx context.Context, email, password string) (signup.SignUpResult, error)
	setDisplayNameFn func(ctx context.Context, token, name string) error
	signInFn         func(ctx context.Context, email, password string) (identity.SignInResult, error)
	authenticateFn   func(ctx context.Context, token string) (session.Identity, error)
	signOutFn        func(ctx context.Context, token string) error
}

func (f *fakeIdentity) SignUp(ctx context.Context, email, password string) (signup.SignUpResult, error) {
	if f.signUpFn != nil {
		return f.signUpFn(ctx, email, password)
	}
	return signup.SignUpResult{UserID: "usr_new", SessionToken: "tok_new"}, nil
}

func (f *fakeIdentity) SetDisplayName(ctx context.Context, token, name string) error {
	if f.setDisplayNameFn != nil {
		return f.setDisplayNameFn(ctx, token, name)
	}
	return nil
}

func (f *fakeIdentity) SignIn(ctx context.Context, email, password string) (identity.SignInResult, error) {
	if f.signInFn != nil {
		return f.signInFn(ctx, email, password)
	}
	return identity.SignInResult{UserID: "usr_1", UserName: "Ada", SessionToken: "tok_1"}, nil
}

// Authenticate accepts "tok_<user>" by default.
func (f *fakeIdentity) Authenticate(ctx context.Context, token string) (session.Identity, error) {
	if f.authenticateFn != nil {
		return f.authenticateFn(ctx, token)
	}
	if len(token) > 4 && token[:4] == "tok_" {
		return session.Identity{UserID: "usr_" + token[4:], UserName: "Ada"}, nil
	}
	return session.Identity{}, store.ErrNotFound
}

func (f *fakeIdentity) SignOut(ctx context.Context, token string) error {
	if f.signOutFn != nil {
		return f.signOutFn(ctx, token)
	}
	return nil
}

type fakeSearch struct {
	searchFn func(ctx context.Context, q search.Query) search.Response
	indexed  []search.TaskRecord
}

func (f *fakeSearch) Search(ctx context.Context, q search.Query) search.Response {
	if f.searchFn != nil {
		return f.searchFn(ctx, q)
	}
	return search.Response{Results: []search.Result{}, Query: q.Text}
}

func (f *fakeSearch) IndexTask(record search.TaskRecord) {
	f.indexed = append(f.indexed, record)
}

type fakeSessions struct {
	pingFn func(context.Context) error
}

func (f *fakeSessions) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

type testDeps struct {
	store    *fakeStore
	identity *fakeIdentity
	search   *fakeSearch
	sessions *fakeSessions
}

func newTestDeps() *testDeps {
	return &testDeps{
		store:    &fakeStore{},
		identity: &fakeIdentity{},
		search:   &fakeSearch{},
		sessions: &fakeSessions{},
	}
}

func (d *testDeps) service() *Service {
	svc := New(d.store, d.identity, d.search, d.sessions, logging.Nop())
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func (d *testDeps) server() *HTTPServer {
	return NewHTTPServer(d.service(), "*", logging.Nop())
}

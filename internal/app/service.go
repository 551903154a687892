package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskboard/api/internal/identity"
	"taskboard/api/internal/logging"
	"taskboard/api/internal/mutation"
	"taskboard/api/internal/search"
	"taskboard/api/internal/session"
	"taskboard/api/internal/signup"
	"taskboard/api/internal/store"
	"taskboard/api/internal/task"
	"taskboard/api/internal/util"
)

type dataStore interface {
	Ping(context.Context) error
	CreateTask(context.Context, store.Task) error
	ReplaceTask(context.Context, store.Task) error
	GetTask(ctx context.Context, userID, taskID string) (store.Task, error)
	ListTasks(ctx context.Context, userID string) ([]store.Task, error)
}

type identityService interface {
	signup.IdentityService
	SignIn(ctx context.Context, email, password string) (identity.SignInResult, error)
	Authenticate(ctx context.Context, token string) (session.Identity, error)
	SignOut(ctx context.Context, token string) error
}

type searchService interface {
	Search(ctx context.Context, q search.Query) search.Response
	IndexTask(record search.TaskRecord)
}

type pinger interface {
	Ping(context.Context) error
}

// TaskView is a stored task as returned by the API.
type TaskView struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Date        string    `json:"date"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Service wires the form coordinators to storage, identity and search.
type Service struct {
	store    dataStore
	identity identityService
	search   searchService
	sessions pinger
	log      logging.Logger
	now      func() time.Time

	tasks  *task.Coordinator
	signup *signup.Coordinator
}

func New(dataStore dataStore, identitySvc identityService, searchSvc searchService, sessions pinger, logger logging.Logger) *Service {
	if logger == nil {
		logger = logging.Nop()
	}
	s := &Service{
		store:    dataStore,
		identity: identitySvc,
		search:   searchSvc,
		sessions: sessions,
		log:      logger,
		now:      time.Now,
	}
	s.tasks = task.NewCoordinator(session.ContextSource{}, s,
		task.WithClock(func() time.Time { return s.now() }),
		task.WithObserver(s.observe("task")),
	)
	s.signup = signup.NewCoordinator(identitySvc, s.observe("signup"))
	return s
}

func (s *Service) observe(form string) mutation.Observer {
	return func(phase mutation.Phase, load mutation.LoadState) {
		s.log.Debug("form transition", "form", form, "phase", phase, "loading", load)
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// PingSessions reports whether the session store is reachable. A service
// without a separate session store is always ready.
func (s *Service) PingSessions(ctx context.Context) error {
	if s.sessions == nil {
		return nil
	}
	return s.sessions.Ping(ctx)
}

func (s *Service) Authenticate(ctx context.Context, token string) (session.Identity, error) {
	return s.identity.Authenticate(ctx, token)
}

func (s *Service) SignIn(ctx context.Context, email, password string) (identity.SignInResult, error) {
	return s.identity.SignIn(ctx, email, password)
}

func (s *Service) SignOut(ctx context.Context, token string) error {
	return s.identity.SignOut(ctx, token)
}

func (s *Service) Register(ctx context.Context, values map[string]string) (mutation.Outcome, error) {
	return s.signup.Register(ctx, values)
}

func (s *Service) SubmitNewTask(ctx context.Context, values map[string]string) (mutation.Outcome, error) {
	return s.tasks.Create(ctx, values)
}

// SubmitTaskEdit runs the edit form for taskID. The stored task is only
// loaded for a signed-in caller; anonymous submits fall through to the
// coordinator, which leaves the dialog untouched.
func (s *Service) SubmitTaskEdit(ctx context.Context, taskID string, values map[string]string) (mutation.Outcome, error) {
	var stored task.Record
	if who := session.FromContext(ctx); who.Authenticated() {
		current, err := s.store.GetTask(ctx, who.UserID, taskID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return mutation.Outcome{}, errTaskNotFound
			}
			return mutation.Outcome{}, fmt.Errorf("load task: %w", err)
		}
		stored = recordFromStore(current)
	}
	return s.tasks.Edit(ctx, taskID, stored, values)
}

// TaskEditForm returns the values the edit dialog opens with.
func (s *Service) TaskEditForm(ctx context.Context, userID, taskID string) (map[string]string, error) {
	current, err := s.store.GetTask(ctx, userID, taskID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errTaskNotFound
		}
		return nil, fmt.Errorf("load task: %w", err)
	}
	return s.tasks.EditForm(recordFromStore(current)), nil
}

func (s *Service) ListTasks(ctx context.Context, userID string) ([]TaskView, error) {
	tasks, err := s.store.ListTasks(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	views := make([]TaskView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, taskView(t))
	}
	return views, nil
}

func (s *Service) SearchTasks(ctx context.Context, userID, text string, limit int) search.Response {
	return s.search.Search(ctx, search.Query{UserID: userID, Text: text, Limit: limit})
}

// CreateTask persists a normalized record for userID.
func (s *Service) CreateTask(ctx context.Context, userID string, record task.Record) error {
	now := s.now().UTC()
	row := store.Task{
		ID:          util.NewID("tsk"),
		UserID:      userID,
		Title:       record.Title,
		Description: record.Description,
		Date:        record.Date,
		Status:      string(record.Status),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateTask(ctx, row); err != nil {
		return err
	}
	s.search.IndexTask(search.RecordFromTask(row))
	logging.FromContext(ctx).Info("task created", "task_id", row.ID)
	return nil
}

// UpdateTask replaces the editable fields of a task owned by userID.
func (s *Service) UpdateTask(ctx context.Context, userID, taskID string, record task.Record) error {
	row := store.Task{
		ID:          taskID,
		UserID:      userID,
		Title:       record.Title,
		Description: record.Description,
		Date:        record.Date,
		Status:      string(record.Status),
		UpdatedAt:   s.now().UTC(),
	}
	if err := s.store.ReplaceTask(ctx, row); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errTaskNotFound
		}
		return err
	}
	s.search.IndexTask(search.RecordFromTask(row))
	logging.FromContext(ctx).Info("task updated", "task_id", taskID)
	return nil
}

func recordFromStore(t store.Task) task.Record {
	return task.Record{
		Title:       t.Title,
		Description: t.Description,
		Date:        t.Date,
		Status:      task.Status(t.Status),
	}
}

func taskView(t store.Task) TaskView {
	return TaskView{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Date:        t.Date,
		Status:      t.Status,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

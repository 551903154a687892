package task

import (
	"context"
	"fmt"
	"time"

	"taskboard/api/internal/form"
	"taskboard/api/internal/logging"
	"taskboard/api/internal/mutation"
	"taskboard/api/internal/session"
)

// LandingView is where the create flow navigates.
const LandingView = "/"

type SessionService interface {
	CurrentUser(ctx context.Context) (session.Identity, error)
}

type Service interface {
	CreateTask(ctx context.Context, userID string, record Record) error
	UpdateTask(ctx context.Context, userID, taskID string, record Record) error
}

// Coordinator runs the create and edit task forms.
type Coordinator struct {
	sessions SessionService
	tasks    Service
	now      func() time.Time
	observer mutation.Observer
}

type Option func(*Coordinator)

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

func WithObserver(observer mutation.Observer) Option {
	return func(c *Coordinator) { c.observer = observer }
}

func NewCoordinator(sessions SessionService, tasks Service, opts ...Option) *Coordinator {
	c := &Coordinator{sessions: sessions, tasks: tasks, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Create validates and submits the new-task form. Without a signed-in user
// the task is not created, yet the outcome still navigates to LandingView.
func (c *Coordinator) Create(ctx context.Context, values map[string]string) (mutation.Outcome, error) {
	schema := Schema(c.now())
	tracker := mutation.NewTracker(c.observer)
	state := schema.NewState(values)

	if errs := schema.Validate(state); !errs.Empty() {
		tracker.Move(mutation.PhaseIdleWithErrors)
		return tracker.Outcome(state, errs), nil
	}

	identity, err := c.sessions.CurrentUser(ctx)
	if err != nil {
		return mutation.Outcome{}, fmt.Errorf("current user: %w", err)
	}

	record := Normalize(state)
	skipped := !identity.Authenticated()
	if skipped {
		logging.FromContext(ctx).Debug("task create skipped without session")
	} else {
		tracker.Move(mutation.PhaseSubmitting)
		if err := c.tasks.CreateTask(ctx, identity.UserID, record); err != nil {
			return failed(tracker, state, fmt.Errorf("create task: %w", err))
		}
		tracker.Move(mutation.PhaseSucceeded)
	}

	tracker.Move(mutation.PhaseNavigated)
	outcome := tracker.Outcome(state, nil)
	outcome.Redirect = LandingView
	outcome.Skipped = skipped
	return outcome, nil
}

// Edit validates and submits the edit form for taskID, starting from the
// stored record. Without a signed-in user nothing happens and the dialog
// stays open.
func (c *Coordinator) Edit(ctx context.Context, taskID string, stored Record, values map[string]string) (mutation.Outcome, error) {
	now := c.now()
	schema := Schema(now).WithDefaults(EditDefaults(stored, now.Year()))
	tracker := mutation.NewTracker(c.observer)
	state := schema.NewState(values)

	if errs := schema.Validate(state); !errs.Empty() {
		tracker.Move(mutation.PhaseIdleWithErrors)
		return tracker.Outcome(state, errs), nil
	}

	identity, err := c.sessions.CurrentUser(ctx)
	if err != nil {
		return mutation.Outcome{}, fmt.Errorf("current user: %w", err)
	}
	if !identity.Authenticated() {
		logging.FromContext(ctx).Debug("task edit skipped without session", "task_id", taskID)
		outcome := tracker.Outcome(state, nil)
		outcome.Skipped = true
		return outcome, nil
	}

	tracker.Move(mutation.PhaseSubmitting)
	if err := c.tasks.UpdateTask(ctx, identity.UserID, taskID, Normalize(state)); err != nil {
		return failed(tracker, state, fmt.Errorf("update task: %w", err))
	}
	tracker.Move(mutation.PhaseSucceeded)
	tracker.Move(mutation.PhaseNavigated)

	outcome := tracker.Outcome(state, nil)
	outcome.Closed = true
	return outcome, nil
}

// EditForm returns the values the edit dialog starts from.
func (c *Coordinator) EditForm(stored Record) map[string]string {
	now := c.now()
	return Schema(now).WithDefaults(EditDefaults(stored, now.Year())).NewState(nil).Values()
}

// failed ends a submit the task service refused. Rejections stay on the form
// with their message; any other error is returned to the caller.
func failed(tracker *mutation.Tracker, state form.State, err error) (mutation.Outcome, error) {
	tracker.Move(mutation.PhaseFailed)
	msg, ok := mutation.UserMessage(err)
	if !ok {
		return mutation.Outcome{}, err
	}
	tracker.Move(mutation.PhaseIdleWithErrors)
	outcome := tracker.Outcome(state, nil)
	outcome.Message = msg
	return outcome, nil
}

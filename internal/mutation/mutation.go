// Package mutation tracks the lifecycle of one form submission: the loading
// state a client renders and the phase the attempt ended in.
package mutation

import (
	"errors"
	"sync"

	"taskboard/api/internal/form"
)

// LoadState is what the submit control shows.
type LoadState string

const (
	LoadIdle      LoadState = "idle"
	LoadLoading   LoadState = "loading"
	LoadSucceeded LoadState = "succeeded"
	LoadFailed    LoadState = "failed"
)

// Phase is where a single attempt is in
// idle -> submitting -> succeeded -> navigated | failed -> idle-with-errors.
type Phase string

const (
	PhaseIdle           Phase = "idle"
	PhaseSubmitting     Phase = "submitting"
	PhaseSucceeded      Phase = "succeeded"
	PhaseNavigated      Phase = "navigated"
	PhaseFailed         Phase = "failed"
	PhaseIdleWithErrors Phase = "idle-with-errors"
)

// Terminal reports whether p ends an attempt.
func (p Phase) Terminal() bool {
	return p == PhaseNavigated || p == PhaseIdleWithErrors
}

var transitions = map[Phase][]Phase{
	PhaseIdle:           {PhaseSubmitting, PhaseIdleWithErrors, PhaseNavigated},
	PhaseSubmitting:     {PhaseSucceeded, PhaseFailed},
	PhaseSucceeded:      {PhaseSubmitting, PhaseNavigated, PhaseIdle},
	PhaseFailed:         {PhaseIdleWithErrors},
	PhaseIdleWithErrors: {PhaseSubmitting, PhaseIdleWithErrors},
	PhaseNavigated:      {},
}

// CanTransition reports whether from -> to is a legal step. A succeeded step
// may go back to submitting for a chained call, and idle may navigate
// directly when a mutation is skipped.
func CanTransition(from, to Phase) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Outcome is what a coordinator hands back to the presentation layer.
type Outcome struct {
	Phase   Phase
	Loading LoadState
	Values  map[string]string
	Errors  form.FieldErrors
	// Message is the remote service rejection, shown verbatim.
	Message string
	// Redirect is the view to navigate to, empty when staying on the form.
	Redirect string
	// Closed is set when an edit dialog should close.
	Closed bool
	// Skipped is set when the mutation did not run for lack of a session.
	Skipped bool
	// Token is the session token issued by a completed signup.
	Token string
}

// Rejection is an error the remote service reports for the user to read.
// Its text is shown on the form as is.
type Rejection struct {
	msg string
}

func Reject(msg string) *Rejection {
	return &Rejection{msg: msg}
}

func (r *Rejection) Error() string { return r.msg }

func (r *Rejection) UserMessage() string { return r.msg }

// UserMessage returns the text to show for err when something in its chain
// carries one. Failures without a user message belong to the caller.
func UserMessage(err error) (string, bool) {
	var carrier interface{ UserMessage() string }
	if errors.As(err, &carrier) {
		return carrier.UserMessage(), true
	}
	return "", false
}

// Observer is notified on every tracker change.
type Observer func(Phase, LoadState)

// Tracker holds the current phase and load state of one form instance. It is
// safe for concurrent use but does not stop a second submit while one is
// in flight.
type Tracker struct {
	mu       sync.Mutex
	phase    Phase
	load     LoadState
	history  []Phase
	observer Observer
}

func NewTracker(observer Observer) *Tracker {
	return &Tracker{
		phase:    PhaseIdle,
		load:     LoadIdle,
		history:  []Phase{PhaseIdle},
		observer: observer,
	}
}

// Move records a phase change and reports whether the step was legal. Illegal
// steps are recorded anyway.
func (t *Tracker) Move(to Phase) bool {
	t.mu.Lock()
	ok := CanTransition(t.phase, to)
	t.phase = to
	t.history = append(t.history, to)
	switch to {
	case PhaseSubmitting:
		t.load = LoadLoading
	case PhaseSucceeded:
		t.load = LoadSucceeded
	case PhaseFailed, PhaseIdleWithErrors:
		if t.load == LoadLoading {
			t.load = LoadFailed
		}
	case PhaseIdle:
		t.load = LoadIdle
	}
	phase, load, observer := t.phase, t.load, t.observer
	t.mu.Unlock()

	if observer != nil {
		observer(phase, load)
	}
	return ok
}

func (t *Tracker) Phase() Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.phase
}

func (t *Tracker) Load() LoadState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.load
}

// History returns every phase visited, starting with idle.
func (t *Tracker) History() []Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Phase, len(t.history))
	copy(out, t.history)
	return out
}

// Outcome snapshots the tracker into an Outcome.
func (t *Tracker) Outcome(state form.State, errs form.FieldErrors) Outcome {
	if errs == nil {
		errs = form.FieldErrors{}
	}
	return Outcome{
		Phase:   t.Phase(),
		Loading: t.Load(),
		Values:  state.Values(),
		Errors:  errs,
	}
}

// Package signup runs the registration form: validation, the consent
// cascade, and the chained sign-up then display-name calls.
package signup

import (
	"context"
	"fmt"

	"taskboard/api/internal/form"
	"taskboard/api/internal/logging"
	"taskboard/api/internal/mutation"
)

// Form field names. The consent checkbox keeps the name the client posts.
const (
	FieldName     = "name"
	FieldEmail    = "email"
	FieldPassword = "password"
	FieldConsent  = "checkbox"
)

// LandingView is where a completed registration navigates.
const LandingView = "/"

// Record is one registration attempt. It lives only for the request.
type Record struct {
	Name     string
	Email    string
	Password string
	Consent  bool
}

// SignUpResult is what the identity service returns for a new account.
type SignUpResult struct {
	UserID       string
	SessionToken string
}

type IdentityService interface {
	SignUp(ctx context.Context, email, password string) (SignUpResult, error)
	SetDisplayName(ctx context.Context, sessionToken, name string) error
}

// ConsentCascade resets the credentials whenever consent is missing so the
// user retypes them together with ticking the box.
var ConsentCascade = form.Cascade{
	Gate:       FieldConsent,
	Dependents: []string{FieldEmail, FieldPassword},
}

func Schema() *form.Schema {
	return form.NewSchema(
		form.Field{Name: FieldName, Rules: []form.Rule{
			form.Required("Write your name"),
			form.MinLength(2, "Write the correct name"),
		}},
		form.Field{Name: FieldEmail, Rules: []form.Rule{
			form.Required("Enter your email"),
			form.Email("Wrong e-mail, enter a correct e-mail"),
		}},
		form.Field{Name: FieldPassword, Rules: []form.Rule{
			form.Required("Create a password"),
			form.MinLength(6, "Minimum password length is 6"),
		}},
		form.Field{Name: FieldConsent, Kind: form.KindCheckbox, Rules: []form.Rule{
			form.Required("Accept"),
		}},
	)
}

func recordFrom(state form.State) Record {
	return Record{
		Name:     state.Value(FieldName),
		Email:    state.Value(FieldEmail),
		Password: state.Value(FieldPassword),
		Consent:  state.Checked(FieldConsent),
	}
}

type Coordinator struct {
	identity IdentityService
	observer mutation.Observer
}

func NewCoordinator(identity IdentityService, observer mutation.Observer) *Coordinator {
	return &Coordinator{identity: identity, observer: observer}
}

// Register validates the form, creates the identity and then assigns the
// display name with the token the first call returned. Navigation only
// happens once both calls succeeded. Nothing is retried.
func (c *Coordinator) Register(ctx context.Context, values map[string]string) (mutation.Outcome, error) {
	logger := logging.FromContext(ctx)
	schema := Schema()
	tracker := mutation.NewTracker(c.observer)
	state := schema.NewState(values)

	if errs := schema.Validate(state); !errs.Empty() {
		state, errs = ConsentCascade.Apply(state, errs)
		tracker.Move(mutation.PhaseIdleWithErrors)
		return tracker.Outcome(state, errs), nil
	}

	record := recordFrom(state)
	// The name is held here, outside the identity call, for the second step.
	displayName := record.Name

	tracker.Move(mutation.PhaseSubmitting)
	result, err := c.identity.SignUp(ctx, record.Email, record.Password)
	if err != nil {
		msg, ok := mutation.UserMessage(err)
		if !ok {
			tracker.Move(mutation.PhaseFailed)
			return mutation.Outcome{}, fmt.Errorf("sign up: %w", err)
		}
		logger.Info("sign up rejected", "error", err)
		state, errs := ConsentCascade.Reset(state, form.FieldErrors{})
		return failed(tracker, state, errs, msg), nil
	}
	tracker.Move(mutation.PhaseSucceeded)

	tracker.Move(mutation.PhaseSubmitting)
	if err := c.identity.SetDisplayName(ctx, result.SessionToken, displayName); err != nil {
		logger.Warn("display name not set after sign up", "user_id", result.UserID, "error", err)
		msg, ok := mutation.UserMessage(err)
		if !ok {
			tracker.Move(mutation.PhaseFailed)
			return mutation.Outcome{}, fmt.Errorf("set display name: %w", err)
		}
		return failed(tracker, state, form.FieldErrors{}, msg), nil
	}
	tracker.Move(mutation.PhaseSucceeded)

	tracker.Move(mutation.PhaseNavigated)
	outcome := tracker.Outcome(state, nil)
	outcome.Redirect = LandingView
	outcome.Token = result.SessionToken
	return outcome, nil
}

func failed(tracker *mutation.Tracker, state form.State, errs form.FieldErrors, msg string) mutation.Outcome {
	tracker.Move(mutation.PhaseFailed)
	tracker.Move(mutation.PhaseIdleWithErrors)
	outcome := tracker.Outcome(state, errs)
	outcome.Message = msg
	return outcome
}

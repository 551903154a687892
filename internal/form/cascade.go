package form

// Cascade ties dependent fields to a gate field. When the gate fails
// validation the dependents are reset to their defaults and keep whatever
// error they already had.
type Cascade struct {
	Gate       string
	Dependents []string
}

// Apply runs the cascade after a validation pass. It returns new values and
// never changes its arguments.
func (c Cascade) Apply(state State, errs FieldErrors) (State, FieldErrors) {
	if errs.Empty() || !errs.Has(c.Gate) {
		return state, errs.Clone()
	}
	return c.Reset(state, errs)
}

// Reset clears every dependent value while keeping its error.
func (c Cascade) Reset(state State, errs FieldErrors) (State, FieldErrors) {
	next, out := state, errs.Clone()
	for _, name := range c.Dependents {
		next, out = ResetField(next, out, name, true)
	}
	return next, out
}

// ResetField sets name back to its default. With keepError false its error
// is dropped too.
func ResetField(state State, errs FieldErrors, name string, keepError bool) (State, FieldErrors) {
	out := errs.Clone()
	if !keepError {
		delete(out, name)
	}
	return state.Reset(name), out
}

// Package form holds per-request form state, ordered field rules and the
// cross-field reset cascade used by the task and signup forms.
package form

import (
	"sort"
	"strconv"
	"strings"
)

// State is the value set of one form instance. The zero value is usable.
// Methods that change a field return a new State; the receiver is not touched.
type State struct {
	values   map[string]string
	defaults map[string]string
}

func NewState(defaults, values map[string]string) State {
	state := State{
		values:   make(map[string]string, len(defaults)+len(values)),
		defaults: make(map[string]string, len(defaults)),
	}
	for name, value := range defaults {
		state.defaults[name] = value
		state.values[name] = value
	}
	for name, value := range values {
		state.values[name] = value
	}
	return state
}

func (s State) Value(name string) string {
	return s.values[name]
}

// Checked reads a checkbox value. "true", "1" and "on" count as checked.
func (s State) Checked(name string) bool {
	return isChecked(s.values[name])
}

// With returns a copy of s with name set to value.
func (s State) With(name, value string) State {
	next := s.clone()
	next.values[name] = value
	return next
}

// Reset returns a copy of s with name set back to its default value.
func (s State) Reset(name string) State {
	return s.With(name, s.defaults[name])
}

// Values returns a copy of every field value.
func (s State) Values() map[string]string {
	out := make(map[string]string, len(s.values))
	for name, value := range s.values {
		out[name] = value
	}
	return out
}

func (s State) clone() State {
	next := State{
		values:   make(map[string]string, len(s.values)+1),
		defaults: s.defaults,
	}
	for name, value := range s.values {
		next.values[name] = value
	}
	return next
}

// FieldErrors maps a field name to its message. A field without an entry is valid.
type FieldErrors map[string]string

func (e FieldErrors) Has(name string) bool {
	_, ok := e[name]
	return ok
}

func (e FieldErrors) Empty() bool {
	return len(e) == 0
}

func (e FieldErrors) Clone() FieldErrors {
	out := make(FieldErrors, len(e))
	for name, message := range e {
		out[name] = message
	}
	return out
}

// Fields returns the names with errors, sorted.
func (e FieldErrors) Fields() []string {
	names := make([]string, 0, len(e))
	for name := range e {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func isChecked(value string) bool {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "on" {
		return true
	}
	parsed, err := strconv.ParseBool(value)
	return err == nil && parsed
}

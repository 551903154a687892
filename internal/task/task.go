// Package task validates the new-task and edit-task forms and hands the
// normalized record to the task service.
package task

import (
	"strings"
	"time"

	"taskboard/api/internal/datenorm"
	"taskboard/api/internal/form"
)

type Status string

const (
	StatusInProgress Status = "In progress"
	StatusDone       Status = "Done"
)

var Statuses = []Status{StatusInProgress, StatusDone}

// Form field names.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldDate        = "date"
	FieldStatus      = "status"
)

// Record is the task as sent to the task service. Date holds the display
// value ("02 Jan") once normalized.
type Record struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Status      Status `json:"status"`
}

// Schema returns the task form fields. The date defaults to today.
func Schema(now time.Time) *form.Schema {
	statuses := make([]string, len(Statuses))
	for i, status := range Statuses {
		statuses[i] = string(status)
	}
	return form.NewSchema(
		form.Field{Name: FieldTitle, Rules: []form.Rule{
			form.NonEmptyTrimmed("Title field is empty"),
		}},
		form.Field{Name: FieldDescription, Rules: []form.Rule{
			form.NonEmptyTrimmed("Description field is empty"),
		}},
		form.Field{Name: FieldDate, Default: datenorm.Today(now), Rules: []form.Rule{
			form.Required("Choose a date"),
			form.DateSanity("Choose a correct date"),
		}},
		form.Field{Name: FieldStatus, Default: string(StatusInProgress), Rules: []form.Rule{
			form.OneOf("Choose a status", statuses...),
		}},
	)
}

// Normalize builds the record to send from a validated form state.
func Normalize(state form.State) Record {
	return Record{
		Title:       strings.TrimSpace(state.Value(FieldTitle)),
		Description: strings.TrimSpace(state.Value(FieldDescription)),
		Date:        datenorm.ToDisplay(state.Value(FieldDate)),
		Status:      Status(state.Value(FieldStatus)),
	}
}

// EditDefaults turns a stored record into edit form values. The stored date
// has no year, so year is injected.
func EditDefaults(stored Record, year int) map[string]string {
	return map[string]string{
		FieldTitle:       stored.Title,
		FieldDescription: stored.Description,
		FieldDate:        datenorm.ToCalendar(stored.Date, year),
		FieldStatus:      string(stored.Status),
	}
}

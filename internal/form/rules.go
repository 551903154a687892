package form

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type Kind int

const (
	KindText Kind = iota
	KindCheckbox
)

// Rule is one check on a field value. Message is reported when it fails.
type Rule struct {
	Name    string
	Message string
	check   func(value string, kind Kind) bool
}

func (r Rule) passes(value string, kind Kind) bool {
	return r.check(value, kind)
}

// NonEmptyTrimmed fails on values that are empty or only whitespace.
func NonEmptyTrimmed(message string) Rule {
	return Rule{Name: "non_empty", Message: message, check: func(value string, _ Kind) bool {
		return strings.TrimSpace(value) != ""
	}}
}

// Required fails on an empty text value or an unchecked checkbox.
func Required(message string) Rule {
	return Rule{Name: "required", Message: message, check: func(value string, kind Kind) bool {
		if kind == KindCheckbox {
			return isChecked(value)
		}
		return value != ""
	}}
}

// MinLength counts runes. Empty values pass; pair it with Required.
func MinLength(n int, message string) Rule {
	return Rule{Name: "min_length", Message: message, check: func(value string, _ Kind) bool {
		return value == "" || utf8.RuneCountInString(value) >= n
	}}
}

// Pattern fails when a non-empty value does not match re.
func Pattern(re *regexp.Regexp, message string) Rule {
	return Rule{Name: "pattern", Message: message, check: func(value string, _ Kind) bool {
		return value == "" || re.MatchString(value)
	}}
}

// Email is the e-mail shape check. Empty values pass; pair it with Required.
func Email(message string) Rule {
	return Rule{Name: "email", Message: message, check: func(value string, _ Kind) bool {
		return value == "" || validate.Var(value, "email") == nil
	}}
}

// OneOf fails when value is not one of allowed.
func OneOf(message string, allowed ...string) Rule {
	return Rule{Name: "one_of", Message: message, check: func(value string, _ Kind) bool {
		for _, candidate := range allowed {
			if value == candidate {
				return true
			}
		}
		return false
	}}
}

// DateSanity only looks at the year: the text before the first "-" must be
// four digits starting with 2. It does not check that the date exists.
func DateSanity(message string) Rule {
	return Rule{Name: "date_sanity", Message: message, check: func(value string, _ Kind) bool {
		year, _, _ := strings.Cut(value, "-")
		if len(year) != 4 || year[0] != '2' {
			return false
		}
		for i := 1; i < len(year); i++ {
			if year[i] < '0' || year[i] > '9' {
				return false
			}
		}
		return true
	}}
}

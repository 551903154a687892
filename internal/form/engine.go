package form

// Field declares one form input and its rules in evaluation order.
type Field struct {
	Name    string
	Kind    Kind
	Default string
	Rules   []Rule
}

// Schema is an ordered set of fields.
type Schema struct {
	fields []Field
}

func NewSchema(fields ...Field) *Schema {
	return &Schema{fields: fields}
}

// NewState builds a form state from submitted values over the schema defaults.
// Values for undeclared fields are dropped.
func (s *Schema) NewState(values map[string]string) State {
	defaults := make(map[string]string, len(s.fields))
	kept := make(map[string]string, len(s.fields))
	for _, field := range s.fields {
		defaults[field.Name] = field.Default
		if value, ok := values[field.Name]; ok {
			kept[field.Name] = value
		}
	}
	return NewState(defaults, kept)
}

// WithDefaults returns a copy of the schema with field defaults replaced.
// The edit form uses it to start from a stored task.
func (s *Schema) WithDefaults(defaults map[string]string) *Schema {
	fields := make([]Field, len(s.fields))
	copy(fields, s.fields)
	for i := range fields {
		if value, ok := defaults[fields[i].Name]; ok {
			fields[i].Default = value
		}
	}
	return &Schema{fields: fields}
}

// Validate runs every field's rules. Each field reports at most its first
// failing rule. state is only read.
func (s *Schema) Validate(state State) FieldErrors {
	errs := FieldErrors{}
	for _, field := range s.fields {
		if message, ok := ValidateField(field, state.Value(field.Name)); !ok {
			errs[field.Name] = message
		}
	}
	return errs
}

// ValidateField returns the first failing rule's message.
func ValidateField(field Field, value string) (string, bool) {
	for _, rule := range field.Rules {
		if !rule.passes(value, field.Kind) {
			return rule.Message, false
		}
	}
	return "", true
}

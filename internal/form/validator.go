// Package form validates submitted form values against the resource schema
// and assembles validated values into upstream-ready payloads.
package form

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pitabwire/mercura/model"
)

// Validator checks submitted values against form fields backed by the
// resource schema.
type Validator struct{}

// NewValidator creates a Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateFields checks the given values against a field subset. Used for
// per-step wizard validation (only the step's fields) and for full-form
// validation on submit (all fields). Every failing field is reported so the
// frontend can mark them all at once.
func (v *Validator) ValidateFields(values map[string]any, fields []model.FormField, schemaByName map[string]model.FieldSchema) []model.FieldError {
	var errs []model.FieldError

	for _, field := range fields {
		if field.ReadOnly {
			continue
		}
		fs, hasSchema := schemaByName[field.Name]
		required := fs.Required
		if field.Required != nil {
			required = *field.Required
		}

		raw, present := values[field.Name]
		if isBlank(raw) {
			present = false
		}

		if !present {
			if required {
				errs = append(errs, model.FieldError{
					Field:   field.Name,
					Code:    "REQUIRED",
					Message: fmt.Sprintf("%s is required", fieldLabel(field)),
				})
			}
			continue
		}
		if !hasSchema {
			continue
		}

		val, err := coerceFormValue(raw, fs)
		if err != nil {
			errs = append(errs, model.FieldError{
				Field:   field.Name,
				Code:    "INVALID_VALUE",
				Message: fmt.Sprintf("%s is invalid: %v", fieldLabel(field), err),
			})
			continue
		}

		errs = append(errs, checkConstraints(field, fs, val)...)
	}

	return errs
}

func checkConstraints(field model.FormField, fs model.FieldSchema, val any) []model.FieldError {
	var errs []model.FieldError

	if fs.Min != nil || fs.Max != nil {
		if num, ok := asNumber(val); ok {
			if fs.Min != nil && num < *fs.Min {
				errs = append(errs, model.FieldError{
					Field:   field.Name,
					Code:    "MIN",
					Message: fmt.Sprintf("%s must be at least %v", fieldLabel(field), *fs.Min),
				})
			}
			if fs.Max != nil && num > *fs.Max {
				errs = append(errs, model.FieldError{
					Field:   field.Name,
					Code:    "MAX",
					Message: fmt.Sprintf("%s must be at most %v", fieldLabel(field), *fs.Max),
				})
			}
		}
	}

	if fs.Pattern != "" {
		if s, ok := val.(string); ok {
			re, err := regexp.Compile(fs.Pattern)
			if err == nil && !re.MatchString(s) {
				errs = append(errs, model.FieldError{
					Field:   field.Name,
					Code:    "PATTERN",
					Message: fmt.Sprintf("%s has an invalid format", fieldLabel(field)),
				})
			}
		}
	}

	return errs
}

// SchemaByName indexes a resource schema for field lookups.
func SchemaByName(fields []model.FieldSchema) map[string]model.FieldSchema {
	out := make(map[string]model.FieldSchema, len(fields))
	for _, f := range fields {
		out[f.Name] = f
	}
	return out
}

// lenient relaxes type coercion for form input: HTML forms submit numbers
// and booleans as strings.
func lenient(fs model.FieldSchema) model.FieldSchema {
	fs.Coerce = true
	return fs
}

func fieldLabel(field model.FormField) string {
	if field.Label != "" {
		return field.Label
	}
	return field.Name
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

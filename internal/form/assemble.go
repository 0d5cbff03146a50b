package form

import (
	"fmt"
	"strings"

	"github.com/pitabwire/mercura/internal/schema"
	"github.com/pitabwire/mercura/model"
)

// Assembler turns validated form values into an upstream-ready record.
type Assembler struct{}

// NewAssembler creates an Assembler.
func NewAssembler() *Assembler {
	return &Assembler{}
}

// BuildPayload assembles the record that will be posted upstream. Only
// declared form fields are copied, values are coerced to their schema types,
// and declared transforms are applied. Unknown keys in values are ignored so
// a client cannot smuggle extra fields into the upstream write.
func (a *Assembler) BuildPayload(values map[string]any, fields []model.FormField, schemaByName map[string]model.FieldSchema) (model.Record, error) {
	payload := model.Record{}

	for _, field := range fields {
		if field.ReadOnly {
			continue
		}
		raw, present := values[field.Name]
		if isBlank(raw) {
			present = false
		}
		if !present {
			if field.Default != nil {
				payload[field.Name] = field.Default
			}
			continue
		}

		fs, hasSchema := schemaByName[field.Name]
		if !hasSchema {
			payload[field.Name] = raw
			continue
		}

		val, err := coerceFormValue(raw, fs)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field.Name, err)
		}
		payload[field.Name] = applyTransform(val, fs)
	}

	return payload, nil
}

// coerceFormValue coerces a submitted value, additionally accepting a bool
// for a two-value enum. Toggle inputs submit true/false while the upstream
// stores the enum pair, first value meaning "on".
func coerceFormValue(raw any, fs model.FieldSchema) (any, error) {
	if fs.Type == model.FieldTypeEnum && len(fs.Values) == 2 {
		if b, ok := raw.(bool); ok {
			if b {
				return fs.Values[0], nil
			}
			return fs.Values[1], nil
		}
	}
	return schema.CoerceValue(raw, lenient(fs))
}

func applyTransform(val any, fs model.FieldSchema) any {
	switch fs.Transform {
	case "uppercase":
		if s, ok := val.(string); ok {
			return strings.ToUpper(s)
		}
	case "lowercase":
		if s, ok := val.(string); ok {
			return strings.ToLower(s)
		}
	case "trim":
		if s, ok := val.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return val
}

// Package schema normalizes raw upstream records against a declared resource
// schema, coercing loosely typed values and dropping records that cannot be
// repaired.
package schema

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pitabwire/mercura/model"
)

// Problem describes one record that failed normalization.
type Problem struct {
	Index  int    `json:"index"`
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Coercer normalizes records against a field schema.
type Coercer struct{}

// NewCoercer creates a Coercer.
func NewCoercer() *Coercer {
	return &Coercer{}
}

// Normalize coerces every record against the schema. Records with a missing
// required field or an un-coercible value are dropped and reported. Fields
// not declared in the schema pass through untouched.
func (c *Coercer) Normalize(records []model.Record, fields []model.FieldSchema) ([]model.Record, []Problem) {
	out := make([]model.Record, 0, len(records))
	var problems []Problem

	for i, rec := range records {
		coerced, problem := c.normalizeOne(rec, fields)
		if problem != nil {
			problem.Index = i
			problems = append(problems, *problem)
			continue
		}
		out = append(out, coerced)
	}
	return out, problems
}

func (c *Coercer) normalizeOne(rec model.Record, fields []model.FieldSchema) (model.Record, *Problem) {
	out := rec.Clone()

	for _, f := range fields {
		raw, present := out[f.Name]
		if !present || raw == nil {
			if f.Required {
				return nil, &Problem{Field: f.Name, Reason: "required field missing"}
			}
			continue
		}

		val, err := CoerceValue(raw, f)
		if err != nil {
			if f.Required {
				return nil, &Problem{Field: f.Name, Reason: err.Error()}
			}
			// Optional fields that fail coercion are cleared rather than
			// poisoning downstream sort and filter comparisons.
			delete(out, f.Name)
			continue
		}
		out[f.Name] = val
	}
	return out, nil
}

// CoerceValue converts a raw value to the schema field's canonical Go type.
// string → string, number → float64, integer → int, boolean → bool,
// enum → one of the declared values, date → RFC 3339 string.
func CoerceValue(raw any, f model.FieldSchema) (any, error) {
	switch f.Type {
	case model.FieldTypeString, "":
		return coerceString(raw)
	case model.FieldTypeNumber:
		return coerceFloat(raw, f.Coerce)
	case model.FieldTypeInt:
		return coerceInt(raw, f.Coerce)
	case model.FieldTypeBool:
		return coerceBool(raw, f.Coerce)
	case model.FieldTypeEnum:
		return coerceEnum(raw, f.Values)
	case model.FieldTypeDate:
		return coerceDate(raw)
	case model.FieldTypeList:
		if _, ok := raw.([]any); !ok {
			return nil, fmt.Errorf("expected list, got %T", raw)
		}
		return raw, nil
	case model.FieldTypeObject:
		if _, ok := raw.(map[string]any); !ok {
			return nil, fmt.Errorf("expected object, got %T", raw)
		}
		return raw, nil
	default:
		return raw, nil
	}
}

func coerceString(raw any) (any, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case float64, int, int64, bool:
		return fmt.Sprint(v), nil
	default:
		return nil, fmt.Errorf("expected string, got %T", raw)
	}
}

func coerceFloat(raw any, lenient bool) (any, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		if !lenient {
			return nil, fmt.Errorf("expected number, got string")
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("cannot parse %q as number", v)
		}
		return parsed, nil
	default:
		return nil, fmt.Errorf("expected number, got %T", raw)
	}
}

func coerceInt(raw any, lenient bool) (any, error) {
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != float64(int(v)) {
			return nil, fmt.Errorf("expected integer, got fractional %v", v)
		}
		return int(v), nil
	case string:
		if !lenient {
			return nil, fmt.Errorf("expected integer, got string")
		}
		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("cannot parse %q as integer", v)
		}
		return parsed, nil
	default:
		return nil, fmt.Errorf("expected integer, got %T", raw)
	}
}

func coerceBool(raw any, lenient bool) (any, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		if !lenient {
			return nil, fmt.Errorf("expected boolean, got string")
		}
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes":
			return true, nil
		case "false", "0", "no":
			return false, nil
		}
		return nil, fmt.Errorf("cannot parse %q as boolean", v)
	default:
		return nil, fmt.Errorf("expected boolean, got %T", raw)
	}
}

func coerceEnum(raw any, values []string) (any, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("expected enum string, got %T", raw)
	}
	for _, v := range values {
		if s == v {
			return s, nil
		}
	}
	return nil, fmt.Errorf("value %q not in enum %v", s, values)
}

// coerceDate accepts RFC 3339 timestamps and bare dates, normalizing to the
// original string form so records stay JSON-friendly.
func coerceDate(raw any) (any, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("expected date string, got %T", raw)
	}
	if _, err := time.Parse(time.RFC3339, s); err == nil {
		return s, nil
	}
	if _, err := time.Parse("2006-01-02", s); err == nil {
		return s, nil
	}
	return nil, fmt.Errorf("cannot parse %q as date", s)
}

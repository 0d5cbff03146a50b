package schema

import (
	"testing"

	"github.com/pitabwire/mercura/model"
)

func productSchema() []model.FieldSchema {
	return []model.FieldSchema{
		{Name: "id", Type: model.FieldTypeString},
		{Name: "productName", Type: model.FieldTypeString, Required: true},
		{Name: "price", Type: model.FieldTypeNumber, Required: true, Coerce: true},
		{Name: "stock", Type: model.FieldTypeInt, Coerce: true},
		{Name: "activeStatus", Type: model.FieldTypeEnum, Values: []string{"active", "inactive"}},
	}
}

func TestNormalize_coercesLooseTypes(t *testing.T) {
	c := NewCoercer()
	records := []model.Record{
		{"id": float64(7), "productName": "Desk", "price": "19.99", "stock": "3", "activeStatus": "active"},
	}

	out, problems := c.Normalize(records, productSchema())
	if len(problems) != 0 {
		t.Fatalf("problems = %v, want none", problems)
	}
	if len(out) != 1 {
		t.Fatalf("records = %d, want 1", len(out))
	}

	rec := out[0]
	if rec["id"] != "7" {
		t.Errorf("id = %v (%T), want \"7\"", rec["id"], rec["id"])
	}
	if rec["price"] != 19.99 {
		t.Errorf("price = %v (%T), want 19.99", rec["price"], rec["price"])
	}
	if rec["stock"] != 3 {
		t.Errorf("stock = %v (%T), want 3", rec["stock"], rec["stock"])
	}
}

func TestNormalize_dropsMissingRequired(t *testing.T) {
	c := NewCoercer()
	records := []model.Record{
		{"id": "1", "productName": "Desk", "price": 10.0},
		{"id": "2", "price": 5.0},
		{"id": "3", "productName": "Chair", "price": 7.5},
	}

	out, problems := c.Normalize(records, productSchema())
	if len(out) != 2 {
		t.Errorf("records = %d, want 2", len(out))
	}
	if len(problems) != 1 {
		t.Fatalf("problems = %v, want 1", problems)
	}
	if problems[0].Index != 1 || problems[0].Field != "productName" {
		t.Errorf("problem = %+v", problems[0])
	}
}

func TestNormalize_dropsUncoercibleRequired(t *testing.T) {
	c := NewCoercer()
	records := []model.Record{
		{"id": "1", "productName": "Desk", "price": "not-a-price"},
	}

	out, problems := c.Normalize(records, productSchema())
	if len(out) != 0 {
		t.Errorf("records = %d, want 0", len(out))
	}
	if len(problems) != 1 || problems[0].Field != "price" {
		t.Errorf("problems = %v", problems)
	}
}

func TestNormalize_clearsUncoercibleOptional(t *testing.T) {
	c := NewCoercer()
	records := []model.Record{
		{"id": "1", "productName": "Desk", "price": 10.0, "stock": "lots"},
	}

	out, problems := c.Normalize(records, productSchema())
	if len(problems) != 0 {
		t.Fatalf("problems = %v, want none", problems)
	}
	if _, present := out[0]["stock"]; present {
		t.Error("uncoercible optional field should be cleared")
	}
}

func TestNormalize_doesNotMutateInput(t *testing.T) {
	c := NewCoercer()
	records := []model.Record{
		{"id": "1", "productName": "Desk", "price": "10"},
	}

	c.Normalize(records, productSchema())
	if records[0]["price"] != "10" {
		t.Errorf("input record mutated: price = %v", records[0]["price"])
	}
}

func TestCoerceValue(t *testing.T) {
	tests := []struct {
		name    string
		raw     any
		field   model.FieldSchema
		want    any
		wantErr bool
	}{
		{"string passthrough", "abc", model.FieldSchema{Type: model.FieldTypeString}, "abc", false},
		{"number from float", 3.5, model.FieldSchema{Type: model.FieldTypeNumber}, 3.5, false},
		{"number from int", 3, model.FieldSchema{Type: model.FieldTypeNumber}, 3.0, false},
		{"strict number rejects string", "3.5", model.FieldSchema{Type: model.FieldTypeNumber}, nil, true},
		{"lenient number parses string", " 3.5 ", model.FieldSchema{Type: model.FieldTypeNumber, Coerce: true}, 3.5, false},
		{"integer from whole float", 4.0, model.FieldSchema{Type: model.FieldTypeInt}, 4, false},
		{"integer rejects fraction", 4.5, model.FieldSchema{Type: model.FieldTypeInt}, nil, true},
		{"bool lenient yes", "yes", model.FieldSchema{Type: model.FieldTypeBool, Coerce: true}, true, false},
		{"bool lenient zero", "0", model.FieldSchema{Type: model.FieldTypeBool, Coerce: true}, false, false},
		{"enum valid", "active", model.FieldSchema{Type: model.FieldTypeEnum, Values: []string{"active", "inactive"}}, "active", false},
		{"enum invalid", "archived", model.FieldSchema{Type: model.FieldTypeEnum, Values: []string{"active", "inactive"}}, nil, true},
		{"date rfc3339", "2025-03-01T10:00:00Z", model.FieldSchema{Type: model.FieldTypeDate}, "2025-03-01T10:00:00Z", false},
		{"date bare", "2025-03-01", model.FieldSchema{Type: model.FieldTypeDate}, "2025-03-01", false},
		{"date garbage", "soon", model.FieldSchema{Type: model.FieldTypeDate}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CoerceValue(tt.raw, tt.field)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("CoerceValue(%v) error = nil, want error", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("CoerceValue(%v) error = %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("CoerceValue(%v) = %v (%T), want %v", tt.raw, got, got, tt.want)
			}
		})
	}
}

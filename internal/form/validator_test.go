package form

import (
	"testing"

	"github.com/pitabwire/mercura/model"
)

func productFormSchema() map[string]model.FieldSchema {
	min := 0.01
	stockMin := 0.0
	return SchemaByName([]model.FieldSchema{
		{Name: "productName", Type: model.FieldTypeString, Required: true},
		{Name: "sku", Type: model.FieldTypeString, Required: true, Pattern: `^[A-Za-z]{3}-\d+$`},
		{Name: "category", Type: model.FieldTypeString, Required: true},
		{Name: "price", Type: model.FieldTypeNumber, Required: true, Min: &min},
		{Name: "stock", Type: model.FieldTypeInt, Required: true, Min: &stockMin},
		{Name: "activeStatus", Type: model.FieldTypeEnum, Values: []string{"active", "inactive"}},
		{Name: "description", Type: model.FieldTypeString},
	})
}

func basicsFields() []model.FormField {
	return []model.FormField{
		{Name: "productName", Label: "Product Name", Type: "text"},
		{Name: "sku", Label: "SKU", Type: "text"},
		{Name: "category", Label: "Category", Type: "text"},
	}
}

func pricingFields() []model.FormField {
	return []model.FormField{
		{Name: "price", Label: "Price", Type: "number"},
		{Name: "stock", Label: "Stock", Type: "number"},
	}
}

func errorFields(errs []model.FieldError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Field
	}
	return out
}

func hasFieldError(errs []model.FieldError, field, code string) bool {
	for _, e := range errs {
		if e.Field == field && e.Code == code {
			return true
		}
	}
	return false
}

func TestValidateFields_requiredMissing(t *testing.T) {
	v := NewValidator()
	values := map[string]any{"productName": "Desk"}

	errs := v.ValidateFields(values, basicsFields(), productFormSchema())
	if len(errs) != 2 {
		t.Fatalf("errors = %v, want 2", errorFields(errs))
	}
	if !hasFieldError(errs, "sku", "REQUIRED") {
		t.Error("missing sku not reported")
	}
	if !hasFieldError(errs, "category", "REQUIRED") {
		t.Error("missing category not reported")
	}
}

func TestValidateFields_blankCountsAsMissing(t *testing.T) {
	v := NewValidator()
	values := map[string]any{"productName": "   ", "sku": "DSK-1", "category": "furniture"}

	errs := v.ValidateFields(values, basicsFields(), productFormSchema())
	if !hasFieldError(errs, "productName", "REQUIRED") {
		t.Errorf("whitespace-only productName not reported, errors = %v", errorFields(errs))
	}
}

func TestValidateFields_stepSubsetOnly(t *testing.T) {
	// Step one validation must not complain about fields from later steps.
	v := NewValidator()
	values := map[string]any{"productName": "Desk", "sku": "DSK-1", "category": "furniture"}

	errs := v.ValidateFields(values, basicsFields(), productFormSchema())
	if len(errs) != 0 {
		t.Errorf("step one with complete values reported %v", errorFields(errs))
	}
}

func TestValidateFields_minConstraint(t *testing.T) {
	v := NewValidator()
	values := map[string]any{"price": "0", "stock": "-1"}

	errs := v.ValidateFields(values, pricingFields(), productFormSchema())
	if !hasFieldError(errs, "price", "MIN") {
		t.Errorf("price below min not reported, errors = %+v", errs)
	}
	if !hasFieldError(errs, "stock", "MIN") {
		t.Errorf("negative stock not reported, errors = %+v", errs)
	}
}

func TestValidateFields_coercesStringNumbers(t *testing.T) {
	v := NewValidator()
	values := map[string]any{"price": "19.99", "stock": "5"}

	errs := v.ValidateFields(values, pricingFields(), productFormSchema())
	if len(errs) != 0 {
		t.Errorf("string numbers rejected: %+v", errs)
	}
}

func TestValidateFields_invalidNumber(t *testing.T) {
	v := NewValidator()
	values := map[string]any{"price": "free", "stock": 5}

	errs := v.ValidateFields(values, pricingFields(), productFormSchema())
	if !hasFieldError(errs, "price", "INVALID_VALUE") {
		t.Errorf("unparseable price not reported, errors = %+v", errs)
	}
}

func TestValidateFields_pattern(t *testing.T) {
	v := NewValidator()
	values := map[string]any{"productName": "Desk", "sku": "badsku", "category": "furniture"}

	errs := v.ValidateFields(values, basicsFields(), productFormSchema())
	if !hasFieldError(errs, "sku", "PATTERN") {
		t.Errorf("bad sku format not reported, errors = %+v", errs)
	}
}

func TestValidateFields_requiredOverride(t *testing.T) {
	v := NewValidator()
	notRequired := false
	fields := []model.FormField{
		{Name: "category", Label: "Category", Type: "text", Required: &notRequired},
	}

	errs := v.ValidateFields(map[string]any{}, fields, productFormSchema())
	if len(errs) != 0 {
		t.Errorf("form-level required override ignored: %+v", errs)
	}
}

func TestValidateFields_readOnlySkipped(t *testing.T) {
	v := NewValidator()
	fields := []model.FormField{
		{Name: "orderId", Label: "Order ID", Type: "text", ReadOnly: true},
	}

	errs := v.ValidateFields(map[string]any{}, fields, map[string]model.FieldSchema{
		"orderId": {Name: "orderId", Type: model.FieldTypeString, Required: true},
	})
	if len(errs) != 0 {
		t.Errorf("read-only field validated: %+v", errs)
	}
}

func TestValidateFields_reportsAllFailures(t *testing.T) {
	v := NewValidator()
	errs := v.ValidateFields(map[string]any{}, basicsFields(), productFormSchema())
	if len(errs) != 3 {
		t.Errorf("errors = %d (%v), want all 3 reported together", len(errs), errorFields(errs))
	}
}

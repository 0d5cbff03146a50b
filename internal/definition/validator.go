package definition

import (
	"fmt"
	"regexp"

	"github.com/pitabwire/mercura/model"
)

// VError describes a single validation error in a definition.
type VError struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e VError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Validator validates resource definitions structurally and referentially.
type Validator struct{}

// NewValidator creates a new Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks all definitions and returns every problem found.
func (v *Validator) Validate(defs []model.ResourceDefinition) []VError {
	var errs []VError
	seen := make(map[string]bool)
	for i, def := range defs {
		prefix := fmt.Sprintf("definitions[%d]", i)
		if def.Resource != "" && seen[def.Resource] {
			errs = append(errs, VError{
				Path:    prefix + ".resource",
				Code:    "DUPLICATE",
				Message: fmt.Sprintf("resource %q declared more than once", def.Resource),
			})
		}
		seen[def.Resource] = true
		errs = append(errs, v.validateResource(prefix, def)...)
	}
	return errs
}

var validFieldTypes = map[string]bool{
	model.FieldTypeString: true, model.FieldTypeNumber: true,
	model.FieldTypeInt: true, model.FieldTypeBool: true,
	model.FieldTypeEnum: true, model.FieldTypeDate: true,
	model.FieldTypeList: true, model.FieldTypeObject: true,
}

func (v *Validator) validateResource(prefix string, def model.ResourceDefinition) []VError {
	var errs []VError

	if def.Resource == "" {
		errs = append(errs, VError{Path: prefix + ".resource", Code: "REQUIRED", Message: "resource is required"})
	}
	if def.Collection.Path == "" {
		errs = append(errs, VError{Path: prefix + ".collection.path", Code: "REQUIRED", Message: "collection.path is required"})
	}
	if len(def.Schema) == 0 {
		errs = append(errs, VError{Path: prefix + ".schema", Code: "REQUIRED", Message: "at least one schema field is required"})
	}

	schemaFields := make(map[string]bool, len(def.Schema))
	for i, f := range def.Schema {
		fp := fmt.Sprintf("%s.schema[%d]", prefix, i)
		if f.Name == "" {
			errs = append(errs, VError{Path: fp + ".name", Code: "REQUIRED", Message: "field name is required"})
		}
		if schemaFields[f.Name] {
			errs = append(errs, VError{Path: fp + ".name", Code: "DUPLICATE", Message: fmt.Sprintf("field %q declared more than once", f.Name)})
		}
		schemaFields[f.Name] = true
		if f.Type == "" {
			errs = append(errs, VError{Path: fp + ".type", Code: "REQUIRED", Message: "field type is required"})
		} else if !validFieldTypes[f.Type] {
			errs = append(errs, VError{Path: fp + ".type", Code: "INVALID_ENUM", Message: fmt.Sprintf("invalid field type %q", f.Type)})
		}
		if f.Type == model.FieldTypeEnum && len(f.Values) == 0 {
			errs = append(errs, VError{Path: fp + ".values", Code: "REQUIRED", Message: "enum fields require values"})
		}
		if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
			errs = append(errs, VError{Path: fp + ".min", Code: "RANGE", Message: "min must not exceed max"})
		}
		if f.Pattern != "" {
			if _, err := regexp.Compile(f.Pattern); err != nil {
				errs = append(errs, VError{Path: fp + ".pattern", Code: "INVALID_PATTERN", Message: fmt.Sprintf("pattern does not compile: %v", err)})
			}
		}
	}

	formIDs := make(map[string]bool, len(def.Forms))
	for i, f := range def.Forms {
		fp := fmt.Sprintf("%s.forms[%d]", prefix, i)
		if formIDs[f.ID] {
			errs = append(errs, VError{Path: fp + ".id", Code: "DUPLICATE", Message: fmt.Sprintf("form %q declared more than once", f.ID)})
		}
		formIDs[f.ID] = true
		errs = append(errs, v.validateForm(fp, f, schemaFields)...)
	}

	if def.Page != nil {
		errs = append(errs, v.validatePage(prefix+".page", *def.Page, schemaFields, formIDs)...)
	}

	return errs
}

func (v *Validator) validatePage(prefix string, p model.PageDefinition, schemaFields, formIDs map[string]bool) []VError {
	var errs []VError

	if p.ID == "" {
		errs = append(errs, VError{Path: prefix + ".id", Code: "REQUIRED", Message: "id is required"})
	}
	if p.Title == "" {
		errs = append(errs, VError{Path: prefix + ".title", Code: "REQUIRED", Message: "title is required"})
	}
	if len(p.Columns) == 0 {
		errs = append(errs, VError{Path: prefix + ".columns", Code: "REQUIRED", Message: "at least one column is required"})
	}
	if p.PageSize < 0 || p.PageSize > 200 {
		errs = append(errs, VError{Path: prefix + ".page_size", Code: "RANGE", Message: "page_size must be 0-200"})
	}

	for i, c := range p.Columns {
		if c.Field != "" && !schemaFields[c.Field] && !isDerivedField(c.Field) {
			errs = append(errs, VError{
				Path:    fmt.Sprintf("%s.columns[%d].field", prefix, i),
				Code:    "REF_NOT_FOUND",
				Message: fmt.Sprintf("column field %q not found in schema", c.Field),
			})
		}
	}
	for _, s := range p.Searchable {
		if !schemaFields[s] {
			errs = append(errs, VError{
				Path:    prefix + ".searchable",
				Code:    "REF_NOT_FOUND",
				Message: fmt.Sprintf("searchable field %q not found in schema", s),
			})
		}
	}
	for i, f := range p.Filters {
		if f.Field != "" && !schemaFields[f.Field] {
			errs = append(errs, VError{
				Path:    fmt.Sprintf("%s.filters[%d].field", prefix, i),
				Code:    "REF_NOT_FOUND",
				Message: fmt.Sprintf("filter field %q not found in schema", f.Field),
			})
		}
	}
	if p.DefaultSort != "" && !schemaFields[p.DefaultSort] && !isDerivedField(p.DefaultSort) {
		errs = append(errs, VError{
			Path:    prefix + ".default_sort",
			Code:    "REF_NOT_FOUND",
			Message: fmt.Sprintf("default_sort field %q not found in schema", p.DefaultSort),
		})
	}
	if p.CreateFormID != "" && !formIDs[p.CreateFormID] {
		errs = append(errs, VError{
			Path:    prefix + ".create_form",
			Code:    "REF_NOT_FOUND",
			Message: fmt.Sprintf("form %q not found in resource", p.CreateFormID),
		})
	}

	return errs
}

func (v *Validator) validateForm(prefix string, f model.FormDefinition, schemaFields map[string]bool) []VError {
	var errs []VError

	if f.ID == "" {
		errs = append(errs, VError{Path: prefix + ".id", Code: "REQUIRED", Message: "id is required"})
	}
	if f.Title == "" {
		errs = append(errs, VError{Path: prefix + ".title", Code: "REQUIRED", Message: "title is required"})
	}
	if len(f.Steps) == 0 {
		errs = append(errs, VError{Path: prefix + ".steps", Code: "REQUIRED", Message: "at least one step is required"})
	}

	stepIDs := make(map[string]bool, len(f.Steps))
	for i, s := range f.Steps {
		sp := fmt.Sprintf("%s.steps[%d]", prefix, i)
		if s.ID == "" {
			errs = append(errs, VError{Path: sp + ".id", Code: "REQUIRED", Message: "step id is required"})
		}
		if stepIDs[s.ID] {
			errs = append(errs, VError{Path: sp + ".id", Code: "DUPLICATE", Message: fmt.Sprintf("step %q declared more than once", s.ID)})
		}
		stepIDs[s.ID] = true
		if len(s.Fields) == 0 {
			errs = append(errs, VError{Path: sp + ".fields", Code: "REQUIRED", Message: "at least one field is required"})
		}
		for j, fld := range s.Fields {
			fp := fmt.Sprintf("%s.fields[%d]", sp, j)
			if fld.Name == "" {
				errs = append(errs, VError{Path: fp + ".name", Code: "REQUIRED", Message: "field name is required"})
			} else if !schemaFields[fld.Name] && !fld.ReadOnly {
				errs = append(errs, VError{
					Path:    fp + ".name",
					Code:    "REF_NOT_FOUND",
					Message: fmt.Sprintf("form field %q not found in schema", fld.Name),
				})
			}
		}
	}

	return errs
}

func isDerivedField(name string) bool {
	for _, d := range model.DerivedFields {
		if name == d {
			return true
		}
	}
	return false
}

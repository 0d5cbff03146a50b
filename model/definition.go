package model

// Field schema types understood by the coercion and validation layers.
const (
	FieldTypeString = "string"
	FieldTypeNumber = "number"
	FieldTypeInt    = "integer"
	FieldTypeBool   = "boolean"
	FieldTypeEnum   = "enum"
	FieldTypeDate   = "date"
	FieldTypeList   = "list"
	FieldTypeObject = "object"
)

// ResourceDefinition is a YAML-declared resource: its upstream collection,
// field schema, list page and forms. Loaded at startup and served from an
// immutable registry snapshot.
type ResourceDefinition struct {
	Resource   string           `yaml:"resource" json:"resource"`
	Collection CollectionConfig `yaml:"collection" json:"collection"`
	Schema     []FieldSchema    `yaml:"schema" json:"schema"`
	Page       *PageDefinition  `yaml:"page,omitempty" json:"page,omitempty"`
	Forms      []FormDefinition `yaml:"forms,omitempty" json:"forms,omitempty"`
	Checksum   string           `yaml:"-" json:"-"`
}

// CollectionConfig points at the upstream REST collection for a resource.
type CollectionConfig struct {
	Path string `yaml:"path" json:"path"`
}

// FieldSchema declares one field of the upstream record shape.
type FieldSchema struct {
	Name      string   `yaml:"name" json:"name"`
	Type      string   `yaml:"type" json:"type"`
	Required  bool     `yaml:"required,omitempty" json:"required,omitempty"`
	Min       *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max       *float64 `yaml:"max,omitempty" json:"max,omitempty"`
	Pattern   string   `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Values    []string `yaml:"values,omitempty" json:"values,omitempty"`
	Coerce    bool     `yaml:"coerce,omitempty" json:"coerce,omitempty"`
	ItemType  string   `yaml:"item_type,omitempty" json:"item_type,omitempty"`
	Transform string   `yaml:"transform,omitempty" json:"transform,omitempty"`
}

// PageDefinition declares the list page for a resource.
type PageDefinition struct {
	ID           string             `yaml:"id" json:"id"`
	Title        string             `yaml:"title" json:"title"`
	Columns      []ColumnDefinition `yaml:"columns" json:"columns"`
	Searchable   []string           `yaml:"searchable,omitempty" json:"searchable,omitempty"`
	Filters      []FilterDefinition `yaml:"filters,omitempty" json:"filters,omitempty"`
	DefaultSort  string             `yaml:"default_sort,omitempty" json:"default_sort,omitempty"`
	SortDir      string             `yaml:"sort_dir,omitempty" json:"sort_dir,omitempty"`
	PageSize     int                `yaml:"page_size,omitempty" json:"page_size,omitempty"`
	CreateFormID string             `yaml:"create_form,omitempty" json:"create_form,omitempty"`
}

// ColumnDefinition declares one column of a list page.
type ColumnDefinition struct {
	Field    string `yaml:"field" json:"field"`
	Label    string `yaml:"label" json:"label"`
	Type     string `yaml:"type,omitempty" json:"type,omitempty"`
	Sortable bool   `yaml:"sortable,omitempty" json:"sortable,omitempty"`
	Format   string `yaml:"format,omitempty" json:"format,omitempty"`
}

// FilterDefinition declares one filter control of a list page.
type FilterDefinition struct {
	Field    string             `yaml:"field" json:"field"`
	Label    string             `yaml:"label" json:"label"`
	Type     string             `yaml:"type" json:"type"`
	Operator string             `yaml:"operator,omitempty" json:"operator,omitempty"`
	Options  []OptionDefinition `yaml:"options,omitempty" json:"options,omitempty"`
}

// OptionDefinition declares a static option for an enum filter or field.
type OptionDefinition struct {
	Label string `yaml:"label" json:"label"`
	Value string `yaml:"value" json:"value"`
}

// FormDefinition declares a create form. Multi-step forms run through the
// wizard engine; single-step forms submit directly.
type FormDefinition struct {
	ID             string           `yaml:"id" json:"id"`
	Title          string           `yaml:"title" json:"title"`
	Steps          []StepDefinition `yaml:"steps" json:"steps"`
	SuccessRoute   string           `yaml:"success_route,omitempty" json:"success_route,omitempty"`
	SuccessMessage string           `yaml:"success_message,omitempty" json:"success_message,omitempty"`
}

// MultiStep reports whether the form needs a wizard session.
func (f *FormDefinition) MultiStep() bool {
	return len(f.Steps) > 1
}

// Fields returns all fields across all steps in declaration order.
func (f *FormDefinition) Fields() []FormField {
	var out []FormField
	for _, s := range f.Steps {
		out = append(out, s.Fields...)
	}
	return out
}

// StepDefinition declares one step of a form.
type StepDefinition struct {
	ID     string      `yaml:"id" json:"id"`
	Title  string      `yaml:"title" json:"title"`
	Fields []FormField `yaml:"fields" json:"fields"`
}

// FormField declares a bound form field. Validation rules come from the
// resource schema entry with the same name unless overridden here.
type FormField struct {
	Name          string             `yaml:"name" json:"name"`
	Label         string             `yaml:"label" json:"label"`
	Type          string             `yaml:"type" json:"type"`
	Required      *bool              `yaml:"required,omitempty" json:"required,omitempty"`
	ReadOnly      bool               `yaml:"read_only,omitempty" json:"read_only,omitempty"`
	Placeholder   string             `yaml:"placeholder,omitempty" json:"placeholder,omitempty"`
	Default       any                `yaml:"default,omitempty" json:"default,omitempty"`
	Options       []OptionDefinition `yaml:"options,omitempty" json:"options,omitempty"`
	OptionsSource string             `yaml:"options_source,omitempty" json:"options_source,omitempty"`
	OptionsLabel  string             `yaml:"options_label,omitempty" json:"options_label,omitempty"`
}

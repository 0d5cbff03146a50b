package model

// PageDescriptor is the resolved list page sent to the frontend.
type PageDescriptor struct {
	ID           string           `json:"id"`
	Title        string           `json:"title"`
	Resource     string           `json:"resource"`
	Table        *TableDescriptor `json:"table,omitempty"`
	CreateFormID string           `json:"create_form_id,omitempty"`
}

// TableDescriptor is the resolved table metadata sent to the frontend.
type TableDescriptor struct {
	Columns      []ColumnDescriptor `json:"columns"`
	Filters      []FilterDescriptor `json:"filters,omitempty"`
	DataEndpoint string             `json:"data_endpoint"`
	DefaultSort  string             `json:"default_sort,omitempty"`
	SortDir      string             `json:"sort_dir,omitempty"`
	PageSize     int                `json:"page_size"`
}

// ColumnDescriptor describes a visible table column.
type ColumnDescriptor struct {
	Field    string `json:"field"`
	Label    string `json:"label"`
	Type     string `json:"type"`
	Sortable bool   `json:"sortable"`
	Format   string `json:"format,omitempty"`
}

// FilterDescriptor describes a resolved filter control.
type FilterDescriptor struct {
	Field    string             `json:"field"`
	Label    string             `json:"label"`
	Type     string             `json:"type"`
	Operator string             `json:"operator"`
	Options  []OptionDescriptor `json:"options,omitempty"`
}

// OptionDescriptor is a resolved option for dropdowns and filters.
type OptionDescriptor struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// FormDescriptor is the resolved form sent to the frontend. Single-step
// forms carry exactly one step.
type FormDescriptor struct {
	ID             string           `json:"id"`
	Title          string           `json:"title"`
	Resource       string           `json:"resource"`
	Steps          []StepDescriptor `json:"steps"`
	SubmitEndpoint string           `json:"submit_endpoint"`
	SuccessRoute   string           `json:"success_route,omitempty"`
	SuccessMessage string           `json:"success_message,omitempty"`
}

// StepDescriptor is one step of a (possibly multi-step) form.
type StepDescriptor struct {
	ID     string            `json:"id"`
	Title  string            `json:"title"`
	Fields []FieldDescriptor `json:"fields"`
}

// FieldDescriptor is a resolved form field sent to the frontend.
type FieldDescriptor struct {
	Field       string                `json:"field"`
	Label       string                `json:"label"`
	Type        string                `json:"type"`
	Required    bool                  `json:"required"`
	ReadOnly    bool                  `json:"read_only,omitempty"`
	Validation  *ValidationDescriptor `json:"validation,omitempty"`
	Options     []OptionDescriptor    `json:"options,omitempty"`
	Placeholder string                `json:"placeholder,omitempty"`
	Default     any                   `json:"default,omitempty"`
}

// ValidationDescriptor describes client-side validation rules mirrored from
// the resource schema.
type ValidationDescriptor struct {
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
	Pattern string   `json:"pattern,omitempty"`
	Message string   `json:"message,omitempty"`
}

// Data payload states. An empty result is a valid state and must render
// distinctly from an error or a pending fetch.
const (
	DataStateOK    = "ok"
	DataStateEmpty = "empty"
)

// DataResponse is the envelope for computed page data.
type DataResponse struct {
	Data DataPayload    `json:"data"`
	Meta map[string]any `json:"meta,omitempty"`
}

// DataPayload is one visible page of enriched rows plus paging totals.
type DataPayload struct {
	State         string   `json:"state"`
	Items         []Record `json:"items"`
	TotalCount    int      `json:"total_count"`
	FilteredCount int      `json:"filtered_count"`
	Page          int      `json:"page"`
	PageSize      int      `json:"page_size"`
	TotalPages    int      `json:"total_pages"`
}

// CommandResponse is the envelope for a create command result.
type CommandResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Result  Record       `json:"result,omitempty"`
	Errors  []FieldError `json:"errors,omitempty"`
}

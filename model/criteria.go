package model

// Criteria is the set of independent filter predicates applied to a record
// set before sorting and pagination. All active predicates are combined with
// logical AND.
type Criteria struct {
	// Query is a free-text term matched case-insensitively as a substring
	// of any searchable field.
	Query string `json:"query,omitempty"`
	// Fields holds per-field substring/equality predicates.
	Fields map[string]string `json:"fields,omitempty"`
	// FieldOps names the match operator per field, FilterOpEq when absent.
	// Populated from the page definition's filters, not from the request.
	FieldOps map[string]string `json:"-"`
	// PriceMin and PriceMax bound the price field. A nil bound is unbounded.
	PriceMin *float64 `json:"price_min,omitempty"`
	PriceMax *float64 `json:"price_max,omitempty"`
}

// Empty reports whether no predicate is active.
func (c Criteria) Empty() bool {
	return c.Query == "" && len(c.Fields) == 0 && c.PriceMin == nil && c.PriceMax == nil
}

// Per-field filter operators.
const (
	FilterOpEq       = "eq"
	FilterOpContains = "contains"
)

// Sort directions.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// SortSpec names the field to order by and the direction. A zero SortSpec
// means "preserve fetch order".
type SortSpec struct {
	Field     string `json:"field"`
	Direction string `json:"direction"`
}

// PageWindow is the requested slice of the filtered result set. Page is
// 1-based and is clamped, never rejected, when out of range.
type PageWindow struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// Normalize returns a window with a positive page and page size, applying
// the given default size when none was requested.
func (w PageWindow) Normalize(defaultSize int) PageWindow {
	if w.Page < 1 {
		w.Page = 1
	}
	if w.PageSize < 1 {
		w.PageSize = defaultSize
	}
	if w.PageSize < 1 {
		w.PageSize = 25
	}
	return w
}

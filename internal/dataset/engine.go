// Package dataset filters, sorts, and paginates enriched record sets in
// memory. All operations are pure: input slices are never reordered or
// mutated.
package dataset

import (
	"sort"
	"strings"

	"github.com/pitabwire/mercura/model"
)

// Result is one computed page of records plus the counts that drive
// pagination controls.
type Result struct {
	Rows          []model.Record
	FilteredCount int
	Page          int
	PageSize      int
	TotalPages    int
}

// Apply runs the full pipeline: filter by criteria, sort, then slice out the
// requested page. The returned page is clamped into [1, TotalPages].
func Apply(records []model.Record, crit model.Criteria, searchable []string, sortSpec model.SortSpec, window model.PageWindow) Result {
	filtered := Filter(records, crit, searchable)
	sorted := Sort(filtered, sortSpec)
	return Paginate(sorted, window)
}

// Filter returns the records matching every active predicate.
func Filter(records []model.Record, crit model.Criteria, searchable []string) []model.Record {
	if crit.Empty() {
		out := make([]model.Record, len(records))
		copy(out, records)
		return out
	}

	out := make([]model.Record, 0, len(records))
	for _, rec := range records {
		if matches(rec, crit, searchable) {
			out = append(out, rec)
		}
	}
	return out
}

func matches(rec model.Record, crit model.Criteria, searchable []string) bool {
	if crit.Query != "" && !matchesQuery(rec, crit.Query, searchable) {
		return false
	}
	for field, want := range crit.Fields {
		have := rec.String(field)
		if crit.FieldOps[field] == model.FilterOpContains {
			if !strings.Contains(strings.ToLower(have), strings.ToLower(want)) {
				return false
			}
		} else if !strings.EqualFold(have, want) {
			return false
		}
	}
	if crit.PriceMin != nil || crit.PriceMax != nil {
		price, ok := rec.Float("price")
		if !ok {
			return false
		}
		if crit.PriceMin != nil && price < *crit.PriceMin {
			return false
		}
		if crit.PriceMax != nil && price > *crit.PriceMax {
			return false
		}
	}
	return true
}

func matchesQuery(rec model.Record, query string, searchable []string) bool {
	q := strings.ToLower(query)
	for _, field := range searchable {
		if strings.Contains(strings.ToLower(rec.String(field)), q) {
			return true
		}
	}
	return false
}

// Sort orders records by the given sort key. The sort is stable: records comparing
// equal keep their relative fetch order. A zero spec returns a copy in
// fetch order.
func Sort(records []model.Record, spec model.SortSpec) []model.Record {
	out := make([]model.Record, len(records))
	copy(out, records)
	if spec.Field == "" {
		return out
	}

	desc := spec.Direction == model.SortDesc
	sort.SliceStable(out, func(i, j int) bool {
		less := compareValues(out[i][spec.Field], out[j][spec.Field]) < 0
		if desc {
			return compareValues(out[j][spec.Field], out[i][spec.Field]) < 0
		}
		return less
	})
	return out
}

// compareValues compares two record values. Numbers compare numerically,
// strings case-insensitively. Missing values sort first so they surface in
// ascending order rather than disappearing to an arbitrary position.
func compareValues(a, b any) int {
	af, aNum := asFloat(a)
	bf, bNum := asFloat(b)
	switch {
	case aNum && bNum:
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	as := strings.ToLower(asString(a))
	bs := strings.ToLower(asString(b))
	return strings.Compare(as, bs)
}

func asFloat(v any) (float64, bool) {
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

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return ""
	}
	if b, ok := v.(bool); ok {
		if b {
			return "true"
		}
		return "false"
	}
	return ""
}

// Paginate slices one page out of the filtered set. An out-of-range page is
// clamped, and an empty set still reports one page.
func Paginate(records []model.Record, window model.PageWindow) Result {
	window = window.Normalize(0)

	totalPages := (len(records) + window.PageSize - 1) / window.PageSize
	if totalPages < 1 {
		totalPages = 1
	}

	page := window.Page
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * window.PageSize
	end := start + window.PageSize
	if start > len(records) {
		start = len(records)
	}
	if end > len(records) {
		end = len(records)
	}

	return Result{
		Rows:          records[start:end],
		FilteredCount: len(records),
		Page:          page,
		PageSize:      window.PageSize,
		TotalPages:    totalPages,
	}
}

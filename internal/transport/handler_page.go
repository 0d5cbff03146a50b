package transport

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pitabwire/mercura/internal/metadata"
	"github.com/pitabwire/mercura/model"
)

func handleGetPage(pages *metadata.PageProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.MustRequestContext(r.Context())
		pageID := chi.URLParam(r, "pageID")

		desc, err := pages.GetPage(r.Context(), rctx, pageID)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, desc)
	}
}

func handleGetPageData(pages *metadata.PageProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.MustRequestContext(r.Context())
		pageID := chi.URLParam(r, "pageID")

		crit, err := parseCriteria(r)
		if err != nil {
			WriteError(w, err)
			return
		}
		sortSpec, err := parseSortSpec(r)
		if err != nil {
			WriteError(w, err)
			return
		}
		window := model.PageWindow{
			Page:     queryInt(r, "page", 0),
			PageSize: queryInt(r, "limit", 0),
		}

		data, err := pages.GetPageData(r.Context(), rctx, pageID, crit, sortSpec, window)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, data)
	}
}

// parseCriteria builds filter criteria from the query string: q for free
// text, filter[field]=value for per-field predicates, and price_min /
// price_max for the price range.
func parseCriteria(r *http.Request) (model.Criteria, error) {
	crit := model.Criteria{
		Query:  r.URL.Query().Get("q"),
		Fields: queryMap(r, "filter"),
	}

	min, err := queryFloat(r, "price_min")
	if err != nil {
		return crit, model.NewBadRequestError("price_min must be numeric")
	}
	max, err := queryFloat(r, "price_max")
	if err != nil {
		return crit, model.NewBadRequestError("price_max must be numeric")
	}
	crit.PriceMin = min
	crit.PriceMax = max
	return crit, nil
}

func parseSortSpec(r *http.Request) (model.SortSpec, error) {
	field := r.URL.Query().Get("sort")
	if field == "" {
		return model.SortSpec{}, nil
	}
	dir := r.URL.Query().Get("dir")
	switch dir {
	case "":
		dir = model.SortAsc
	case model.SortAsc, model.SortDesc:
	default:
		return model.SortSpec{}, model.NewBadRequestError("dir must be asc or desc")
	}
	return model.SortSpec{Field: field, Direction: dir}, nil
}

// queryInt extracts an integer query param with a default.
func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// queryFloat extracts an optional float query param. A missing param yields
// a nil pointer, a malformed one an error.
func queryFloat(r *http.Request, key string) (*float64, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// queryMap extracts all query params with a given prefix as a map.
// e.g., filter[category]=Furniture → {"category": "Furniture"}
func queryMap(r *http.Request, prefix string) map[string]string {
	result := make(map[string]string)
	for key, values := range r.URL.Query() {
		if len(key) > len(prefix)+2 && key[:len(prefix)+1] == prefix+"[" && key[len(key)-1] == ']' {
			field := key[len(prefix)+1 : len(key)-1]
			if len(values) > 0 {
				result[field] = values[0]
			}
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

package integration

import (
	"net/http"
	"testing"

	"github.com/pitabwire/mercura/model"
)

func TestPageDescriptor(t *testing.T) {
	h := NewHarness(t)

	var desc model.PageDescriptor
	h.AssertJSON(t, h.GET("/api/pages/products-list"), http.StatusOK, &desc)

	if desc.ID != "products-list" || desc.Resource != "products" {
		t.Errorf("descriptor = %+v", desc)
	}
	if desc.Table == nil {
		t.Fatal("missing table descriptor")
	}
	if desc.Table.DataEndpoint != "/api/pages/products-list/data" {
		t.Errorf("DataEndpoint = %q", desc.Table.DataEndpoint)
	}
	if len(desc.Table.Columns) != 8 {
		t.Errorf("columns = %d", len(desc.Table.Columns))
	}
	if desc.CreateFormID != "product-create" {
		t.Errorf("CreateFormID = %q", desc.CreateFormID)
	}

	// The status filter has no static options, so they come from the
	// schema enum values.
	var statusFilter *model.FilterDescriptor
	for i := range desc.Table.Filters {
		if desc.Table.Filters[i].Field == "activeStatus" {
			statusFilter = &desc.Table.Filters[i]
		}
	}
	if statusFilter == nil {
		t.Fatal("missing activeStatus filter")
	}
	if len(statusFilter.Options) != 2 || statusFilter.Options[0].Value != "active" {
		t.Errorf("status options = %+v", statusFilter.Options)
	}
}

func TestPageDataFullPipeline(t *testing.T) {
	h := NewHarness(t)
	h.Backend.Seed("/product", ProductFixtures())

	var data model.DataResponse
	h.AssertJSON(t, h.GET("/api/pages/products-list/data"), http.StatusOK, &data)

	if data.Data.State != "ok" {
		t.Errorf("state = %q", data.Data.State)
	}
	if data.Data.TotalCount != 3 || data.Data.FilteredCount != 3 {
		t.Errorf("counts = %d/%d", data.Data.TotalCount, data.Data.FilteredCount)
	}
	// Default sort from the page definition is productName ascending.
	if len(data.Data.Items) != 3 || data.Data.Items[0]["productName"] != "Desk Lamp" {
		t.Fatalf("items = %v", data.Data.Items)
	}

	// Every row carries the derived metrics.
	for _, row := range data.Data.Items {
		if row["csat"] != 4.5 {
			t.Errorf("csat = %v", row["csat"])
		}
		trend, ok := row["trend"].([]any)
		if !ok || len(trend) != 7 {
			t.Errorf("trend = %v", row["trend"])
		}
	}
}

func TestPageDataFilterSortPaginate(t *testing.T) {
	h := NewHarness(t)
	h.Backend.Seed("/product", ProductFixtures())

	var data model.DataResponse
	path := "/api/pages/products-list/data?filter[category]=Furniture&sort=price&dir=desc&page=1&limit=1"
	h.AssertJSON(t, h.GET(path), http.StatusOK, &data)

	if data.Data.FilteredCount != 2 || data.Data.TotalPages != 2 {
		t.Errorf("filtered = %d pages = %d", data.Data.FilteredCount, data.Data.TotalPages)
	}
	if len(data.Data.Items) != 1 || data.Data.Items[0]["id"] != "p1" {
		t.Errorf("items = %v", data.Data.Items)
	}
	// Total reflects the unfiltered collection.
	if data.Data.TotalCount != 3 {
		t.Errorf("total = %d", data.Data.TotalCount)
	}
}

func TestPageDataFreeTextQuery(t *testing.T) {
	h := NewHarness(t)
	h.Backend.Seed("/product", ProductFixtures())

	var data model.DataResponse
	h.AssertJSON(t, h.GET("/api/pages/products-list/data?q=lamp"), http.StatusOK, &data)

	if data.Data.FilteredCount != 1 || data.Data.Items[0]["id"] != "p3" {
		t.Errorf("items = %v", data.Data.Items)
	}
}

func TestPageDataSubstringFieldFilter(t *testing.T) {
	h := NewHarness(t)
	h.Backend.Seed("/product", ProductFixtures())

	// The category filter declares the contains operator, so a partial
	// value matches.
	var data model.DataResponse
	h.AssertJSON(t, h.GET("/api/pages/products-list/data?filter[category]=Furn"), http.StatusOK, &data)

	if data.Data.FilteredCount != 2 {
		t.Errorf("filtered = %d, want 2", data.Data.FilteredCount)
	}
}

func TestPageDataPriceRange(t *testing.T) {
	h := NewHarness(t)
	h.Backend.Seed("/product", ProductFixtures())

	var data model.DataResponse
	h.AssertJSON(t, h.GET("/api/pages/products-list/data?price_min=100&price_max=500"), http.StatusOK, &data)

	if data.Data.FilteredCount != 2 {
		t.Errorf("filtered = %d", data.Data.FilteredCount)
	}
	for _, row := range data.Data.Items {
		price := row["price"].(float64)
		if price < 100 || price > 500 {
			t.Errorf("price %v outside range", price)
		}
	}
}

func TestPageDataEmptyState(t *testing.T) {
	h := NewHarness(t)
	h.Backend.Seed("/product", []map[string]any{})

	var data model.DataResponse
	h.AssertJSON(t, h.GET("/api/pages/products-list/data?q=nomatch"), http.StatusOK, &data)

	if data.Data.State != "empty" {
		t.Errorf("state = %q", data.Data.State)
	}
	if data.Data.TotalPages != 1 {
		t.Errorf("pages = %d", data.Data.TotalPages)
	}
}

func TestPageDataDropsMalformedRecords(t *testing.T) {
	h := NewHarness(t)
	records := ProductFixtures()
	// Missing the required productName, so normalization drops it.
	records = append(records, map[string]any{"id": "p4", "sku": "BAD-1", "category": "Misc", "price": 5.0})
	h.Backend.Seed("/product", records)

	var data model.DataResponse
	h.AssertJSON(t, h.GET("/api/pages/products-list/data"), http.StatusOK, &data)

	if data.Data.FilteredCount != 3 {
		t.Errorf("filtered = %d", data.Data.FilteredCount)
	}
	if data.Meta["dropped_records"] != float64(1) {
		t.Errorf("meta = %v", data.Meta)
	}
}

func TestPageDataTotalCountFromHeaderFallback(t *testing.T) {
	h := NewHarness(t)
	h.Backend.Seed("/product", ProductFixtures())
	h.Backend.DisableCountHeader()

	var data model.DataResponse
	h.AssertJSON(t, h.GET("/api/pages/products-list/data"), http.StatusOK, &data)

	// Without the header the total is the length of the returned slice.
	if data.Data.TotalCount != 3 {
		t.Errorf("total = %d", data.Data.TotalCount)
	}
}

func TestPageDataListCached(t *testing.T) {
	h := NewHarness(t)
	h.Backend.Seed("/product", ProductFixtures())

	h.AssertStatus(t, h.GET("/api/pages/products-list/data"), http.StatusOK)
	h.AssertStatus(t, h.GET("/api/pages/products-list/data"), http.StatusOK)

	h.Backend.AssertCalled(t, http.MethodGet, "/product", 1)
}

func TestPageNotFound(t *testing.T) {
	h := NewHarness(t)

	resp := h.GET("/api/pages/unknown")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if env := h.ErrorOf(resp); env.Code != model.ErrNotFound {
		t.Errorf("code = %q", env.Code)
	}
}

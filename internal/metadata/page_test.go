package metadata

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"go.uber.org/zap"

	"github.com/pitabwire/mercura/internal/collection"
	"github.com/pitabwire/mercura/internal/definition"
	"github.com/pitabwire/mercura/internal/enrich"
	"github.com/pitabwire/mercura/model"
)

func testRegistry() *definition.Registry {
	products := model.ResourceDefinition{
		Resource:   "products",
		Collection: model.CollectionConfig{Path: "/product"},
		Schema: []model.FieldSchema{
			{Name: "id", Type: model.FieldTypeString},
			{Name: "productName", Type: model.FieldTypeString, Required: true},
			{Name: "sku", Type: model.FieldTypeString, Required: true},
			{Name: "category", Type: model.FieldTypeString},
			{Name: "price", Type: model.FieldTypeNumber, Coerce: true},
			{Name: "activeStatus", Type: model.FieldTypeEnum, Values: []string{"active", "inactive"}},
		},
		Page: &model.PageDefinition{
			ID:    "products-list",
			Title: "Products",
			Columns: []model.ColumnDefinition{
				{Field: "productName", Label: "Product", Type: "text", Sortable: true},
				{Field: "price", Label: "Price", Type: "currency", Sortable: true},
				{Field: "csat", Label: "CSAT", Type: "rating", Sortable: true},
			},
			Searchable:   []string{"productName", "sku"},
			Filters: []model.FilterDefinition{
				{Field: "category", Label: "Category", Type: "text", Operator: "eq"},
				{Field: "activeStatus", Label: "Status", Type: "select", Operator: "eq"},
				{Field: "price", Label: "Price", Type: "range", Operator: "between"},
			},
			DefaultSort:  "productName",
			SortDir:      "asc",
			PageSize:     2,
			CreateFormID: "product-create",
		},
		Forms: []model.FormDefinition{{
			ID:    "product-create",
			Title: "Create Product",
			Steps: []model.StepDefinition{{
				ID: "basics", Title: "Basics", Fields: []model.FormField{
					{Name: "productName", Label: "Product Name", Type: "text"},
				},
			}},
		}},
	}

	orders := model.ResourceDefinition{
		Resource:   "orders",
		Collection: model.CollectionConfig{Path: "/order"},
		Schema: []model.FieldSchema{
			{Name: "id", Type: model.FieldTypeString},
			{Name: "clientName", Type: model.FieldTypeString, Required: true},
			{Name: "items", Type: model.FieldTypeList},
		},
		Forms: []model.FormDefinition{{
			ID:    "order-create",
			Title: "Create Order",
			Steps: []model.StepDefinition{{
				ID: "order", Title: "Order", Fields: []model.FormField{
					{Name: "clientName", Label: "Client Name", Type: "text"},
					{Name: "items", Label: "Items", Type: "items", OptionsSource: "products", OptionsLabel: "productName"},
				},
			}},
		}},
	}

	return definition.NewRegistry([]model.ResourceDefinition{products, orders})
}

type stubLister struct {
	items []model.Record
	total int
	err   error
	calls int
}

func (s *stubLister) List(_ context.Context, _ *model.RequestContext, path string, _ url.Values) (collection.ListResult, error) {
	s.calls++
	if s.err != nil {
		return collection.ListResult{}, s.err
	}
	total := s.total
	if total == 0 {
		total = len(s.items)
	}
	return collection.ListResult{Items: s.items, Total: total}, nil
}

func productRecords() []model.Record {
	return []model.Record{
		{"id": "p1", "productName": "Desk", "sku": "DSK-1", "category": "furniture", "price": 499.0, "activeStatus": "active"},
		{"id": "p2", "productName": "Chair", "sku": "CHR-1", "category": "furniture", "price": 149.0, "activeStatus": "active"},
		{"id": "p3", "productName": "Lamp", "sku": "LMP-1", "category": "lighting", "price": 39.0, "activeStatus": "inactive"},
	}
}

func newPageProvider(lister *stubLister) *PageProvider {
	enricher := enrich.NewEnricher(&enrich.FixedProvider{Metrics: enrich.Metrics{
		CSAT:     4.2,
		Progress: 60,
		Trend:    []float64{1, 2, 3, 4, 5, 6, 7},
	}})
	return NewPageProvider(testRegistry(), lister, enricher, zap.NewNop())
}

func TestGetPage(t *testing.T) {
	p := newPageProvider(&stubLister{})

	desc, err := p.GetPage(context.Background(), nil, "products-list")
	if err != nil {
		t.Fatalf("GetPage() error = %v", err)
	}
	if desc.Resource != "products" || desc.CreateFormID != "product-create" {
		t.Errorf("descriptor = %+v", desc)
	}
	if desc.Table == nil {
		t.Fatal("Table = nil")
	}
	if desc.Table.DataEndpoint != "/api/pages/products-list/data" {
		t.Errorf("DataEndpoint = %q", desc.Table.DataEndpoint)
	}
	if len(desc.Table.Columns) != 3 {
		t.Errorf("columns = %d", len(desc.Table.Columns))
	}
	if desc.Table.PageSize != 2 {
		t.Errorf("PageSize = %d", desc.Table.PageSize)
	}
}

func TestGetPage_enumFilterOptionsFromSchema(t *testing.T) {
	p := newPageProvider(&stubLister{})

	desc, err := p.GetPage(context.Background(), nil, "products-list")
	if err != nil {
		t.Fatalf("GetPage() error = %v", err)
	}

	var statusFilter *model.FilterDescriptor
	for i := range desc.Table.Filters {
		if desc.Table.Filters[i].Field == "activeStatus" {
			statusFilter = &desc.Table.Filters[i]
		}
	}
	if statusFilter == nil {
		t.Fatal("activeStatus filter missing")
	}
	if len(statusFilter.Options) != 2 || statusFilter.Options[0].Value != "active" {
		t.Errorf("options = %v", statusFilter.Options)
	}
}

func TestGetPage_notFound(t *testing.T) {
	p := newPageProvider(&stubLister{})
	_, err := p.GetPage(context.Background(), nil, "nope")
	var env *model.ErrorEnvelope
	if !errors.As(err, &env) || env.Code != model.ErrNotFound {
		t.Fatalf("error = %v", err)
	}
}

func TestGetPageData_pipeline(t *testing.T) {
	lister := &stubLister{items: productRecords()}
	p := newPageProvider(lister)

	resp, err := p.GetPageData(context.Background(), nil, "products-list",
		model.Criteria{}, model.SortSpec{}, model.PageWindow{Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("GetPageData() error = %v", err)
	}

	data := resp.Data
	if data.State != model.DataStateOK {
		t.Errorf("State = %q", data.State)
	}
	if data.TotalCount != 3 || data.FilteredCount != 3 {
		t.Errorf("counts = %d/%d", data.TotalCount, data.FilteredCount)
	}
	// Default sort by productName ascending.
	if data.Items[0].String("productName") != "Chair" {
		t.Errorf("first row = %q, want default sort applied", data.Items[0].String("productName"))
	}
	// Derived metrics attached.
	if data.Items[0][model.FieldCSAT] != 4.2 {
		t.Errorf("csat = %v", data.Items[0][model.FieldCSAT])
	}
}

func TestGetPageData_filterAndPaginate(t *testing.T) {
	lister := &stubLister{items: productRecords()}
	p := newPageProvider(lister)

	resp, err := p.GetPageData(context.Background(), nil, "products-list",
		model.Criteria{Fields: map[string]string{"category": "furniture"}},
		model.SortSpec{Field: "price", Direction: "desc"},
		model.PageWindow{Page: 1, PageSize: 1})
	if err != nil {
		t.Fatalf("GetPageData() error = %v", err)
	}

	data := resp.Data
	if data.FilteredCount != 2 || data.TotalPages != 2 {
		t.Errorf("FilteredCount = %d TotalPages = %d", data.FilteredCount, data.TotalPages)
	}
	if len(data.Items) != 1 || data.Items[0].String("id") != "p1" {
		t.Errorf("items = %v", data.Items)
	}
	if data.TotalCount != 3 {
		t.Errorf("TotalCount = %d, want full fetch count", data.TotalCount)
	}
}

func TestGetPageData_emptyState(t *testing.T) {
	lister := &stubLister{items: productRecords()}
	p := newPageProvider(lister)

	resp, err := p.GetPageData(context.Background(), nil, "products-list",
		model.Criteria{Query: "zzz-no-match"}, model.SortSpec{}, model.PageWindow{})
	if err != nil {
		t.Fatalf("GetPageData() error = %v", err)
	}
	if resp.Data.State != model.DataStateEmpty {
		t.Errorf("State = %q, want empty", resp.Data.State)
	}
	if resp.Data.TotalPages != 1 {
		t.Errorf("TotalPages = %d, want 1 for empty result", resp.Data.TotalPages)
	}
}

func TestGetPageData_dropsMalformedRecords(t *testing.T) {
	items := productRecords()
	// Missing required productName.
	items = append(items, model.Record{"id": "p4", "sku": "BAD-1"})
	lister := &stubLister{items: items}
	p := newPageProvider(lister)

	resp, err := p.GetPageData(context.Background(), nil, "products-list",
		model.Criteria{}, model.SortSpec{}, model.PageWindow{})
	if err != nil {
		t.Fatalf("GetPageData() error = %v", err)
	}
	if resp.Data.FilteredCount != 3 {
		t.Errorf("FilteredCount = %d, malformed record kept", resp.Data.FilteredCount)
	}
	if resp.Meta["dropped_records"] != 1 {
		t.Errorf("Meta = %v", resp.Meta)
	}
}

func TestGetPageData_upstreamError(t *testing.T) {
	lister := &stubLister{err: model.NewUpstreamUnavailableError()}
	p := newPageProvider(lister)

	_, err := p.GetPageData(context.Background(), nil, "products-list",
		model.Criteria{}, model.SortSpec{}, model.PageWindow{})
	var env *model.ErrorEnvelope
	if !errors.As(err, &env) || env.Code != model.ErrUpstreamUnavailable {
		t.Fatalf("error = %v", err)
	}
}

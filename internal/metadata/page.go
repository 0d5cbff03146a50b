// Package metadata resolves resource definitions into the descriptors and
// computed data payloads the frontend renders from.
package metadata

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pitabwire/mercura/internal/collection"
	"github.com/pitabwire/mercura/internal/dataset"
	"github.com/pitabwire/mercura/internal/definition"
	"github.com/pitabwire/mercura/internal/enrich"
	"github.com/pitabwire/mercura/internal/schema"
	"github.com/pitabwire/mercura/model"
)

// PageProvider resolves page definitions into descriptors and computes list
// page data from the upstream collection.
type PageProvider struct {
	registry *definition.Registry
	lister   collection.Lister
	coercer  *schema.Coercer
	enricher *enrich.Enricher
	logger   *zap.Logger
}

// NewPageProvider creates a PageProvider. The enricher may be nil when
// derived metrics are disabled.
func NewPageProvider(
	registry *definition.Registry,
	lister collection.Lister,
	enricher *enrich.Enricher,
	logger *zap.Logger,
) *PageProvider {
	return &PageProvider{
		registry: registry,
		lister:   lister,
		coercer:  schema.NewCoercer(),
		enricher: enricher,
		logger:   logger,
	}
}

// GetPage resolves a PageDescriptor from the definition. Returns an error
// with code NOT_FOUND for unknown page IDs.
func (p *PageProvider) GetPage(ctx context.Context, rctx *model.RequestContext, pageID string) (model.PageDescriptor, error) {
	pageDef, resource, ok := p.registry.GetPage(pageID)
	if !ok {
		return model.PageDescriptor{}, model.NewNotFoundError(
			fmt.Sprintf("page %q not found", pageID),
		)
	}

	resDef, ok := p.registry.GetResource(resource)
	if !ok {
		return model.PageDescriptor{}, model.NewInternalError()
	}

	return model.PageDescriptor{
		ID:           pageDef.ID,
		Title:        pageDef.Title,
		Resource:     resource,
		Table:        p.resolveTable(pageDef, resDef),
		CreateFormID: pageDef.CreateFormID,
	}, nil
}

// GetPageData computes one visible page of data: fetch the full collection,
// normalize against the schema, attach derived metrics, then filter, sort
// and paginate in memory.
func (p *PageProvider) GetPageData(
	ctx context.Context,
	rctx *model.RequestContext,
	pageID string,
	crit model.Criteria,
	sortSpec model.SortSpec,
	window model.PageWindow,
) (model.DataResponse, error) {
	pageDef, resource, ok := p.registry.GetPage(pageID)
	if !ok {
		return model.DataResponse{}, model.NewNotFoundError(
			fmt.Sprintf("page %q not found", pageID),
		)
	}
	resDef, ok := p.registry.GetResource(resource)
	if !ok {
		return model.DataResponse{}, model.NewInternalError()
	}

	listing, err := p.lister.List(ctx, rctx, resDef.Collection.Path, nil)
	if err != nil {
		return model.DataResponse{}, err
	}

	records, problems := p.coercer.Normalize(listing.Items, resDef.Schema)
	if len(problems) > 0 {
		p.logger.Warn("records dropped during normalization",
			zap.String("resource", resource),
			zap.Int("dropped", len(problems)),
		)
	}

	if p.enricher != nil {
		records = p.enricher.Enrich(resource, records)
	}

	if len(crit.Fields) > 0 {
		crit.FieldOps = filterOperators(pageDef)
	}

	if sortSpec.Field == "" && pageDef.DefaultSort != "" {
		sortSpec = model.SortSpec{Field: pageDef.DefaultSort, Direction: pageDef.SortDir}
	}
	window = window.Normalize(pageDef.PageSize)

	result := dataset.Apply(records, crit, pageDef.Searchable, sortSpec, window)

	state := model.DataStateOK
	if len(result.Rows) == 0 {
		state = model.DataStateEmpty
	}

	resp := model.DataResponse{
		Data: model.DataPayload{
			State:         state,
			Items:         result.Rows,
			TotalCount:    listing.Total,
			FilteredCount: result.FilteredCount,
			Page:          result.Page,
			PageSize:      result.PageSize,
			TotalPages:    result.TotalPages,
		},
	}
	if len(problems) > 0 {
		resp.Meta = map[string]any{"dropped_records": len(problems)}
	}
	return resp, nil
}

// filterOperators maps each declared filter field to its match operator so
// the engine applies substring matching only where the page asks for it.
func filterOperators(pageDef model.PageDefinition) map[string]string {
	ops := make(map[string]string, len(pageDef.Filters))
	for _, f := range pageDef.Filters {
		if f.Operator != "" {
			ops[f.Field] = f.Operator
		}
	}
	return ops
}

// resolveTable builds the table descriptor, deriving enum filter options
// from the schema when the definition declares none.
func (p *PageProvider) resolveTable(pageDef model.PageDefinition, resDef model.ResourceDefinition) *model.TableDescriptor {
	desc := &model.TableDescriptor{
		DataEndpoint: fmt.Sprintf("/api/pages/%s/data", pageDef.ID),
		DefaultSort:  pageDef.DefaultSort,
		SortDir:      pageDef.SortDir,
		PageSize:     pageDef.PageSize,
	}
	if desc.PageSize <= 0 {
		desc.PageSize = 25
	}

	schemaByName := make(map[string]model.FieldSchema, len(resDef.Schema))
	for _, fs := range resDef.Schema {
		schemaByName[fs.Name] = fs
	}

	for _, col := range pageDef.Columns {
		desc.Columns = append(desc.Columns, model.ColumnDescriptor{
			Field:    col.Field,
			Label:    col.Label,
			Type:     col.Type,
			Sortable: col.Sortable,
			Format:   col.Format,
		})
	}

	for _, f := range pageDef.Filters {
		fd := model.FilterDescriptor{
			Field:    f.Field,
			Label:    f.Label,
			Type:     f.Type,
			Operator: f.Operator,
		}
		for _, opt := range f.Options {
			fd.Options = append(fd.Options, model.OptionDescriptor{Label: opt.Label, Value: opt.Value})
		}
		if len(fd.Options) == 0 {
			if fs, ok := schemaByName[f.Field]; ok && fs.Type == model.FieldTypeEnum {
				for _, v := range fs.Values {
					fd.Options = append(fd.Options, model.OptionDescriptor{Label: v, Value: v})
				}
			}
		}
		desc.Filters = append(desc.Filters, fd)
	}

	return desc
}

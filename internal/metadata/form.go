package metadata

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pitabwire/mercura/internal/collection"
	"github.com/pitabwire/mercura/internal/definition"
	"github.com/pitabwire/mercura/internal/form"
	"github.com/pitabwire/mercura/model"
)

// FormProvider resolves form definitions into descriptors, including
// options sourced from other collections.
type FormProvider struct {
	registry *definition.Registry
	lister   collection.Lister
	logger   *zap.Logger
}

// NewFormProvider creates a FormProvider.
func NewFormProvider(registry *definition.Registry, lister collection.Lister, logger *zap.Logger) *FormProvider {
	return &FormProvider{
		registry: registry,
		lister:   lister,
		logger:   logger,
	}
}

// GetForm resolves a FormDescriptor from the definition. Fields with an
// options source get their options from a live listing of that resource;
// a failed lookup degrades to an empty option list rather than failing
// the whole form.
func (p *FormProvider) GetForm(ctx context.Context, rctx *model.RequestContext, formID string) (model.FormDescriptor, error) {
	formDef, resource, ok := p.registry.GetForm(formID)
	if !ok {
		return model.FormDescriptor{}, model.NewNotFoundError(
			fmt.Sprintf("form %q not found", formID),
		)
	}
	resDef, ok := p.registry.GetResource(resource)
	if !ok {
		return model.FormDescriptor{}, model.NewInternalError()
	}

	schemaByName := form.SchemaByName(resDef.Schema)

	desc := model.FormDescriptor{
		ID:             formDef.ID,
		Title:          formDef.Title,
		Resource:       resource,
		SubmitEndpoint: fmt.Sprintf("/api/forms/%s/submit", formDef.ID),
		SuccessRoute:   formDef.SuccessRoute,
		SuccessMessage: formDef.SuccessMessage,
	}

	for _, stepDef := range formDef.Steps {
		step := form.DescribeStep(stepDef, schemaByName)
		for i, fieldDef := range stepDef.Fields {
			if fieldDef.OptionsSource == "" || len(step.Fields[i].Options) > 0 {
				continue
			}
			step.Fields[i].Options = p.sourceOptions(ctx, rctx, fieldDef)
		}
		desc.Steps = append(desc.Steps, step)
	}

	return desc, nil
}

// sourceOptions lists the source resource and maps each record to an
// option. The option value is the record ID; the label field comes from
// the definition or falls back to the first string field after id.
func (p *FormProvider) sourceOptions(ctx context.Context, rctx *model.RequestContext, fieldDef model.FormField) []model.OptionDescriptor {
	sourceDef, ok := p.registry.GetResource(fieldDef.OptionsSource)
	if !ok {
		p.logger.Warn("options source not found",
			zap.String("field", fieldDef.Name),
			zap.String("source", fieldDef.OptionsSource),
		)
		return nil
	}

	listing, err := p.lister.List(ctx, rctx, sourceDef.Collection.Path, nil)
	if err != nil {
		p.logger.Warn("options source listing failed",
			zap.String("field", fieldDef.Name),
			zap.String("source", fieldDef.OptionsSource),
			zap.Error(err),
		)
		return nil
	}

	labelField := fieldDef.OptionsLabel
	if labelField == "" {
		labelField = defaultLabelField(sourceDef.Schema)
	}

	options := make([]model.OptionDescriptor, 0, len(listing.Items))
	for _, rec := range listing.Items {
		id := rec.String("id")
		if id == "" {
			continue
		}
		label := rec.String(labelField)
		if label == "" {
			label = id
		}
		options = append(options, model.OptionDescriptor{Label: label, Value: id})
	}
	return options
}

func defaultLabelField(fields []model.FieldSchema) string {
	for _, fs := range fields {
		if fs.Name != "id" && fs.Type == model.FieldTypeString {
			return fs.Name
		}
	}
	return "id"
}

package form

import (
	"fmt"

	"github.com/pitabwire/mercura/model"
)

// DescribeStep resolves a step definition into the descriptor sent to the
// frontend, mirroring schema validation rules so the client can validate
// before submitting.
func DescribeStep(step model.StepDefinition, schemaByName map[string]model.FieldSchema) model.StepDescriptor {
	fields := make([]model.FieldDescriptor, 0, len(step.Fields))
	for _, f := range step.Fields {
		fields = append(fields, DescribeField(f, schemaByName))
	}
	return model.StepDescriptor{
		ID:     step.ID,
		Title:  step.Title,
		Fields: fields,
	}
}

// DescribeField resolves a single form field against the resource schema.
func DescribeField(f model.FormField, schemaByName map[string]model.FieldSchema) model.FieldDescriptor {
	fs, hasSchema := schemaByName[f.Name]

	required := fs.Required
	if f.Required != nil {
		required = *f.Required
	}

	fd := model.FieldDescriptor{
		Field:       f.Name,
		Label:       f.Label,
		Type:        f.Type,
		Required:    required,
		ReadOnly:    f.ReadOnly,
		Placeholder: f.Placeholder,
		Default:     f.Default,
	}

	if hasSchema && (fs.Min != nil || fs.Max != nil || fs.Pattern != "") {
		fd.Validation = &model.ValidationDescriptor{
			Min:     fs.Min,
			Max:     fs.Max,
			Pattern: fs.Pattern,
			Message: validationMessage(f, fs),
		}
	}

	for _, o := range f.Options {
		fd.Options = append(fd.Options, model.OptionDescriptor{Label: o.Label, Value: o.Value})
	}
	// Enum fields without explicit options expose the schema values directly.
	if len(fd.Options) == 0 && hasSchema && fs.Type == model.FieldTypeEnum {
		for _, v := range fs.Values {
			fd.Options = append(fd.Options, model.OptionDescriptor{Label: v, Value: v})
		}
	}

	return fd
}

func validationMessage(f model.FormField, fs model.FieldSchema) string {
	label := f.Label
	if label == "" {
		label = f.Name
	}
	switch {
	case fs.Min != nil && fs.Max != nil:
		return fmt.Sprintf("%s must be between %v and %v", label, *fs.Min, *fs.Max)
	case fs.Min != nil:
		return fmt.Sprintf("%s must be at least %v", label, *fs.Min)
	case fs.Max != nil:
		return fmt.Sprintf("%s must be at most %v", label, *fs.Max)
	case fs.Pattern != "":
		return fmt.Sprintf("%s has an invalid format", label)
	}
	return ""
}

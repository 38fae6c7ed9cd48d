package definition

import (
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-formwizard/pkg/model"
)

// OpenAPIVersion is the document version emitted by OpenAPI.
const OpenAPIVersion = "3.0.3"

// OpenAPI describes the HTTP contract of the supplied wizards: one schema per
// step, the flattened record sent to the create collaborator, and the
// session endpoints that accept them.
func OpenAPI(title, version string, defs ...Definition) *openapi3.T {
	if strings.TrimSpace(title) == "" {
		title = "formwizard"
	}
	if strings.TrimSpace(version) == "" {
		version = "1.0.0"
	}

	doc := &openapi3.T{
		OpenAPI: OpenAPIVersion,
		Info:    &openapi3.Info{Title: title, Version: version},
		Paths:   openapi3.NewPaths(),
		Components: &openapi3.Components{
			Schemas: openapi3.Schemas{},
		},
	}

	snapshot := snapshotSchema()
	failure := errorSchema()
	doc.Components.Schemas["Snapshot"] = openapi3.NewSchemaRef("", snapshot)
	doc.Components.Schemas["Error"] = openapi3.NewSchemaRef("", failure)
	session := sessionSchema(snapshot)
	doc.Components.Schemas["Session"] = openapi3.NewSchemaRef("", session)
	responses := func() *openapi3.Responses { return snapshotResponses(snapshot, failure) }

	wizardIDs := make([]any, 0, len(defs))
	for _, def := range defs {
		wizardIDs = append(wizardIDs, def.ID)
		prefix := schemaName(def.ID)
		record := openapi3.NewObjectSchema()
		record.Description = def.Title

		for _, step := range def.Steps {
			stepSchema := fieldsSchema(step.Fields)
			stepSchema.Title = step.Title
			stepSchema.Description = step.Description
			doc.Components.Schemas[prefix+schemaName(step.Key)] = openapi3.NewSchemaRef("", stepSchema)

			for name, prop := range stepSchema.Properties {
				record.Properties[name] = prop
			}
			record.Required = append(record.Required, stepSchema.Required...)
		}
		storage := openapi3.NewStringSchema()
		storage.Description = "Storage key returned by the upload collaborator."
		record.Properties[def.StorageKey()] = openapi3.NewSchemaRef("", storage)
		record.Required = append(record.Required, def.StorageKey())
		doc.Components.Schemas[prefix+"Record"] = openapi3.NewSchemaRef("", record)
	}

	wizardParam := openapi3.NewPathParameter("wizard").WithSchema(openapi3.NewStringSchema().WithEnum(wizardIDs...))
	sessionParam := openapi3.NewPathParameter("id").WithSchema(openapi3.NewStringSchema().WithFormat("uuid"))

	doc.Paths.Set("/api/wizards/{wizard}/sessions", &openapi3.PathItem{
		Post: &openapi3.Operation{
			OperationID: "createSession",
			Summary:     "Start a wizard session",
			Parameters:  openapi3.Parameters{{Value: wizardParam}},
			Responses: openapi3.NewResponses(
				openapi3.WithStatus(201, &openapi3.ResponseRef{Value: openapi3.NewResponse().
					WithDescription("Session created").
					WithJSONSchemaRef(openapi3.NewSchemaRef("#/components/schemas/Session", session))}),
				openapi3.WithStatus(404, &openapi3.ResponseRef{Value: openapi3.NewResponse().
					WithDescription("Unknown wizard").
					WithJSONSchemaRef(openapi3.NewSchemaRef("#/components/schemas/Error", failure))}),
			),
		},
	})

	nextBody := openapi3.NewObjectSchema().
		WithProperty("step", openapi3.NewStringSchema()).
		WithProperty("values", openapi3.NewObjectSchema().WithAnyAdditionalProperties())
	nextBody.Required = []string{"step", "values"}
	doc.Paths.Set("/api/sessions/{id}/next", &openapi3.PathItem{
		Post: &openapi3.Operation{
			OperationID: "nextStep",
			Summary:     "Validate the current step and advance",
			Parameters:  openapi3.Parameters{{Value: sessionParam}},
			RequestBody: &openapi3.RequestBodyRef{Value: openapi3.NewRequestBody().WithRequired(true).WithJSONSchema(nextBody)},
			Responses:   responses(),
		},
	})

	doc.Paths.Set("/api/sessions/{id}/back", &openapi3.PathItem{
		Post: &openapi3.Operation{
			OperationID: "previousStep",
			Summary:     "Return to the previous step",
			Parameters:  openapi3.Parameters{{Value: sessionParam}},
			Responses:   responses(),
		},
	})

	doc.Paths.Set("/api/sessions/{id}/submit", &openapi3.PathItem{
		Post: &openapi3.Operation{
			OperationID: "submitWizard",
			Summary:     "Upload the staged file and create the record",
			Parameters:  openapi3.Parameters{{Value: sessionParam}},
			Responses: openapi3.NewResponses(
				openapi3.WithStatus(201, &openapi3.ResponseRef{Value: openapi3.NewResponse().
					WithDescription("Created").
					WithJSONSchema(outcomeSchema())}),
				openapi3.WithStatus(422, &openapi3.ResponseRef{Value: openapi3.NewResponse().
					WithDescription("Submission failed").
					WithJSONSchema(outcomeSchema())}),
			),
		},
	})

	return doc
}

func snapshotResponses(snapshot, failure *openapi3.Schema) *openapi3.Responses {
	return openapi3.NewResponses(
		openapi3.WithStatus(200, &openapi3.ResponseRef{Value: openapi3.NewResponse().
			WithDescription("Wizard snapshot").
			WithJSONSchemaRef(openapi3.NewSchemaRef("#/components/schemas/Snapshot", snapshot))}),
		openapi3.WithStatus(422, &openapi3.ResponseRef{Value: openapi3.NewResponse().
			WithDescription("Validation failed").
			WithJSONSchemaRef(openapi3.NewSchemaRef("#/components/schemas/Error", failure))}),
	)
}

func fieldsSchema(fields []model.FieldSpec) *openapi3.Schema {
	schema := openapi3.NewObjectSchema()
	for _, field := range fields {
		schema.Properties[field.Name] = openapi3.NewSchemaRef("", fieldSchema(field))
		if field.Required {
			schema.Required = append(schema.Required, field.Name)
		}
	}
	return schema
}

func fieldSchema(field model.FieldSpec) *openapi3.Schema {
	var schema *openapi3.Schema
	switch field.Kind {
	case model.FieldKindObject:
		schema = fieldsSchema(field.Nested)
	case model.FieldKindNumber:
		schema = openapi3.NewFloat64Schema()
	case model.FieldKindBoolean:
		schema = openapi3.NewBoolSchema()
	case model.FieldKindEmail:
		schema = openapi3.NewStringSchema().WithFormat("email")
	case model.FieldKindURL:
		schema = openapi3.NewStringSchema().WithFormat("uri")
	case model.FieldKindDate:
		schema = openapi3.NewStringSchema().WithFormat("date")
	case model.FieldKindTel:
		schema = openapi3.NewStringSchema().WithFormat("tel")
	case model.FieldKindFile:
		schema = openapi3.NewStringSchema()
		schema.Description = "Storage key of an uploaded file."
	default:
		schema = openapi3.NewStringSchema()
	}

	schema.Title = field.DisplayLabel()
	if field.Description != "" {
		schema.Description = field.Description
	}
	for _, option := range field.Options {
		schema.Enum = append(schema.Enum, option.Value)
	}
	for _, rule := range field.Constraints {
		applyRule(schema, rule)
	}
	return schema
}

func applyRule(schema *openapi3.Schema, rule model.ValidationRule) {
	value := strings.TrimSpace(rule.Params["value"])
	switch rule.Kind {
	case model.ValidationRuleMin:
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			schema.Min = &v
		}
	case model.ValidationRuleMax:
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			schema.Max = &v
		}
	case model.ValidationRuleMinLength:
		if v, err := strconv.ParseUint(value, 10, 64); err == nil {
			schema.MinLength = v
		}
	case model.ValidationRuleMaxLength:
		if v, err := strconv.ParseUint(value, 10, 64); err == nil {
			schema.MaxLength = &v
		}
	case model.ValidationRulePattern:
		schema.Pattern = rule.Params["pattern"]
	}
}

func snapshotSchema() *openapi3.Schema {
	schema := openapi3.NewObjectSchema().
		WithProperty("index", openapi3.NewIntegerSchema()).
		WithProperty("key", openapi3.NewStringSchema()).
		WithProperty("total", openapi3.NewIntegerSchema()).
		WithProperty("isFirst", openapi3.NewBoolSchema()).
		WithProperty("isLast", openapi3.NewBoolSchema()).
		WithProperty("active", openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema())).
		WithProperty("state", openapi3.NewObjectSchema().WithAnyAdditionalProperties()).
		WithProperty("errors", openapi3.NewObjectSchema().WithAdditionalProperties(openapi3.NewStringSchema()))
	schema.Required = []string{"index", "key", "total", "isFirst", "isLast"}
	return schema
}

func sessionSchema(snapshot *openapi3.Schema) *openapi3.Schema {
	upload := openapi3.NewObjectSchema().
		WithProperty("fileName", openapi3.NewStringSchema()).
		WithProperty("previewUrl", openapi3.NewStringSchema()).
		WithProperty("sizeBytes", openapi3.NewInt64Schema())
	schema := openapi3.NewObjectSchema().
		WithProperty("id", openapi3.NewStringSchema().WithFormat("uuid")).
		WithProperty("wizard", openapi3.NewStringSchema()).
		WithPropertyRef("snapshot", openapi3.NewSchemaRef("#/components/schemas/Snapshot", snapshot)).
		WithProperty("upload", upload)
	schema.Required = []string{"id", "wizard", "snapshot"}
	return schema
}

func errorSchema() *openapi3.Schema {
	schema := openapi3.NewObjectSchema().
		WithProperty("error", openapi3.NewStringSchema()).
		WithProperty("code", openapi3.NewStringSchema()).
		WithProperty("fields", openapi3.NewObjectSchema().WithAnyAdditionalProperties())
	schema.Required = []string{"error"}
	return schema
}

func outcomeSchema() *openapi3.Schema {
	schema := openapi3.NewObjectSchema().
		WithProperty("kind", openapi3.NewStringSchema().WithEnum("success", "failure", "missing_required_input")).
		WithProperty("message", openapi3.NewStringSchema()).
		WithProperty("stage", openapi3.NewStringSchema()).
		WithProperty("entity", openapi3.NewObjectSchema().WithAnyAdditionalProperties()).
		WithProperty("fieldErrors", openapi3.NewObjectSchema().WithAnyAdditionalProperties())
	schema.Required = []string{"kind"}
	return schema
}

// schemaName turns "create-company" into "CreateCompany".
func schemaName(id string) string {
	parts := strings.FieldsFunc(id, func(r rune) bool {
		return r == '-' || r == '_' || r == '.' || r == ' '
	})
	var b strings.Builder
	for _, part := range parts {
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}

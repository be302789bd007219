package schema

import (
	"encoding/json"
	"fmt"

	"github.com/glimte/protoreg/serialization"
)

const draft07 = "http://json-schema.org/draft-07/schema#"

// JSONSchemaGenerator renders compiled schemas as JSON Schema draft-07
// documents. Referenced protocols are emitted once under "definitions".
type JSONSchemaGenerator struct {
	strict bool
}

// GeneratorOption configures the generator
type GeneratorOption func(*JSONSchemaGenerator)

// WithAdditionalProperties controls whether objects accept undeclared fields.
// It mirrors the validator's strict mode and defaults to false.
func WithAdditionalProperties(allowed bool) GeneratorOption {
	return func(g *JSONSchemaGenerator) {
		g.strict = !allowed
	}
}

// NewJSONSchemaGenerator creates a new JSON schema generator
func NewJSONSchemaGenerator(opts ...GeneratorOption) *JSONSchemaGenerator {
	g := &JSONSchemaGenerator{strict: true}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate renders a compiled schema with its transitive references
func (g *JSONSchemaGenerator) Generate(schema *CompiledSchema) (json.RawMessage, error) {
	if schema == nil {
		return nil, fmt.Errorf("schema cannot be nil")
	}

	definitions := serialization.NewObject()
	doc := serialization.NewObject()
	doc.Set("$schema", draft07)
	doc.Set("$id", fmt.Sprintf("protoreg:%s", schema.Name()))
	doc.Set("title", schema.Name())
	if schema.Description != "" {
		doc.Set("description", schema.Description)
	} else {
		doc.Set("description", fmt.Sprintf("Schema for %s (%s, default port %d)",
			schema.Name(), schema.Definition.Transport, schema.Definition.DefaultPort))
	}

	body := g.objectNode(schema.Root, definitions)
	for _, k := range body.Keys() {
		v, _ := body.Get(k)
		doc.Set(k, v)
	}
	if definitions.Len() > 0 {
		doc.Set("definitions", definitions)
	}

	return json.Marshal(doc)
}

func (g *JSONSchemaGenerator) define(schema *CompiledSchema, definitions *serialization.Object) {
	if definitions.Has(schema.Name()) {
		return
	}
	// Reserve the slot first so shared references are emitted once
	definitions.Set(schema.Name(), nil)
	def := g.objectNode(schema.Root, definitions)
	def.Set("title", schema.Name())
	definitions.Set(schema.Name(), def)
}

func (g *JSONSchemaGenerator) generateNode(node *Node, definitions *serialization.Object) *serialization.Object {
	switch node.Kind {
	case NodeReference:
		g.define(node.Ref, definitions)
		out := serialization.NewObject()
		out.Set("$ref", "#/definitions/"+node.Ref.Name())
		return out
	case NodeObject:
		return g.objectNode(node, definitions)
	}

	out := serialization.NewObject()
	if node.Type != TypeAny {
		out.Set("type", string(node.Type))
	}
	if node.Description != "" {
		out.Set("description", node.Description)
	}
	if len(node.Enum) > 0 {
		out.Set("enum", node.Enum)
	}
	if node.Minimum != nil {
		out.Set("minimum", *node.Minimum)
	}
	if node.Maximum != nil {
		out.Set("maximum", *node.Maximum)
	}
	if node.MinLength != nil {
		key := "minLength"
		if node.Type == TypeArray {
			key = "minItems"
		}
		out.Set(key, *node.MinLength)
	}
	if node.MaxLength != nil {
		key := "maxLength"
		if node.Type == TypeArray {
			key = "maxItems"
		}
		out.Set(key, *node.MaxLength)
	}
	if node.Pattern != nil {
		out.Set("pattern", node.Pattern.String())
	}
	if node.HasDefault {
		out.Set("default", node.Default)
	}
	if node.Items != nil {
		out.Set("items", g.generateNode(node.Items, definitions))
	}
	return out
}

func (g *JSONSchemaGenerator) objectNode(node *Node, definitions *serialization.Object) *serialization.Object {
	out := serialization.NewObject()
	out.Set("type", "object")
	if node.Description != "" {
		out.Set("description", node.Description)
	}

	properties := serialization.NewObject()
	required := make([]string, 0)
	for _, f := range node.Fields {
		properties.Set(f.Name, g.generateNode(f.Node, definitions))
		if f.Required {
			required = append(required, f.Name)
		}
	}
	out.Set("properties", properties)
	if len(required) > 0 {
		out.Set("required", required)
	}
	out.Set("additionalProperties", !g.strict)
	return out
}

package schema

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONSchemaGenerator_Generate(t *testing.T) {
	t.Run("renders builtin and declared fields", func(t *testing.T) {
		dns := compileJSON(t, `{"protocol": "DNS", "transport": "UDP", "port": 53, "fields": {
			"query": {"type": "string", "description": "Query name", "pattern": "^[a-z.]+$"},
			"recursive": {"type": "boolean", "default": true},
			"servers": {"type": "array", "items": {"type": "string"}, "minLength": 1, "optional": true}
		}}`)

		out, err := NewJSONSchemaGenerator().Generate(dns)
		require.NoError(t, err)

		assert.JSONEq(t, `{
			"$schema": "http://json-schema.org/draft-07/schema#",
			"$id": "protoreg:DNS",
			"title": "DNS",
			"description": "Schema for DNS (UDP, default port 53)",
			"type": "object",
			"properties": {
				"transport": {"type": "string", "description": "Transport-layer protocol", "enum": ["TCP", "UDP"], "default": "UDP"},
				"port": {"type": "integer", "description": "Server port", "minimum": 0, "maximum": 65535, "default": 53},
				"query": {"type": "string", "description": "Query name", "pattern": "^[a-z.]+$"},
				"recursive": {"type": "boolean", "default": true},
				"servers": {"type": "array", "minItems": 1, "items": {"type": "string"}}
			},
			"required": ["query"],
			"additionalProperties": false
		}`, string(out))
	})

	t.Run("keeps declaration order", func(t *testing.T) {
		compiled := compileJSON(t, `{"protocol": "X", "transport": "TCP", "port": 1, "fields": {
			"zeta": {"type": "string"},
			"alpha": {"type": "string"}
		}}`)

		out, err := NewJSONSchemaGenerator().Generate(compiled)
		require.NoError(t, err)

		s := string(out)
		assert.Less(t, strings.Index(s, `"$schema"`), strings.Index(s, `"properties"`))
		assert.Less(t, strings.Index(s, `"transport"`), strings.Index(s, `"zeta"`))
		assert.Less(t, strings.Index(s, `"zeta"`), strings.Index(s, `"alpha"`))
	})

	t.Run("emits shared references once under definitions", func(t *testing.T) {
		endpoint := compileJSON(t, `{"protocol": "ENDPOINT", "transport": "TCP", "port": 443, "fields": {"host": {"type": "string"}}}`)
		proxy, err := NewCompiler().Compile(parseJSON(t, `{"protocol": "PROXY", "transport": "TCP", "port": 3128, "fields": {
			"server": {"$ref": "ENDPOINT"},
			"backups": {"type": "array", "items": {"$ref": "ENDPOINT"}}
		}}`), resolverOf(endpoint))
		require.NoError(t, err)

		out, err := NewJSONSchemaGenerator().Generate(proxy)
		require.NoError(t, err)

		var doc map[string]any
		require.NoError(t, json.Unmarshal(out, &doc))

		definitions := doc["definitions"].(map[string]any)
		assert.Len(t, definitions, 1)
		assert.Equal(t, "ENDPOINT", definitions["ENDPOINT"].(map[string]any)["title"])

		properties := doc["properties"].(map[string]any)
		assert.Equal(t, map[string]any{"$ref": "#/definitions/ENDPOINT"}, properties["server"])
		assert.Equal(t, map[string]any{"$ref": "#/definitions/ENDPOINT"}, properties["backups"].(map[string]any)["items"])
	})

	t.Run("allows additional properties when configured", func(t *testing.T) {
		compiled := compileJSON(t, `{"protocol": "X", "transport": "TCP", "port": 1}`)

		out, err := NewJSONSchemaGenerator(WithAdditionalProperties(true)).Generate(compiled)
		require.NoError(t, err)

		var doc map[string]any
		require.NoError(t, json.Unmarshal(out, &doc))
		assert.Equal(t, true, doc["additionalProperties"])
		assert.NotContains(t, doc, "required")
	})

	t.Run("rejects nil schemas", func(t *testing.T) {
		_, err := NewJSONSchemaGenerator().Generate(nil)
		assert.Error(t, err)
	})
}

package schema

import (
	"testing"

	"github.com/glimte/protoreg/serialization"
	"github.com/stretchr/testify/require"
)

// parseJSON decodes and parses a schema document
func parseJSON(t *testing.T, doc string) *RawDocument {
	t.Helper()
	obj, err := serialization.JSONCodec{}.Decode([]byte(doc))
	require.NoError(t, err)
	raw, err := ParseDocument(obj)
	require.NoError(t, err)
	return raw
}

// compileJSON parses and compiles a schema document without references
func compileJSON(t *testing.T, doc string) *CompiledSchema {
	t.Helper()
	compiled, err := NewCompiler().Compile(parseJSON(t, doc), nil)
	require.NoError(t, err)
	return compiled
}

// resolverOf resolves names from a fixed set of compiled schemas
func resolverOf(schemas ...*CompiledSchema) ResolveFunc {
	return func(name string) (*CompiledSchema, error) {
		for _, s := range schemas {
			if s.Name() == name {
				return s, nil
			}
		}
		return nil, errNotFound(name)
	}
}

type errNotFound string

func (e errNotFound) Error() string { return "not found: " + string(e) }

func intPtr(i int) *int { return &i }

func floatPtr(f float64) *float64 { return &f }

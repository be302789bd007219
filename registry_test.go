package protoreg

import (
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/glimte/protoreg/contracts"
	"github.com/glimte/protoreg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doc(name, transport string, port int, fields ...schema.RawField) *schema.RawDocument {
	return &schema.RawDocument{Protocol: name, Transport: transport, Port: port, Fields: fields}
}

func TestRegistry_Describe(t *testing.T) {
	t.Run("returns the exact definition supplied", func(t *testing.T) {
		for _, tc := range []struct {
			transport string
			port      int
		}{{"TCP", 0}, {"UDP", 53}, {"TCP", 4317}, {"UDP", 65535}} {
			r := NewRegistry()
			require.NoError(t, r.Register(doc("proto", tc.transport, tc.port)))

			def, err := r.Describe("PROTO")
			require.NoError(t, err)
			assert.Equal(t, contracts.ProtocolDefinition{
				Name:        "PROTO",
				Transport:   contracts.Transport(tc.transport),
				DefaultPort: tc.port,
			}, def)
		}
	})

	t.Run("unknown protocol", func(t *testing.T) {
		_, err := NewRegistry().Describe("SMTP")
		assert.ErrorIs(t, err, contracts.ErrUnknownProtocol)
	})
}

func TestRegistry_Register(t *testing.T) {
	t.Run("duplicate keeps the first registration", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(doc("DNS", "UDP", 53)))

		err := r.Register(doc("dns", "TCP", 5353))
		assert.ErrorIs(t, err, contracts.ErrDuplicateProtocol)

		def, _ := r.Describe("DNS")
		assert.Equal(t, 53, def.DefaultPort)
	})

	t.Run("references must already be registered", func(t *testing.T) {
		r := NewRegistry()
		web := doc("WEB", "TCP", 80, schema.Field("resolver", schema.Ref("DNS")))

		assert.ErrorIs(t, r.Register(web), contracts.ErrUnresolvedReference)

		require.NoError(t, r.Register(doc("DNS", "UDP", 53)))
		require.NoError(t, r.Register(web))
	})

	t.Run("cyclic schema is not registered", func(t *testing.T) {
		r := NewRegistry()
		err := r.Register(doc("LOOP", "TCP", 1, schema.Field("self", schema.Ref("LOOP"))))

		assert.ErrorIs(t, err, contracts.ErrCyclicSchema)
		assert.Zero(t, r.Len())
	})

	t.Run("freeze stops registration", func(t *testing.T) {
		r := NewRegistry()
		r.Freeze()

		assert.True(t, r.Frozen())
		assert.ErrorIs(t, r.Register(doc("DNS", "UDP", 53)), contracts.ErrStoreFrozen)
		assert.ErrorIs(t, r.RegisterAll([]*schema.RawDocument{doc("DNS", "UDP", 53)})["DNS"], contracts.ErrStoreFrozen)
	})
}

func TestRegistry_RegisterAll(t *testing.T) {
	t.Run("references to an already registered name use the stored schema", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(doc("DNS", "UDP", 53, schema.Field("zone", schema.Literal("string")))))
		stored, err := r.Schema("DNS")
		require.NoError(t, err)

		failed := r.RegisterAll([]*schema.RawDocument{
			doc("DNS", "TCP", 5353, schema.Field("server", schema.Literal("string"))),
			doc("WEB", "TCP", 80, schema.Field("resolver", schema.Ref("DNS"))),
		})
		require.Len(t, failed, 1)
		assert.ErrorIs(t, failed["DNS"], contracts.ErrDuplicateProtocol)

		web, err := r.Schema("WEB")
		require.NoError(t, err)
		field, ok := web.Root.Field("resolver")
		require.True(t, ok)
		assert.Same(t, stored, field.Node.Ref)

		result, err := r.ValidateFor("WEB", map[string]any{"resolver": map[string]any{"zone": "example.org"}})
		require.NoError(t, err)
		assert.True(t, result.Valid, "%v", result.Errors)

		def, _ := r.Describe("DNS")
		assert.Equal(t, 53, def.DefaultPort)
	})

	t.Run("registers every valid document regardless of order", func(t *testing.T) {
		r := NewRegistry()
		failed := r.RegisterAll([]*schema.RawDocument{
			doc("WEB", "TCP", 80, schema.Field("resolver", schema.Ref("DNS"))),
			doc("DNS", "UDP", 53),
		})

		assert.Empty(t, failed)
		assert.Equal(t, []string{"DNS", "WEB"}, slices.Collect(r.List()))
	})

	t.Run("isolates failures", func(t *testing.T) {
		r := NewRegistry()
		failed := r.RegisterAll([]*schema.RawDocument{
			doc("A", "TCP", 1, schema.Field("b", schema.Ref("B"))),
			doc("B", "TCP", 1, schema.Field("a", schema.Ref("A"))),
			doc("C", "TCP", 1, schema.Field("a", schema.Ref("A"))),
			doc("D", "SCTP", 1),
			doc("E", "TCP", 1),
			nil,
		})

		assert.ErrorIs(t, failed["A"], contracts.ErrCyclicSchema)
		assert.ErrorIs(t, failed["B"], contracts.ErrCyclicSchema)
		assert.ErrorIs(t, failed["C"], contracts.ErrUnresolvedReference)
		assert.ErrorIs(t, failed["D"], contracts.ErrSchemaDefinition)
		assert.ErrorIs(t, failed["#5"], contracts.ErrSchemaDefinition)
		assert.Len(t, failed, 5)
		assert.Equal(t, []string{"E"}, slices.Collect(r.List()))
	})

	t.Run("duplicate in batch keeps the first document", func(t *testing.T) {
		r := NewRegistry()
		failed := r.RegisterAll([]*schema.RawDocument{doc("DNS", "UDP", 53), doc("DNS", "TCP", 5353)})

		assert.ErrorIs(t, failed["DNS"], contracts.ErrDuplicateProtocol)
		def, err := r.Describe("DNS")
		require.NoError(t, err)
		assert.Equal(t, contracts.TransportUDP, def.Transport)
	})
}

func TestRegistry_Validate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(doc("METRICS", "TCP", 4317,
		schema.Field("endpoint", schema.Literal("string")),
		schema.Field("interval", schema.Literal("integer").WithDefault(10)),
	)))
	r.Freeze()

	t.Run("valid document", func(t *testing.T) {
		result, err := r.ValidateFor("metrics", map[string]any{"transport": "TCP", "port": 4317, "endpoint": "collector"})
		require.NoError(t, err)
		assert.True(t, result.Valid)
		assert.Empty(t, result.Errors)
	})

	t.Run("invalid transport", func(t *testing.T) {
		result, err := r.ValidateJSONFor("METRICS", []byte(`{"transport": "SCTP", "endpoint": "c"}`))
		require.NoError(t, err)

		require.Len(t, result.Errors, 1)
		assert.Equal(t, schema.KindEnumViolation, result.Errors[0].Kind)
		assert.Equal(t, "transport", result.Errors[0].Field())
	})

	t.Run("malformed json is an error", func(t *testing.T) {
		_, err := r.ValidateJSONFor("METRICS", []byte(`{`))
		assert.Error(t, err)
	})

	t.Run("unknown protocol propagates", func(t *testing.T) {
		_, err := r.ValidateFor("SMTP", map[string]any{})
		var unknown *contracts.UnknownProtocolError
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, "SMTP", unknown.Name)

		_, err = r.ValidateJSONFor("SMTP", []byte(`{}`))
		assert.ErrorIs(t, err, contracts.ErrUnknownProtocol)
		_, _, err = r.NormalizeFor("SMTP", map[string]any{})
		assert.ErrorIs(t, err, contracts.ErrUnknownProtocol)
		_, err = r.ExportJSONSchema("SMTP")
		assert.ErrorIs(t, err, contracts.ErrUnknownProtocol)
	})

	t.Run("normalize fills defaults", func(t *testing.T) {
		normalized, result, err := r.NormalizeFor("METRICS", map[string]any{"endpoint": "c"})
		require.NoError(t, err)
		assert.True(t, result.Valid)
		assert.Equal(t, map[string]any{"transport": "TCP", "port": int64(4317), "endpoint": "c", "interval": 10}, normalized)
	})

	t.Run("non-strict registry ignores unknown fields", func(t *testing.T) {
		loose := NewRegistry(WithStrictMode(false))
		require.NoError(t, loose.Register(doc("DNS", "UDP", 53)))

		result, err := loose.ValidateFor("DNS", map[string]any{"extra": true})
		require.NoError(t, err)
		assert.True(t, result.Valid)
		assert.False(t, loose.Strict())
	})

	t.Run("exports json schema", func(t *testing.T) {
		out, err := r.ExportJSONSchema("metrics")
		require.NoError(t, err)

		var exported map[string]any
		require.NoError(t, json.Unmarshal(out, &exported))
		assert.Equal(t, "METRICS", exported["title"])
		assert.Equal(t, []any{"endpoint"}, exported["required"])
	})

	t.Run("list is restartable", func(t *testing.T) {
		seq := r.List()
		assert.Equal(t, slices.Collect(seq), slices.Collect(seq))
	})
}

func TestRegistry_LoadDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	write("web.json", `{"protocol": "web", "transport": "TCP", "port": 80, "fields": {"resolver": {"$ref": "DNS"}}}`)
	write("dns.yaml", "protocol: dns\ntransport: UDP\nport: 53\n")
	write("broken.toml", "protocol = ")

	r := NewRegistry()
	failed, err := r.LoadDir(dir)
	require.NoError(t, err)

	assert.Len(t, failed, 1)
	assert.Contains(t, failed, filepath.Join(dir, "broken.toml"))
	assert.Equal(t, []string{"DNS", "WEB"}, slices.Collect(r.List()))

	_, err = NewRegistry().LoadDir(filepath.Join(dir, "absent"))
	assert.Error(t, err)
}

func TestRegistry_ExampleSchemas(t *testing.T) {
	t.Run("bundled schemas load cleanly", func(t *testing.T) {
		r := NewRegistry()
		failed, err := r.LoadDir("schemas")
		require.NoError(t, err)
		assert.Empty(t, failed)
		assert.Equal(t, []string{"DNS", "FTP", "HTTP", "IMAP", "LDAP", "MYSQL", "SMTP", "SSH"}, slices.Collect(r.List()))

		def, err := r.Describe("mysql")
		require.NoError(t, err)
		assert.Equal(t, contracts.ProtocolDefinition{Name: "MYSQL", Transport: contracts.TransportTCP, DefaultPort: 3306}, def)

		normalized, result, err := r.NormalizeFor("SSH", map[string]any{
			"host": "10.0.0.5", "username": "root", "password": "x", "cmd": "id",
		})
		require.NoError(t, err)
		assert.True(t, result.Valid, "%v", result.Errors)
		assert.Equal(t, ".*", normalized["content_regex"])
		assert.Equal(t, false, normalized["match_content"])

		result, err = r.ValidateJSONFor("HTTP", []byte(`{"host": "example.com", "resolver": {"query": "example.com"}}`))
		require.NoError(t, err)
		assert.True(t, result.Valid, "%v", result.Errors)
	})
}

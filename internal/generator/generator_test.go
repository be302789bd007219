package generator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/glimte/protoreg/contracts"
	"github.com/glimte/protoreg/schema"
	"github.com/glimte/protoreg/serialization"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerator_Render(t *testing.T) {
	t.Run("renders the built-in template", func(t *testing.T) {
		g, err := New()
		require.NoError(t, err)

		out, err := g.Render("ssh", "TCP", 22)
		require.NoError(t, err)

		obj, err := serialization.JSONCodec{}.Decode(out)
		require.NoError(t, err)
		raw, err := schema.ParseDocument(obj)
		require.NoError(t, err)

		compiled, err := schema.NewCompiler().Compile(raw, nil)
		require.NoError(t, err)
		assert.Equal(t, contracts.ProtocolDefinition{Name: "SSH", Transport: contracts.TransportTCP, DefaultPort: 22}, compiled.Definition)
	})

	t.Run("renders references in custom templates", func(t *testing.T) {
		g, err := New(WithTemplate(`{"protocol": "{{.Protocol}}", "transport": "{{.Transport}}", "port": {{.Port}},
			"fields": {"resolver": {"{{.Ref}}": "DNS"}, "label": {"type": "string", "default": "{{lower .Protocol}}"}}}`))
		require.NoError(t, err)

		out, err := g.Render("web", "TCP", 80)
		require.NoError(t, err)
		assert.Contains(t, string(out), `"$ref": "DNS"`)
		assert.Contains(t, string(out), `"default": "web"`)
	})

	t.Run("rejects invalid arguments before rendering", func(t *testing.T) {
		g, err := New()
		require.NoError(t, err)

		for _, tc := range []struct {
			name      string
			protocol  string
			transport string
			port      int
		}{
			{"unknown transport", "ssh", "SCTP", 22},
			{"lowercase transport", "ssh", "tcp", 22},
			{"negative port", "ssh", "TCP", -1},
			{"large port", "ssh", "TCP", 65536},
			{"empty protocol", " ", "TCP", 22},
			{"path in protocol", "../ssh", "TCP", 22},
		} {
			t.Run(tc.name, func(t *testing.T) {
				_, err := g.Render(tc.protocol, tc.transport, tc.port)
				assert.Error(t, err)
			})
		}
	})

	t.Run("rejects templates that do not round trip", func(t *testing.T) {
		for name, text := range map[string]string{
			"not json":       `protocol = "{{.Protocol}}"`,
			"not a schema":   `{"protocol": "{{.Protocol}}", "transport": "{{.Transport}}", "port": {{.Port}}, "extra": 1}`,
			"wrong protocol": `{"protocol": "OTHER", "transport": "{{.Transport}}", "port": {{.Port}}}`,
			"wrong port":     `{"protocol": "{{.Protocol}}", "transport": "{{.Transport}}", "port": 1}`,
			"unknown key":    `{"protocol": "{{.Name}}"}`,
		} {
			t.Run(name, func(t *testing.T) {
				g, err := New(WithTemplate(text))
				require.NoError(t, err)

				_, err = g.Render("ssh", "TCP", 22)
				assert.Error(t, err)
			})
		}
	})

	t.Run("rejects unparsable templates", func(t *testing.T) {
		_, err := New(WithTemplate("{{.Protocol"))
		assert.Error(t, err)
	})
}

func TestGenerator_WriteFile(t *testing.T) {
	t.Run("writes protocol.json with the name as given", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "schemas")
		g, err := New()
		require.NoError(t, err)

		path, err := g.WriteFile(dir, "dns", "UDP", 53)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "dns.json"), path)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"protocol": "DNS"`)
		assert.Contains(t, string(data), `"port": 53`)
	})

	t.Run("writes nothing on invalid input", func(t *testing.T) {
		dir := t.TempDir()
		g, err := New()
		require.NoError(t, err)

		_, err = g.WriteFile(dir, "dns", "UDP", 70000)
		require.Error(t, err)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("loads templates from files", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "custom.json")
		require.NoError(t, os.WriteFile(path, []byte(DefaultTemplate()), 0o644))

		g, err := NewFromFile(path)
		require.NoError(t, err)
		_, err = g.Render("ntp", "UDP", 123)
		assert.NoError(t, err)

		_, err = NewFromFile(filepath.Join(t.TempDir(), "absent.json"))
		assert.Error(t, err)
	})
}

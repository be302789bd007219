package serialization

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCodec struct {
	name string
	exts []string
}

func (f fakeCodec) Name() string { return f.name }
func (f fakeCodec) Extensions() []string { return f.exts }
func (f fakeCodec) Decode(data []byte) (*Object, error) { return NewObject(), nil }

func TestDefaultCodecRegistry(t *testing.T) {
	t.Run("creates new registry", func(t *testing.T) {
		registry := NewCodecRegistry()
		assert.NotNil(t, registry)
		assert.Empty(t, registry.ListFormats())
	})

	t.Run("default registry knows json yaml and toml", func(t *testing.T) {
		registry := NewDefaultCodecRegistry()
		assert.Equal(t, []string{"json", "toml", "yaml"}, registry.ListFormats())

		for path, want := range map[string]string{
			"a/http.json": "json",
			"dns.YAML":    "yaml",
			"dns.yml":     "yaml",
			"smtp.toml":   "toml",
		} {
			codec, err := registry.ForPath(path)
			require.NoError(t, err, path)
			assert.Equal(t, want, codec.Name())
		}
	})

	t.Run("rejects unknown extensions", func(t *testing.T) {
		registry := NewDefaultCodecRegistry()

		_, err := registry.ForPath("schema.xml")
		assert.Error(t, err)
		assert.False(t, registry.IsSupported("README.md"))
	})

	t.Run("rejects duplicate codec names", func(t *testing.T) {
		registry := NewDefaultCodecRegistry()

		err := registry.Register(fakeCodec{name: "json", exts: []string{".jsn"}})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "already registered")
	})

	t.Run("rejects extension collisions", func(t *testing.T) {
		registry := NewDefaultCodecRegistry()

		err := registry.Register(fakeCodec{name: "json5", exts: []string{".json"}})
		assert.Error(t, err)
		_, err = registry.Get("json5")
		assert.Error(t, err, "failed registration must not leave a partial entry")
	})

	t.Run("rejects nil and unnamed codecs", func(t *testing.T) {
		registry := NewCodecRegistry()

		assert.Error(t, registry.Register(nil))
		assert.Error(t, registry.Register(fakeCodec{}))
	})

	t.Run("global registry is shared", func(t *testing.T) {
		assert.Same(t, GetGlobalRegistry(), GetGlobalRegistry())
	})
}

func TestDecodeFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "metrics.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"protocol":"metrics","port":4317}`), 0o644))

	obj, err := DecodeFile(NewDefaultCodecRegistry(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"protocol", "port"}, obj.Keys())

	_, err = DecodeFile(NewDefaultCodecRegistry(), filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

package serialization

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Codec decodes a schema document format into an ordered tree
type Codec interface {
	// Name returns the format name, e.g. "json"
	Name() string

	// Extensions returns the file extensions handled by the codec, with leading dot
	Extensions() []string

	// Decode decodes a document whose top level must be a mapping
	Decode(data []byte) (*Object, error)
}

// CodecRegistry manages codec registrations by format name and file extension
type CodecRegistry interface {
	// Register registers a codec under its name and extensions
	Register(codec Codec) error

	// Get retrieves a codec by format name
	Get(name string) (Codec, error)

	// ForPath retrieves the codec handling the file's extension
	ForPath(path string) (Codec, error)

	// IsSupported reports whether a file extension has a codec
	IsSupported(path string) bool

	// ListFormats returns the registered format names, sorted
	ListFormats() []string
}

// DefaultCodecRegistry is the default implementation of CodecRegistry
type DefaultCodecRegistry struct {
	codecs     map[string]Codec
	extensions map[string]Codec
	mu         sync.RWMutex
}

// NewCodecRegistry creates an empty codec registry
func NewCodecRegistry() *DefaultCodecRegistry {
	return &DefaultCodecRegistry{
		codecs:     make(map[string]Codec),
		extensions: make(map[string]Codec),
	}
}

// NewDefaultCodecRegistry creates a registry with the JSON, YAML and TOML codecs
func NewDefaultCodecRegistry() *DefaultCodecRegistry {
	r := NewCodecRegistry()
	for _, c := range []Codec{JSONCodec{}, YAMLCodec{}, TOMLCodec{}} {
		// Built-in codecs never collide
		_ = r.Register(c)
	}
	return r
}

// Register registers a codec under its name and extensions
func (r *DefaultCodecRegistry) Register(codec Codec) error {
	if codec == nil {
		return fmt.Errorf("codec cannot be nil")
	}
	name := strings.ToLower(codec.Name())
	if name == "" {
		return fmt.Errorf("codec name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.codecs[name]; exists {
		return fmt.Errorf("codec %s already registered", name)
	}
	for _, ext := range codec.Extensions() {
		ext = strings.ToLower(ext)
		if existing, exists := r.extensions[ext]; exists {
			return fmt.Errorf("extension %s already registered to codec %s", ext, existing.Name())
		}
	}

	r.codecs[name] = codec
	for _, ext := range codec.Extensions() {
		r.extensions[strings.ToLower(ext)] = codec
	}
	return nil
}

// Get retrieves a codec by format name
func (r *DefaultCodecRegistry) Get(name string) (Codec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, exists := r.codecs[strings.ToLower(name)]
	if !exists {
		return nil, fmt.Errorf("codec %s not registered", name)
	}
	return c, nil
}

// ForPath retrieves the codec handling the file's extension
func (r *DefaultCodecRegistry) ForPath(path string) (Codec, error) {
	ext := strings.ToLower(filepath.Ext(path))

	r.mu.RLock()
	defer r.mu.RUnlock()

	c, exists := r.extensions[ext]
	if !exists {
		return nil, fmt.Errorf("no codec registered for extension %q", ext)
	}
	return c, nil
}

// IsSupported reports whether a file extension has a codec
func (r *DefaultCodecRegistry) IsSupported(path string) bool {
	_, err := r.ForPath(path)
	return err == nil
}

// ListFormats returns the registered format names, sorted
func (r *DefaultCodecRegistry) ListFormats() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.codecs))
	for name := range r.codecs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DecodeFile reads and decodes a file with the codec matching its extension
func DecodeFile(registry CodecRegistry, path string) (*Object, error) {
	codec, err := registry.ForPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	obj, err := codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s as %s: %w", path, codec.Name(), err)
	}
	return obj, nil
}

// Global registry instance
var globalRegistry = NewDefaultCodecRegistry()

// GetGlobalRegistry returns the global codec registry
func GetGlobalRegistry() CodecRegistry {
	return globalRegistry
}

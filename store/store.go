// Package store holds compiled protocol schemas by name.
package store

import (
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/glimte/protoreg/contracts"
	"github.com/glimte/protoreg/schema"
)

// SchemaStore maps protocol names to compiled schemas. Registration is
// single-writer; once frozen the store is read-only and lookups take no lock.
type SchemaStore interface {
	Register(name string, compiled *schema.CompiledSchema) error
	Get(name string) (*schema.CompiledSchema, error)
	List() iter.Seq[string]
	Names() []string
	Len() int
	Freeze()
	Frozen() bool
}

// MemoryStore is the in-memory SchemaStore
type MemoryStore struct {
	mu      sync.RWMutex
	schemas map[string]*schema.CompiledSchema
	frozen  atomic.Bool
	logger  *slog.Logger
}

// Option configures the store
type Option func(*MemoryStore)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *MemoryStore) {
		s.logger = logger
	}
}

// New creates an empty store
func New(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		schemas: make(map[string]*schema.CompiledSchema),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a compiled schema under name, which must match the schema's
// protocol. An existing registration is never replaced.
func (s *MemoryStore) Register(name string, compiled *schema.CompiledSchema) error {
	name = contracts.NormalizeName(name)
	if compiled == nil {
		return &contracts.SchemaDefinitionError{Protocol: name, Reason: "compiled schema cannot be nil"}
	}
	if name != compiled.Name() {
		return &contracts.SchemaDefinitionError{Protocol: name, Reason: fmt.Sprintf("schema describes protocol %s", compiled.Name())}
	}
	if s.frozen.Load() {
		return contracts.ErrStoreFrozen
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Re-check under the lock in case Freeze raced with us
	if s.frozen.Load() {
		return contracts.ErrStoreFrozen
	}
	if _, exists := s.schemas[name]; exists {
		return &contracts.DuplicateProtocolError{Name: name}
	}
	s.schemas[name] = compiled

	s.logger.Debug("registered protocol",
		"protocol", name,
		"transport", compiled.Definition.Transport,
		"port", compiled.Definition.DefaultPort)
	return nil
}

// Get returns the compiled schema of a protocol. Lookup is case-insensitive.
func (s *MemoryStore) Get(name string) (*schema.CompiledSchema, error) {
	name = contracts.NormalizeName(name)
	if s.frozen.Load() {
		if compiled, ok := s.schemas[name]; ok {
			return compiled, nil
		}
		return nil, &contracts.UnknownProtocolError{Name: name}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if compiled, ok := s.schemas[name]; ok {
		return compiled, nil
	}
	return nil, &contracts.UnknownProtocolError{Name: name}
}

// List yields the registered names in sorted order. The snapshot is taken
// when List is called: ranging over the same sequence again repeats it, and
// registrations after the List call are not observed.
func (s *MemoryStore) List() iter.Seq[string] {
	names := s.Names()
	return slices.Values(names)
}

// Names returns a sorted copy of the registered names
func (s *MemoryStore) Names() []string {
	if !s.frozen.Load() {
		s.mu.RLock()
		defer s.mu.RUnlock()
	}
	names := make([]string, 0, len(s.schemas))
	for name := range s.schemas {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Len returns the number of registered protocols
func (s *MemoryStore) Len() int {
	if !s.frozen.Load() {
		s.mu.RLock()
		defer s.mu.RUnlock()
	}
	return len(s.schemas)
}

// Freeze makes the store read-only. It is idempotent.
func (s *MemoryStore) Freeze() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen.Swap(true) {
		return
	}
	s.logger.Info("schema store frozen", "protocols", len(s.schemas))
}

// Frozen reports whether the store is read-only
func (s *MemoryStore) Frozen() bool {
	return s.frozen.Load()
}

// Resolver adapts the store for the compiler
func (s *MemoryStore) Resolver() schema.ResolveFunc {
	return s.Get
}

// Copyright 2024 Mmate Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package protoreg is a protocol schema registry. It compiles schema
// documents describing the transport, default port and configuration
// structure of network protocols and validates documents against them by
// protocol name.
package protoreg

import (
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"

	"github.com/glimte/protoreg/contracts"
	"github.com/glimte/protoreg/internal/loader"
	"github.com/glimte/protoreg/schema"
	"github.com/glimte/protoreg/store"
)

// Registry is the entry point for registering protocols and validating
// documents against them. Registration happens during initialization;
// after Freeze the registry is safe for concurrent use.
type Registry struct {
	store     *store.MemoryStore
	compiler  *schema.Compiler
	validator *schema.Validator
	generator *schema.JSONSchemaGenerator
	logger    *slog.Logger
}

type registryConfig struct {
	logger *slog.Logger
	strict bool
}

// Option configures a Registry
type Option func(*registryConfig)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *registryConfig) {
		c.logger = logger
	}
}

// WithStrictMode sets whether undeclared fields fail validation. Defaults to true.
func WithStrictMode(strict bool) Option {
	return func(c *registryConfig) {
		c.strict = strict
	}
}

// NewRegistry creates an empty registry
func NewRegistry(opts ...Option) *Registry {
	cfg := &registryConfig{
		logger: slog.Default(),
		strict: true,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &Registry{
		store:     store.New(store.WithLogger(cfg.logger)),
		compiler:  schema.NewCompiler(schema.WithCompilerLogger(cfg.logger)),
		validator: schema.NewValidator(schema.WithStrictMode(cfg.strict)),
		generator: schema.NewJSONSchemaGenerator(schema.WithAdditionalProperties(!cfg.strict)),
		logger:    cfg.logger,
	}
}

// Register compiles a document against the already-registered protocols
// and stores the result
func (r *Registry) Register(raw *schema.RawDocument) error {
	if r.store.Frozen() {
		return contracts.ErrStoreFrozen
	}
	compiled, err := r.compiler.Compile(raw, r.store.Resolver())
	if err != nil {
		return fmt.Errorf("failed to compile schema: %w", err)
	}
	return r.store.Register(compiled.Name(), compiled)
}

// RegisterAll compiles a batch whose documents may reference each other in
// any order and registers every success. The returned map holds one error
// per protocol that failed; an empty map means the whole batch registered.
// Unnamed documents are reported under their batch index, e.g. "#2".
func (r *Registry) RegisterAll(raws []*schema.RawDocument) map[string]error {
	failed := make(map[string]error)
	if r.store.Frozen() {
		for i, raw := range raws {
			failed[batchKey(i, raw)] = contracts.ErrStoreFrozen
		}
		return failed
	}

	for i, outcome := range r.compiler.CompileAll(raws, r.store.Resolver()) {
		key := outcome.Name
		if key == "" {
			key = batchKey(i, nil)
		}
		if outcome.Err != nil {
			if _, exists := failed[key]; !exists {
				failed[key] = outcome.Err
			}
			r.logger.Warn("protocol not registered", "protocol", key, "error", outcome.Err)
			continue
		}
		if err := r.store.Register(outcome.Name, outcome.Schema); err != nil {
			failed[key] = err
			r.logger.Warn("protocol not registered", "protocol", key, "error", err)
		}
	}
	return failed
}

func batchKey(i int, raw *schema.RawDocument) string {
	if raw != nil {
		if name := contracts.NormalizeName(raw.Protocol); name != "" {
			return name
		}
	}
	return fmt.Sprintf("#%d", i)
}

// LoadDir loads every schema file below dir and registers the documents as
// one batch. Files that fail to decode are keyed by path in the returned map.
func (r *Registry) LoadDir(dir string) (map[string]error, error) {
	result, err := loader.New(loader.WithLogger(r.logger)).Load(dir)
	if err != nil {
		return nil, err
	}

	failed := r.RegisterAll(result.Raws())
	for _, fileErr := range result.Errors {
		failed[fileErr.Path] = fileErr
	}

	r.logger.Info("loaded schemas",
		"dir", dir,
		"registered", r.store.Len(),
		"failed", len(failed))
	return failed, nil
}

// Freeze ends initialization. Subsequent registrations fail with
// contracts.ErrStoreFrozen.
func (r *Registry) Freeze() {
	r.store.Freeze()
}

// Frozen reports whether the registry is read-only
func (r *Registry) Frozen() bool {
	return r.store.Frozen()
}

// Len returns the number of registered protocols
func (r *Registry) Len() int {
	return r.store.Len()
}

// List yields the registered protocol names in sorted order
func (r *Registry) List() iter.Seq[string] {
	return r.store.List()
}

// Strict reports whether undeclared fields fail validation
func (r *Registry) Strict() bool {
	return r.validator.Strict()
}

// Schema returns the compiled schema of a protocol
func (r *Registry) Schema(protocol string) (*schema.CompiledSchema, error) {
	return r.store.Get(protocol)
}

// Describe returns the transport and default port of a protocol
func (r *Registry) Describe(protocol string) (contracts.ProtocolDefinition, error) {
	compiled, err := r.store.Get(protocol)
	if err != nil {
		return contracts.ProtocolDefinition{}, err
	}
	return compiled.Definition, nil
}

// ValidateFor validates a decoded document against a registered protocol
func (r *Registry) ValidateFor(protocol string, document any) (*schema.ValidationResult, error) {
	compiled, err := r.store.Get(protocol)
	if err != nil {
		return nil, err
	}
	return r.validator.Validate(compiled, document), nil
}

// ValidateJSONFor decodes a JSON document and validates it against a
// registered protocol
func (r *Registry) ValidateJSONFor(protocol string, data []byte) (*schema.ValidationResult, error) {
	compiled, err := r.store.Get(protocol)
	if err != nil {
		return nil, err
	}
	return r.validator.ValidateJSON(compiled, data)
}

// NormalizeFor fills defaults into a copy of the document and validates it
func (r *Registry) NormalizeFor(protocol string, document any) (map[string]any, *schema.ValidationResult, error) {
	compiled, err := r.store.Get(protocol)
	if err != nil {
		return nil, nil, err
	}
	normalized, result := r.validator.Normalize(compiled, document)
	return normalized, result, nil
}

// ExportJSONSchema renders a registered protocol as a JSON Schema document
func (r *Registry) ExportJSONSchema(protocol string) (json.RawMessage, error) {
	compiled, err := r.store.Get(protocol)
	if err != nil {
		return nil, err
	}
	return r.generator.Generate(compiled)
}

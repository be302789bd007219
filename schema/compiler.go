package schema

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/glimte/protoreg/contracts"
)

// ResolveFunc returns the compiled schema of an already-registered protocol
type ResolveFunc func(name string) (*CompiledSchema, error)

// CompileOutcome is the result of compiling one document of a batch
type CompileOutcome struct {
	Name   string
	Schema *CompiledSchema
	Err    error
}

// Compiler turns raw schema documents into compiled schemas. It never
// mutates a store; callers register the results.
type Compiler struct {
	logger *slog.Logger
}

// CompilerOption configures the compiler
type CompilerOption func(*Compiler)

// WithCompilerLogger sets the logger
func WithCompilerLogger(logger *slog.Logger) CompilerOption {
	return func(c *Compiler) {
		c.logger = logger
	}
}

// NewCompiler creates a new compiler
func NewCompiler(opts ...CompilerOption) *Compiler {
	c := &Compiler{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile compiles a single document. Every reference is resolved through
// resolve, so referenced protocols must be compiled first. A nil resolve
// treats every reference to another protocol as unresolved.
func (c *Compiler) Compile(raw *RawDocument, resolve ResolveFunc) (*CompiledSchema, error) {
	if raw == nil {
		return nil, &contracts.SchemaDefinitionError{Reason: "document cannot be nil"}
	}
	name := contracts.NormalizeName(raw.Protocol)
	if name == "" {
		return nil, &contracts.SchemaDefinitionError{Field: "protocol", Reason: "protocol name cannot be empty"}
	}

	s := c.newSession(resolve)
	s.raws[name] = raw
	return s.compileNamed(name)
}

// CompileAll compiles a batch of documents that may reference each other in
// any order. Names are forward-declared from the whole batch before any
// reference is resolved; references outside the batch go through resolve.
// A batch name that resolve already knows fails as a duplicate and is not
// compiled, so references to it reach the resolved schema instead.
// Failures are isolated per protocol and outcomes follow input order.
func (c *Compiler) CompileAll(raws []*RawDocument, resolve ResolveFunc) []CompileOutcome {
	s := c.newSession(resolve)
	outcomes := make([]CompileOutcome, len(raws))
	owned := make([]bool, len(raws))

	for i, raw := range raws {
		if raw == nil {
			outcomes[i].Err = &contracts.SchemaDefinitionError{Reason: "document cannot be nil"}
			continue
		}
		name := contracts.NormalizeName(raw.Protocol)
		outcomes[i].Name = name
		if name == "" {
			outcomes[i].Err = &contracts.SchemaDefinitionError{Field: "protocol", Reason: "protocol name cannot be empty"}
			continue
		}
		if _, exists := s.raws[name]; exists || s.known(name) {
			outcomes[i].Err = &contracts.DuplicateProtocolError{Name: name}
			continue
		}
		s.raws[name] = raw
		owned[i] = true
	}

	for i := range raws {
		if owned[i] {
			outcomes[i].Schema, outcomes[i].Err = s.compileNamed(outcomes[i].Name)
		}
	}
	return outcomes
}

func (c *Compiler) newSession(resolve ResolveFunc) *session {
	return &session{
		compiler: c,
		raws:     make(map[string]*RawDocument),
		resolve:  resolve,
		done:     make(map[string]*CompiledSchema),
		failed:   make(map[string]error),
	}
}

// session holds the state of one compilation run. visiting is the stack of
// protocols currently being compiled and drives cycle detection.
type session struct {
	compiler *Compiler
	raws     map[string]*RawDocument
	resolve  ResolveFunc
	done     map[string]*CompiledSchema
	failed   map[string]error
	visiting []string
}

// known reports whether name is already compiled outside the session
func (s *session) known(name string) bool {
	if s.resolve == nil {
		return false
	}
	compiled, err := s.resolve(name)
	return err == nil && compiled != nil
}

func (s *session) compileNamed(name string) (*CompiledSchema, error) {
	if compiled, ok := s.done[name]; ok {
		return compiled, nil
	}
	if err, ok := s.failed[name]; ok {
		return nil, err
	}
	for i, v := range s.visiting {
		if v == name {
			cycle := append(append([]string{}, s.visiting[i:]...), name)
			return nil, &contracts.CyclicSchemaError{Cycle: cycle}
		}
	}

	raw, ok := s.raws[name]
	if !ok {
		if s.resolve == nil {
			return nil, &contracts.UnknownProtocolError{Name: name}
		}
		compiled, err := s.resolve(name)
		if err != nil {
			return nil, err
		}
		if compiled == nil {
			return nil, &contracts.UnknownProtocolError{Name: name}
		}
		return compiled, nil
	}

	s.visiting = append(s.visiting, name)
	compiled, err := s.compileDocument(name, raw)
	s.visiting = s.visiting[:len(s.visiting)-1]

	if err != nil {
		s.failed[name] = err
		s.compiler.logger.Debug("schema compilation failed", "protocol", name, "error", err)
		return nil, err
	}
	s.done[name] = compiled
	s.compiler.logger.Debug("compiled schema",
		"protocol", name,
		"transport", compiled.Definition.Transport,
		"port", compiled.Definition.DefaultPort,
		"fields", len(compiled.Root.Fields))
	return compiled, nil
}

func (s *session) compileDocument(name string, raw *RawDocument) (*CompiledSchema, error) {
	dc := &documentCompiler{session: s, protocol: name}

	transport, ok := raw.Transport.(string)
	if !ok {
		return nil, dc.fail(FieldTransport, "transport must be a string, got %s", typeName(raw.Transport))
	}
	parsed, err := contracts.ParseTransport(transport)
	if err != nil {
		return nil, dc.fail(FieldTransport, "%s", err.Error())
	}

	port, ok := asIntegerLiteral(raw.Port)
	if !ok {
		return nil, dc.fail(FieldPort, "port must be an integer literal, got %s", typeName(raw.Port))
	}
	if !contracts.ValidPort(port) {
		return nil, dc.fail(FieldPort, "port %d is outside [%d, %d]", port, contracts.MinPort, contracts.MaxPort)
	}

	def := contracts.ProtocolDefinition{Name: name, Transport: parsed, DefaultPort: int(port)}
	fields := builtinFields(def)
	for _, f := range raw.Fields {
		if f.Name == FieldTransport || f.Name == FieldPort {
			return nil, dc.fail(f.Name, "field name %q is reserved", f.Name)
		}
	}
	declared, err := dc.compileFields("", raw.Fields)
	if err != nil {
		return nil, err
	}

	return &CompiledSchema{
		Definition:  def,
		Description: raw.Description,
		Root:        &Node{Kind: NodeObject, Description: raw.Description, Fields: append(fields, declared...)},
	}, nil
}

type documentCompiler struct {
	*session
	protocol string
}

func (dc *documentCompiler) fail(field, format string, args ...any) error {
	return &contracts.SchemaDefinitionError{
		Protocol: dc.protocol,
		Field:    field,
		Reason:   fmt.Sprintf(format, args...),
	}
}

func (dc *documentCompiler) compileFields(path string, raws []RawField) ([]*CompiledField, error) {
	fields := make([]*CompiledField, 0, len(raws))
	seen := make(map[string]bool, len(raws))
	for _, rf := range raws {
		fieldPath := joinPath(path, rf.Name)
		if rf.Name == "" {
			return nil, dc.fail(path, "field name cannot be empty")
		}
		if seen[rf.Name] {
			return nil, dc.fail(fieldPath, "duplicate field %q", rf.Name)
		}
		seen[rf.Name] = true
		if rf.Node == nil {
			return nil, dc.fail(fieldPath, "field definition cannot be nil")
		}

		node, err := dc.compileNode(fieldPath, rf.Node)
		if err != nil {
			return nil, err
		}
		fields = append(fields, &CompiledField{
			Name:     rf.Name,
			Required: !rf.Node.Optional && !node.HasDefault,
			Node:     node,
		})
	}
	return fields, nil
}

func (dc *documentCompiler) compileNode(path string, raw *RawNode) (*Node, error) {
	switch raw.Kind {
	case NodeReference:
		return dc.compileReference(path, raw)
	case NodeObject:
		fields, err := dc.compileFields(path, raw.Fields)
		if err != nil {
			return nil, err
		}
		return &Node{Kind: NodeObject, Description: raw.Description, Fields: fields}, nil
	case NodeLiteral:
		return dc.compileLiteral(path, raw)
	default:
		return nil, dc.fail(path, "unknown node kind %d", raw.Kind)
	}
}

func (dc *documentCompiler) compileReference(path string, raw *RawNode) (*Node, error) {
	target := contracts.NormalizeName(raw.Ref)
	if target == "" {
		return nil, dc.fail(path, "$ref must be a non-empty protocol name")
	}

	compiled, err := dc.compileNamed(target)
	if err != nil {
		var cycle *contracts.CyclicSchemaError
		if errors.As(err, &cycle) && cycle.Contains(dc.protocol) {
			return nil, err
		}
		return nil, &contracts.UnresolvedReferenceError{
			Protocol: dc.protocol,
			Target:   target,
			Path:     path,
			Err:      err,
		}
	}
	return &Node{Kind: NodeReference, Description: raw.Description, Ref: compiled}, nil
}

func (dc *documentCompiler) compileLiteral(path string, raw *RawNode) (*Node, error) {
	spec := raw.Literal
	typ, ok := parseValueType(spec.Type)
	if !ok {
		return nil, dc.fail(path, "unknown type %q", spec.Type)
	}

	node := &Node{
		Kind:        NodeLiteral,
		Type:        typ,
		Description: raw.Description,
		Minimum:     spec.Minimum,
		Maximum:     spec.Maximum,
		MinLength:   spec.MinLength,
		MaxLength:   spec.MaxLength,
	}

	if (spec.Minimum != nil || spec.Maximum != nil) && typ != TypeInteger && typ != TypeNumber {
		return nil, dc.fail(path, "minimum and maximum apply to integer and number types only")
	}
	if spec.Minimum != nil && spec.Maximum != nil && *spec.Minimum > *spec.Maximum {
		return nil, dc.fail(path, "minimum %v exceeds maximum %v", *spec.Minimum, *spec.Maximum)
	}

	if (spec.MinLength != nil || spec.MaxLength != nil) && typ != TypeString && typ != TypeArray {
		return nil, dc.fail(path, "minLength and maxLength apply to string and array types only")
	}
	if (spec.MinLength != nil && *spec.MinLength < 0) || (spec.MaxLength != nil && *spec.MaxLength < 0) {
		return nil, dc.fail(path, "lengths cannot be negative")
	}
	if spec.MinLength != nil && spec.MaxLength != nil && *spec.MinLength > *spec.MaxLength {
		return nil, dc.fail(path, "minLength %d exceeds maxLength %d", *spec.MinLength, *spec.MaxLength)
	}

	if spec.Pattern != "" {
		if typ != TypeString {
			return nil, dc.fail(path, "pattern applies to string type only")
		}
		re, err := regexp.Compile(spec.Pattern)
		if err != nil {
			return nil, dc.fail(path, "invalid pattern %q: %v", spec.Pattern, err)
		}
		node.Pattern = re
	}

	if spec.Items != nil {
		if typ != TypeArray {
			return nil, dc.fail(path, "items applies to array type only")
		}
		items, err := dc.compileNode(path+"[]", spec.Items)
		if err != nil {
			return nil, err
		}
		node.Items = items
	}

	if spec.Enum != nil {
		if len(spec.Enum) == 0 {
			return nil, dc.fail(path, "enum cannot be empty")
		}
		bare := *node
		for _, v := range spec.Enum {
			if err := dc.conforms(path, "enum value", v, &bare); err != nil {
				return nil, err
			}
		}
		node.Enum = spec.Enum
	}

	if spec.HasDefault {
		if err := dc.conforms(path, "default", spec.Default, node); err != nil {
			return nil, err
		}
		node.Default = spec.Default
		node.HasDefault = true
	}

	return node, nil
}

// conforms checks a value embedded in the schema against its own node
func (dc *documentCompiler) conforms(path, what string, value any, node *Node) error {
	result := newResult()
	(&Validator{strict: true}).validateNode(nil, value, node, result)
	if result.Valid {
		return nil
	}
	return dc.fail(path, "%s %v is invalid: %s", what, value, result.Errors[0].Message)
}

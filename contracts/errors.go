package contracts

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Store errors
	ErrDuplicateProtocol = errors.New("registry: protocol already registered")
	ErrUnknownProtocol   = errors.New("registry: unknown protocol")
	ErrStoreFrozen       = errors.New("registry: store is frozen")

	// Compile errors
	ErrUnresolvedReference = errors.New("schema: unresolved reference")
	ErrCyclicSchema        = errors.New("schema: cyclic reference")
	ErrSchemaDefinition    = errors.New("schema: invalid definition")
)

// DuplicateProtocolError is returned when a protocol name is registered twice
type DuplicateProtocolError struct {
	Name string
}

func (e *DuplicateProtocolError) Error() string {
	return fmt.Sprintf("protocol %s already registered", e.Name)
}

func (e *DuplicateProtocolError) Is(target error) bool {
	return target == ErrDuplicateProtocol
}

// UnknownProtocolError is returned when a lookup names an unregistered protocol
type UnknownProtocolError struct {
	Name string
}

func (e *UnknownProtocolError) Error() string {
	return fmt.Sprintf("protocol %s not registered", e.Name)
}

func (e *UnknownProtocolError) Is(target error) bool {
	return target == ErrUnknownProtocol
}

// UnresolvedReferenceError is returned when a $ref target cannot be resolved
type UnresolvedReferenceError struct {
	Protocol string
	Target   string
	Path     string
	Err      error
}

func (e *UnresolvedReferenceError) Error() string {
	msg := fmt.Sprintf("protocol %s: unresolved reference to %s", e.Protocol, e.Target)
	if e.Path != "" {
		msg += fmt.Sprintf(" at %s", e.Path)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UnresolvedReferenceError) Is(target error) bool {
	return target == ErrUnresolvedReference
}

func (e *UnresolvedReferenceError) Unwrap() error {
	return e.Err
}

// CyclicSchemaError is returned when a schema transitively references itself.
// Cycle starts and ends with the same protocol name.
type CyclicSchemaError struct {
	Cycle []string
}

func (e *CyclicSchemaError) Error() string {
	return fmt.Sprintf("cyclic schema reference: %s", strings.Join(e.Cycle, " -> "))
}

func (e *CyclicSchemaError) Is(target error) bool {
	return target == ErrCyclicSchema
}

// Contains reports whether the named protocol takes part in the cycle
func (e *CyclicSchemaError) Contains(name string) bool {
	for _, n := range e.Cycle {
		if n == name {
			return true
		}
	}
	return false
}

// SchemaDefinitionError is returned when a schema document is malformed
type SchemaDefinitionError struct {
	Protocol string
	Field    string
	Reason   string
}

func (e *SchemaDefinitionError) Error() string {
	var b strings.Builder
	b.WriteString("invalid schema")
	if e.Protocol != "" {
		fmt.Fprintf(&b, " for protocol %s", e.Protocol)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " at %s", e.Field)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	return b.String()
}

func (e *SchemaDefinitionError) Is(target error) bool {
	return target == ErrSchemaDefinition
}

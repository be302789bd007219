package schema

import (
	"regexp"

	"github.com/glimte/protoreg/contracts"
)

// ValueType is the type constraint of a literal node
type ValueType string

const (
	TypeString  ValueType = "string"
	TypeInteger ValueType = "integer"
	TypeNumber  ValueType = "number"
	TypeBoolean ValueType = "boolean"
	TypeArray   ValueType = "array"
	TypeObject  ValueType = "object"
	TypeAny     ValueType = "any"
)

func parseValueType(s string) (ValueType, bool) {
	switch t := ValueType(s); t {
	case TypeString, TypeInteger, TypeNumber, TypeBoolean, TypeArray, TypeObject, TypeAny:
		return t, true
	}
	return "", false
}

// Names of the implicit fields every compiled schema starts with
const (
	FieldTransport = "transport"
	FieldPort      = "port"
)

// CompiledSchema is a fully resolved protocol schema. It is immutable once
// returned by the compiler and may be shared across goroutines.
type CompiledSchema struct {
	Definition  contracts.ProtocolDefinition
	Description string
	Root        *Node
}

// Name returns the protocol name
func (s *CompiledSchema) Name() string {
	return s.Definition.Name
}

// References returns the names of protocols referenced directly by the schema, in declaration order
func (s *CompiledSchema) References() []string {
	var refs []string
	seen := make(map[string]bool)
	var walk func(n *Node)
	walk = func(n *Node) {
		switch n.Kind {
		case NodeReference:
			if !seen[n.Ref.Name()] {
				seen[n.Ref.Name()] = true
				refs = append(refs, n.Ref.Name())
			}
		case NodeObject:
			for _, f := range n.Fields {
				walk(f.Node)
			}
		case NodeLiteral:
			if n.Items != nil {
				walk(n.Items)
			}
		}
	}
	walk(s.Root)
	return refs
}

// Node is a compiled schema node. Reference nodes point at the shared
// compiled schema of the target protocol.
type Node struct {
	Kind        NodeKind
	Description string

	// NodeLiteral
	Type       ValueType
	Enum       []any
	Minimum    *float64
	Maximum    *float64
	MinLength  *int
	MaxLength  *int
	Pattern    *regexp.Regexp
	Default    any
	HasDefault bool
	Items      *Node

	// NodeObject
	Fields []*CompiledField

	// NodeReference
	Ref *CompiledSchema
}

// CompiledField is a named child of a compiled object node
type CompiledField struct {
	Name     string
	Required bool
	Node     *Node
}

// Field returns the named child of an object node
func (n *Node) Field(name string) (*CompiledField, bool) {
	for _, f := range n.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

func builtinFields(def contracts.ProtocolDefinition) []*CompiledField {
	minPort, maxPort := float64(contracts.MinPort), float64(contracts.MaxPort)
	enum := make([]any, 0, 2)
	for _, t := range contracts.Transports() {
		enum = append(enum, string(t))
	}
	return []*CompiledField{
		{
			Name: FieldTransport,
			Node: &Node{
				Kind:        NodeLiteral,
				Type:        TypeString,
				Description: "Transport-layer protocol",
				Enum:        enum,
				Default:     string(def.Transport),
				HasDefault:  true,
			},
		},
		{
			Name: FieldPort,
			Node: &Node{
				Kind:        NodeLiteral,
				Type:        TypeInteger,
				Description: "Server port",
				Minimum:     &minPort,
				Maximum:     &maxPort,
				Default:     int64(def.DefaultPort),
				HasDefault:  true,
			},
		},
	}
}

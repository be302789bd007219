package schema

// NodeKind identifies a schema node variant
type NodeKind int

const (
	NodeLiteral NodeKind = iota
	NodeObject
	NodeReference
)

func (k NodeKind) String() string {
	switch k {
	case NodeLiteral:
		return "literal"
	case NodeObject:
		return "object"
	case NodeReference:
		return "reference"
	default:
		return "unknown"
	}
}

// RawDocument is an uncompiled protocol schema.
// Transport and Port keep their decoded values so the compiler can reject
// non-canonical literals.
type RawDocument struct {
	Protocol    string
	Transport   any
	Port        any
	Description string
	Fields      []RawField
}

// RawField is a named child of an object node
type RawField struct {
	Name string
	Node *RawNode
}

// RawNode is one node of a raw schema tree
type RawNode struct {
	Kind        NodeKind
	Optional    bool
	Description string

	// NodeLiteral
	Literal LiteralSpec

	// NodeObject
	Fields []RawField

	// NodeReference, the target protocol name
	Ref string
}

// LiteralSpec holds the constraints of a literal node
type LiteralSpec struct {
	Type       string
	Enum       []any
	Minimum    *float64
	Maximum    *float64
	MinLength  *int
	MaxLength  *int
	Pattern    string
	Default    any
	HasDefault bool
	Items      *RawNode
}

// Literal creates a literal node of the given type
func Literal(typ string) *RawNode {
	return &RawNode{Kind: NodeLiteral, Literal: LiteralSpec{Type: typ}}
}

// LiteralWith creates a literal node with constraints
func LiteralWith(spec LiteralSpec) *RawNode {
	return &RawNode{Kind: NodeLiteral, Literal: spec}
}

// Ref creates a reference node targeting another protocol
func Ref(target string) *RawNode {
	return &RawNode{Kind: NodeReference, Ref: target}
}

// Object creates an object node with the given fields in order
func Object(fields ...RawField) *RawNode {
	return &RawNode{Kind: NodeObject, Fields: fields}
}

// Field pairs a name with a node
func Field(name string, node *RawNode) RawField {
	return RawField{Name: name, Node: node}
}

// AsOptional marks the node optional and returns it
func (n *RawNode) AsOptional() *RawNode {
	n.Optional = true
	return n
}

// WithDefault sets a literal default, which also makes the field optional
func (n *RawNode) WithDefault(v any) *RawNode {
	n.Literal.Default = v
	n.Literal.HasDefault = true
	return n
}

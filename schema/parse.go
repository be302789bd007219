package schema

import (
	"fmt"
	"strings"

	"github.com/glimte/protoreg/contracts"
	"github.com/glimte/protoreg/serialization"
)

var (
	documentKeys = map[string]bool{"protocol": true, "transport": true, "port": true, "description": true, "fields": true}
	commonKeys   = map[string]bool{"optional": true, "description": true}
	literalKeys  = map[string]bool{
		"type": true, "enum": true, "minimum": true, "maximum": true, "minLength": true,
		"maxLength": true, "pattern": true, "default": true, "items": true,
	}
)

// ParseDocument converts a decoded schema file into a raw document.
// Keys starting with "$" other than "$ref" are treated as annotations and skipped.
func ParseDocument(obj *serialization.Object) (*RawDocument, error) {
	if obj == nil {
		return nil, &contracts.SchemaDefinitionError{Reason: "document cannot be nil"}
	}

	p := &parser{}
	rawName, ok := obj.Get("protocol")
	if !ok {
		return nil, p.fail("protocol", "protocol is required")
	}
	name, ok := rawName.(string)
	if !ok {
		return nil, p.fail("protocol", "protocol must be a string, got %s", serialization.TypeName(rawName))
	}
	p.protocol = contracts.NormalizeName(name)

	doc := &RawDocument{Protocol: name}
	for _, key := range obj.Keys() {
		if isAnnotation(key) {
			continue
		}
		if !documentKeys[key] {
			return nil, p.fail(key, "unknown key %q", key)
		}
	}
	doc.Transport, _ = obj.Get("transport")
	doc.Port, _ = obj.Get("port")

	if v, ok := obj.Get("description"); ok {
		s, ok := v.(string)
		if !ok {
			return nil, p.fail("description", "description must be a string")
		}
		doc.Description = s
	}

	if v, ok := obj.Get("fields"); ok {
		fields, ok := v.(*serialization.Object)
		if !ok {
			return nil, p.fail("fields", "fields must be an object, got %s", serialization.TypeName(v))
		}
		children, err := p.parseFields("", fields)
		if err != nil {
			return nil, err
		}
		doc.Fields = children
	}

	return doc, nil
}

type parser struct {
	protocol string
}

func (p *parser) fail(field, format string, args ...any) error {
	return &contracts.SchemaDefinitionError{
		Protocol: p.protocol,
		Field:    field,
		Reason:   fmt.Sprintf(format, args...),
	}
}

func (p *parser) parseFields(path string, obj *serialization.Object) ([]RawField, error) {
	fields := make([]RawField, 0, obj.Len())
	for _, name := range obj.Keys() {
		v, _ := obj.Get(name)
		childPath := joinPath(path, name)
		def, ok := v.(*serialization.Object)
		if !ok {
			return nil, p.fail(childPath, "field definition must be an object, got %s", serialization.TypeName(v))
		}
		node, err := p.parseNode(childPath, def)
		if err != nil {
			return nil, err
		}
		fields = append(fields, RawField{Name: name, Node: node})
	}
	return fields, nil
}

func (p *parser) parseNode(path string, obj *serialization.Object) (*RawNode, error) {
	node := &RawNode{}

	if v, ok := obj.Get("optional"); ok {
		b, ok := v.(bool)
		if !ok {
			return nil, p.fail(path, "optional must be a boolean")
		}
		node.Optional = b
	}
	if v, ok := obj.Get("description"); ok {
		s, ok := v.(string)
		if !ok {
			return nil, p.fail(path, "description must be a string")
		}
		node.Description = s
	}

	if v, ok := obj.Get("$ref"); ok {
		if err := p.checkKeys(path, obj, nil); err != nil {
			return nil, err
		}
		target, ok := v.(string)
		if !ok || strings.TrimSpace(target) == "" {
			return nil, p.fail(path, "$ref must be a non-empty protocol name")
		}
		node.Kind = NodeReference
		node.Ref = target
		return node, nil
	}

	if v, ok := obj.Get("fields"); ok {
		if err := p.checkKeys(path, obj, map[string]bool{"fields": true, "type": true}); err != nil {
			return nil, err
		}
		if t, ok := obj.Get("type"); ok && t != "object" {
			return nil, p.fail(path, "a node with fields must have type object, got %v", t)
		}
		children, ok := v.(*serialization.Object)
		if !ok {
			return nil, p.fail(path, "fields must be an object, got %s", serialization.TypeName(v))
		}
		parsed, err := p.parseFields(path, children)
		if err != nil {
			return nil, err
		}
		node.Kind = NodeObject
		node.Fields = parsed
		return node, nil
	}

	if err := p.checkKeys(path, obj, literalKeys); err != nil {
		return nil, err
	}
	node.Kind = NodeLiteral
	spec := &node.Literal

	rawType, ok := obj.Get("type")
	if !ok {
		return nil, p.fail(path, "type is required")
	}
	if spec.Type, ok = rawType.(string); !ok {
		return nil, p.fail(path, "type must be a string")
	}
	if v, ok := obj.Get("enum"); ok {
		values, ok := v.([]any)
		if !ok {
			return nil, p.fail(path, "enum must be an array")
		}
		for _, ev := range values {
			spec.Enum = append(spec.Enum, plain(ev))
		}
	}

	var err error
	if spec.Minimum, err = p.number(path, obj, "minimum"); err != nil {
		return nil, err
	}
	if spec.Maximum, err = p.number(path, obj, "maximum"); err != nil {
		return nil, err
	}
	if spec.MinLength, err = p.length(path, obj, "minLength"); err != nil {
		return nil, err
	}
	if spec.MaxLength, err = p.length(path, obj, "maxLength"); err != nil {
		return nil, err
	}

	if v, ok := obj.Get("pattern"); ok {
		s, ok := v.(string)
		if !ok {
			return nil, p.fail(path, "pattern must be a string")
		}
		spec.Pattern = s
	}

	if v, ok := obj.Get("default"); ok {
		spec.Default = plain(v)
		spec.HasDefault = true
	}

	if v, ok := obj.Get("items"); ok {
		def, ok := v.(*serialization.Object)
		if !ok {
			return nil, p.fail(path+"[]", "items must be an object")
		}
		items, err := p.parseNode(path+"[]", def)
		if err != nil {
			return nil, err
		}
		spec.Items = items
	}

	return node, nil
}

func (p *parser) checkKeys(path string, obj *serialization.Object, allowed map[string]bool) error {
	for _, key := range obj.Keys() {
		if key == "$ref" || isAnnotation(key) || commonKeys[key] || allowed[key] {
			continue
		}
		return p.fail(path, "unknown key %q", key)
	}
	return nil
}

func (p *parser) number(path string, obj *serialization.Object, key string) (*float64, error) {
	v, ok := obj.Get(key)
	if !ok {
		return nil, nil
	}
	f, ok := asNumber(v)
	if !ok {
		return nil, p.fail(path, "%s must be a number, got %s", key, serialization.TypeName(v))
	}
	return &f, nil
}

func (p *parser) length(path string, obj *serialization.Object, key string) (*int, error) {
	v, ok := obj.Get(key)
	if !ok {
		return nil, nil
	}
	i, ok := asIntegerLiteral(v)
	if !ok {
		return nil, p.fail(path, "%s must be an integer, got %s", key, serialization.TypeName(v))
	}
	n := int(i)
	return &n, nil
}

func isAnnotation(key string) bool {
	return strings.HasPrefix(key, "$") && key != "$ref"
}

func plain(v any) any {
	switch t := v.(type) {
	case *serialization.Object:
		return t.Plain()
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = plain(item)
		}
		return out
	default:
		return v
	}
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}

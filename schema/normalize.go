package schema

// Normalize returns a deep copy of the document with defaults filled in for
// absent optional fields, including the implicit transport and port, then
// validates the copy. Present values are never rewritten, so an invalid
// value stays invalid. When the document root is not an object the copy is nil.
func (v *Validator) Normalize(schema *CompiledSchema, document any) (map[string]any, *ValidationResult) {
	data, ok := asMap(document)
	if !ok {
		return nil, v.Validate(schema, document)
	}
	normalized := normalizeObject(data, schema.Root.Fields)
	return normalized, v.Validate(schema, normalized)
}

func normalizeObject(data map[string]any, fields []*CompiledField) map[string]any {
	out := make(map[string]any, len(data)+len(fields))
	for k, val := range data {
		out[k] = deepCopy(val)
	}
	for _, f := range fields {
		val, exists := out[f.Name]
		if !exists {
			if f.Node.HasDefault {
				out[f.Name] = deepCopy(f.Node.Default)
			}
			continue
		}
		out[f.Name] = normalizeValue(val, f.Node)
	}
	return out
}

func normalizeValue(value any, node *Node) any {
	switch node.Kind {
	case NodeReference:
		return normalizeValue(value, node.Ref.Root)
	case NodeObject:
		if data, ok := value.(map[string]any); ok {
			return normalizeObject(data, node.Fields)
		}
	case NodeLiteral:
		if node.Items == nil {
			return value
		}
		if items, ok := value.([]any); ok {
			for i, item := range items {
				items[i] = normalizeValue(item, node.Items)
			}
			return items
		}
	}
	return value
}

package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"unicode/utf8"

	"github.com/glimte/protoreg/serialization"
)

// Validator checks documents against compiled schemas. It holds no mutable
// state and may be shared across goroutines.
type Validator struct {
	strict bool
}

// ValidatorOption configures the validator
type ValidatorOption func(*ValidatorConfig)

// ValidatorConfig holds configuration for the validator
type ValidatorConfig struct {
	// StrictMode reports fields absent from the schema as UNEXPECTED_FIELD
	// errors. When false they are ignored. Defaults to true.
	StrictMode bool
}

// WithStrictMode sets the unknown field policy
func WithStrictMode(strict bool) ValidatorOption {
	return func(c *ValidatorConfig) {
		c.StrictMode = strict
	}
}

// NewValidator creates a new validator, strict unless configured otherwise
func NewValidator(opts ...ValidatorOption) *Validator {
	config := &ValidatorConfig{
		StrictMode: true,
	}
	for _, opt := range opts {
		opt(config)
	}
	return &Validator{strict: config.StrictMode}
}

// Strict reports whether unknown fields are rejected
func (v *Validator) Strict() bool {
	return v.strict
}

// Validate checks a document against a compiled schema. Fields are visited
// depth-first in schema declaration order and every defect is collected;
// unknown fields are reported after the declared ones, sorted by name.
func (v *Validator) Validate(schema *CompiledSchema, document any) *ValidationResult {
	result := newResult()
	v.validateSchema(nil, document, schema, result)
	return result
}

// ValidateJSON decodes a JSON document, keeping numbers exact, and validates it
func (v *Validator) ValidateJSON(schema *CompiledSchema, data []byte) (*ValidationResult, error) {
	doc, err := DecodeJSON(data)
	if err != nil {
		return nil, err
	}
	return v.Validate(schema, doc), nil
}

// DecodeJSON decodes a JSON document with json.Number values
func DecodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode document: unexpected data after top-level value")
	}
	return doc, nil
}

func (v *Validator) validateSchema(path []string, value any, schema *CompiledSchema, result *ValidationResult) {
	v.validateNode(path, value, schema.Root, result)
}

func (v *Validator) validateObject(path []string, data map[string]any, fields []*CompiledField, result *ValidationResult) {
	for _, f := range fields {
		fieldPath := childPath(path, f.Name)
		value, exists := data[f.Name]
		if !exists {
			if f.Required {
				result.add(fieldPath, KindRequiredFieldMissing, nil, "required field is missing")
			}
			continue
		}
		v.validateNode(fieldPath, value, f.Node, result)
	}

	if !v.strict {
		return
	}
	var unknown []string
	for name := range data {
		if !declares(fields, name) {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	for _, name := range unknown {
		result.add(childPath(path, name), KindUnexpectedField, nil, "field is not declared by the schema")
	}
}

func declares(fields []*CompiledField, name string) bool {
	for _, f := range fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// validateNode validates a single value against its node definition
func (v *Validator) validateNode(path []string, value any, node *Node, result *ValidationResult) {
	switch node.Kind {
	case NodeReference:
		v.validateSchema(path, value, node.Ref, result)
		return
	case NodeObject:
		data, ok := asMap(value)
		if !ok {
			result.add(path, KindTypeMismatch, value, "expected type object, got %s", typeName(value))
			return
		}
		v.validateObject(path, data, node.Fields, result)
		return
	}

	switch node.Type {
	case TypeAny:
		return
	case TypeString:
		s, ok := value.(string)
		if !ok {
			v.mismatch(path, value, node, result)
			return
		}
		v.validateLength(path, value, utf8.RuneCountInString(s), node, result)
		if node.Pattern != nil && !node.Pattern.MatchString(s) {
			result.add(path, KindPatternViolation, value, "value does not match pattern: %s", node.Pattern.String())
		}
	case TypeInteger:
		i, ok := asInteger(value)
		if !ok {
			v.mismatch(path, value, node, result)
			return
		}
		v.validateRange(path, value, float64(i), node, result)
	case TypeNumber:
		f, ok := asNumber(value)
		if !ok {
			v.mismatch(path, value, node, result)
			return
		}
		v.validateRange(path, value, f, node, result)
	case TypeBoolean:
		if _, ok := value.(bool); !ok {
			v.mismatch(path, value, node, result)
			return
		}
	case TypeObject:
		if _, ok := asMap(value); !ok {
			v.mismatch(path, value, node, result)
			return
		}
	case TypeArray:
		items, ok := asSlice(value)
		if !ok {
			v.mismatch(path, value, node, result)
			return
		}
		v.validateLength(path, nil, len(items), node, result)
		if node.Items != nil {
			for i, item := range items {
				v.validateNode(indexPath(path, i), item, node.Items, result)
			}
		}
	}

	if len(node.Enum) > 0 {
		v.validateEnum(path, value, node.Enum, result)
	}
}

func (v *Validator) mismatch(path []string, value any, node *Node, result *ValidationResult) {
	result.add(path, KindTypeMismatch, value, "expected type %s, got %s", node.Type, typeName(value))
}

func (v *Validator) validateRange(path []string, value any, n float64, node *Node, result *ValidationResult) {
	if node.Minimum != nil && n < *node.Minimum {
		result.add(path, KindRangeViolation, value, "value %v is less than minimum %v", value, *node.Minimum)
	}
	if node.Maximum != nil && n > *node.Maximum {
		result.add(path, KindRangeViolation, value, "value %v exceeds maximum %v", value, *node.Maximum)
	}
}

func (v *Validator) validateLength(path []string, value any, n int, node *Node, result *ValidationResult) {
	if node.MinLength != nil && n < *node.MinLength {
		result.add(path, KindLengthViolation, value, "length %d is less than minimum %d", n, *node.MinLength)
	}
	if node.MaxLength != nil && n > *node.MaxLength {
		result.add(path, KindLengthViolation, value, "length %d exceeds maximum %d", n, *node.MaxLength)
	}
}

func (v *Validator) validateEnum(path []string, value any, enum []any, result *ValidationResult) {
	for _, allowed := range enum {
		if equalValues(value, allowed) {
			return
		}
	}
	result.add(path, KindEnumViolation, value, "value is not in allowed enum values: %v", enum)
}

// ValidateObject validates a decoded schema-format object, e.g. a TOML or YAML config file
func (v *Validator) ValidateObject(schema *CompiledSchema, obj *serialization.Object) *ValidationResult {
	if obj == nil {
		result := newResult()
		result.add(nil, KindTypeMismatch, nil, "expected type object, got null")
		return result
	}
	return v.Validate(schema, obj.Plain())
}

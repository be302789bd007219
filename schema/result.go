package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a validation error
type ErrorKind string

const (
	KindRequiredFieldMissing ErrorKind = "REQUIRED_FIELD_MISSING"
	KindUnexpectedField      ErrorKind = "UNEXPECTED_FIELD"
	KindTypeMismatch         ErrorKind = "TYPE_MISMATCH"
	KindEnumViolation        ErrorKind = "ENUM_VIOLATION"
	KindRangeViolation       ErrorKind = "RANGE_VIOLATION"
	KindLengthViolation      ErrorKind = "LENGTH_VIOLATION"
	KindPatternViolation     ErrorKind = "PATTERN_VIOLATION"
)

// ValidationResult represents the result of document validation
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors"`
}

func newResult() *ValidationResult {
	return &ValidationResult{Valid: true, Errors: make([]ValidationError, 0)}
}

func (r *ValidationResult) add(path []string, kind ErrorKind, value any, format string, args ...any) {
	r.Valid = false
	r.Errors = append(r.Errors, ValidationError{
		Path:    path,
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Value:   value,
	})
}

// Err joins the validation errors into a single error, or returns nil when valid
func (r *ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	errs := make([]error, len(r.Errors))
	for i := range r.Errors {
		errs[i] = r.Errors[i]
	}
	return errors.Join(errs...)
}

// Fields returns the rendered path of every error, in order
func (r *ValidationResult) Fields() []string {
	fields := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		fields[i] = e.Field()
	}
	return fields
}

// ValidationError represents a single validation error. Path runs from the
// document root; array indices appear as bracketed segments such as "[2]".
type ValidationError struct {
	Path    []string  `json:"path"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Value   any       `json:"value,omitempty"`
}

// Field renders the path as "server.transport" or "targets[2].host"
func (ve ValidationError) Field() string {
	var b strings.Builder
	for i, seg := range ve.Path {
		if i > 0 && !strings.HasPrefix(seg, "[") {
			b.WriteByte('.')
		}
		b.WriteString(seg)
	}
	return b.String()
}

// Error implements the error interface for ValidationError
func (ve ValidationError) Error() string {
	if len(ve.Path) == 0 {
		return fmt.Sprintf("validation error: %s", ve.Message)
	}
	return fmt.Sprintf("validation error in field '%s': %s", ve.Field(), ve.Message)
}

// MarshalJSON adds the rendered field path
func (ve ValidationError) MarshalJSON() ([]byte, error) {
	type plain ValidationError
	path := ve.Path
	if path == nil {
		path = []string{}
	}
	return json.Marshal(struct {
		Field string `json:"field"`
		plain
	}{Field: ve.Field(), plain: plain{Path: path, Kind: ve.Kind, Message: ve.Message, Value: ve.Value}})
}

func childPath(path []string, seg string) []string {
	out := make([]string, len(path)+1)
	copy(out, path)
	out[len(path)] = seg
	return out
}

func indexPath(path []string, i int) []string {
	return childPath(path, fmt.Sprintf("[%d]", i))
}

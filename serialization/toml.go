package serialization

import (
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// TOMLCodec decodes TOML documents. Key order is recovered from the decoder metadata.
type TOMLCodec struct{}

func (TOMLCodec) Name() string { return "toml" }

func (TOMLCodec) Extensions() []string { return []string{".toml"} }

// Decode decodes a TOML document
func (TOMLCodec) Decode(data []byte) (*Object, error) {
	var raw map[string]any
	md, err := toml.Decode(string(data), &raw)
	if err != nil {
		return nil, err
	}

	order := make(map[string][]string)
	seen := make(map[string]bool)
	for _, key := range md.Keys() {
		for i := range key {
			parent := strings.Join(key[:i], "\x00")
			full := strings.Join(key[:i+1], "\x00")
			if seen[full] {
				continue
			}
			seen[full] = true
			order[parent] = append(order[parent], key[i])
		}
	}

	return convertTOMLTable(raw, "", order), nil
}

func convertTOMLTable(table map[string]any, path string, order map[string][]string) *Object {
	obj := NewObject()
	for _, k := range orderedKeys(table, order[path]) {
		obj.Set(k, convertTOMLValue(table[k], joinTOMLPath(path, k), order))
	}
	return obj
}

func convertTOMLValue(v any, path string, order map[string][]string) any {
	switch t := v.(type) {
	case map[string]any:
		return convertTOMLTable(t, path, order)
	case []map[string]any:
		arr := make([]any, len(t))
		for i, item := range t {
			arr[i] = convertTOMLTable(item, path, order)
		}
		return arr
	case []any:
		arr := make([]any, len(t))
		for i, item := range t {
			arr[i] = convertTOMLValue(item, path, order)
		}
		return arr
	case int64, float64, string, bool:
		return t
	case fmt.Stringer:
		// dates and times
		return t.String()
	default:
		return t
	}
}

// orderedKeys returns the table keys in declaration order, then any leftovers sorted
func orderedKeys(table map[string]any, declared []string) []string {
	keys := make([]string, 0, len(table))
	used := make(map[string]bool, len(table))
	for _, k := range declared {
		if _, ok := table[k]; ok && !used[k] {
			keys = append(keys, k)
			used[k] = true
		}
	}
	var rest []string
	for k := range table {
		if !used[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

func joinTOMLPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "\x00" + key
}

package entity

import (
	"sort"
	"strings"
)

// MetadataField is one leaf write of a metadata merge
type MetadataField struct {
	Path  []string
	Value interface{}
}

// MergeMetadata merges src into dst the way a merge-write does: a non-empty
// nested map is merged key by key, any other value replaces what dst holds.
// dst is modified in place; nested maps of src are copied, never shared.
func MergeMetadata(dst, src map[string]interface{}) {
	for k, v := range src {
		nested, ok := v.(map[string]interface{})
		if !ok || len(nested) == 0 {
			dst[k] = copyMetadataValue(v)
			continue
		}
		current, ok := dst[k].(map[string]interface{})
		if !ok {
			dst[k] = copyMetadataValue(nested)
			continue
		}
		merged := CopyMetadata(current)
		MergeMetadata(merged, nested)
		dst[k] = merged
	}
}

// CopyMetadata deep-copies nested maps and slices of m
func CopyMetadata(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = copyMetadataValue(v)
	}
	return out
}

func copyMetadataValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return CopyMetadata(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = copyMetadataValue(item)
		}
		return out
	default:
		return v
	}
}

// FlattenMetadata lists the leaf writes MergeMetadata would perform, sorted by path.
// Stores that update by field path apply these instead of rewriting the map.
func FlattenMetadata(m map[string]interface{}) []MetadataField {
	fields := make([]MetadataField, 0, len(m))
	flattenMetadata(nil, m, &fields)
	sort.Slice(fields, func(i, j int) bool {
		return strings.Join(fields[i].Path, "\x00") < strings.Join(fields[j].Path, "\x00")
	})
	return fields
}

func flattenMetadata(prefix []string, m map[string]interface{}, fields *[]MetadataField) {
	for k, v := range m {
		path := append(append([]string{}, prefix...), k)
		if nested, ok := v.(map[string]interface{}); ok && len(nested) > 0 {
			flattenMetadata(path, nested, fields)
			continue
		}
		*fields = append(*fields, MetadataField{Path: path, Value: v})
	}
}

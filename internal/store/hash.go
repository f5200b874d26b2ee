// Package store - field-map value kind.
//
// A Hash is a map of field->value pairs stored under a single key. All
// single-field operations are O(1); bulk operations are O(N) in the number
// of fields. The Hash itself is NOT thread-safe; concurrency is managed by
// the Store.
package store

import "sort"

// Hash represents the field-map variant of a Value.
type Hash struct {
	fields map[string]string
}

// NewHash creates a new empty Hash.
func NewHash() *Hash {
	return &Hash{fields: make(map[string]string)}
}

// Set sets field to value. Returns true if the field is new (didn't exist
// before).
func (h *Hash) Set(field, value string) bool {
	_, existed := h.fields[field]
	h.fields[field] = value
	return !existed
}

// Get returns the value of a field.
func (h *Hash) Get(field string) (string, bool) {
	val, exists := h.fields[field]
	return val, exists
}

// Del removes a field. Returns true if it existed. Removing the last field
// leaves an empty Hash; the key stays present in the store.
func (h *Hash) Del(field string) bool {
	if _, exists := h.fields[field]; !exists {
		return false
	}
	delete(h.fields, field)
	return true
}

// Exists returns whether a field exists in the hash.
func (h *Hash) Exists(field string) bool {
	_, exists := h.fields[field]
	return exists
}

// Len returns the number of fields in the hash.
func (h *Hash) Len() int {
	return len(h.fields)
}

// FieldValue represents a field-value pair in a hash.
type FieldValue struct {
	Field string
	Value string
}

// GetAll returns all field-value pairs, sorted by field name so the wire
// encoding of a map dump is deterministic.
func (h *Hash) GetAll() []FieldValue {
	result := make([]FieldValue, 0, len(h.fields))
	for field, value := range h.fields {
		result = append(result, FieldValue{Field: field, Value: value})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Field < result[j].Field })
	return result
}

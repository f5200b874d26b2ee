package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashSetGet(t *testing.T) {
	h := NewHash()

	assert.True(t, h.Set("name", "alice"))
	assert.False(t, h.Set("name", "bob"))

	val, ok := h.Get("name")
	assert.True(t, ok)
	assert.Equal(t, "bob", val)

	_, ok = h.Get("missing")
	assert.False(t, ok)
}

func TestHashDel(t *testing.T) {
	h := NewHash()
	h.Set("f", "v")

	assert.True(t, h.Del("f"))
	assert.False(t, h.Del("f"))
	assert.Equal(t, 0, h.Len())
}

func TestHashExistsLen(t *testing.T) {
	h := NewHash()

	assert.False(t, h.Exists("f"))
	assert.Equal(t, 0, h.Len())

	h.Set("a", "1")
	h.Set("b", "2")
	assert.True(t, h.Exists("a"))
	assert.Equal(t, 2, h.Len())
}

func TestHashGetAllOrder(t *testing.T) {
	h := NewHash()
	h.Set("c", "3")
	h.Set("a", "1")
	h.Set("b", "2")

	assert.Equal(t, []FieldValue{
		{Field: "a", Value: "1"},
		{Field: "b", Value: "2"},
		{Field: "c", Value: "3"},
	}, h.GetAll())
}

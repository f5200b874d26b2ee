// Package store provides the in-memory key-value store engine for Medusa,
// with typed values, per-key TTL support, and sharded locking.
package store

import (
	"errors"
	"time"
)

var (
	// ErrNotFound indicates the key does not exist (or has expired).
	ErrNotFound = errors.New("store: key not found")
	// ErrWrongType indicates an operation against a key holding another
	// value kind. The store is never mutated when this is returned.
	ErrWrongType = errors.New("store: wrong value type")
)

// Kind identifies which variant of a Value is active.
type Kind uint8

const (
	KindScalar Kind = iota + 1
	KindMap
	KindList
)

// String returns the type name as reported to clients.
func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindMap:
		return "map"
	case KindList:
		return "list"
	default:
		return "none"
	}
}

// Value is a closed tagged union: exactly one of scalar, hash, or list is
// active, selected by kind. A key holds exactly one variant at any instant.
type Value struct {
	kind   Kind
	scalar string
	hash   *Hash
	list   *List
}

// NewScalar returns a Value holding a scalar string.
func NewScalar(s string) Value {
	return Value{kind: KindScalar, scalar: s}
}

// NewMap returns a Value holding an empty field map.
func NewMap() Value {
	return Value{kind: KindMap, hash: NewHash()}
}

// NewList returns a Value holding an empty list.
func NewList() Value {
	return Value{kind: KindList, list: newList()}
}

// Kind returns the active variant.
func (v Value) Kind() Kind { return v.kind }

// Entry represents a stored value with optional expiration.
type Entry struct {
	value     Value
	expireAt  time.Time
	hasExpire bool
}

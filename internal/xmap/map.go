// Package xmap holds the generic map helpers the engine shares: a typed
// sync.Map wrapper and typed accessors over the map[string]any documents
// the policy loader and resolvers work with.
package xmap

import (
	"sync"
)

// Map is a type-safe wrapper around sync.Map, kept to the surface this
// module needs (most directly the compiled-pattern cache in xregexp).
type Map[K comparable, V any] struct {
	m sync.Map
}

// New creates a new Map instance.
func New[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{}
}

// Load returns the value stored for key, or the zero value if absent. The
// ok result indicates whether the key was present.
func (m *Map[K, V]) Load(key K) (value V, ok bool) {
	v, ok := m.m.Load(key)
	if !ok {
		return value, false
	}

	//nolint:forcetypeassert // Safe to assert since we control the map.
	return v.(V), true
}

// Store sets the value for a key.
func (m *Map[K, V]) Store(key K, value V) {
	m.m.Store(key, value)
}

// LoadOrStore returns the existing value for the key if present; otherwise
// it stores and returns the given value. The loaded result is true if the
// value was loaded, false if stored.
func (m *Map[K, V]) LoadOrStore(key K, value V) (actual V, loaded bool) {
	v, loaded := m.m.LoadOrStore(key, value)
	//nolint:forcetypeassert // Safe to assert since we control the map.
	return v.(V), loaded
}

// Delete deletes the value for a key.
func (m *Map[K, V]) Delete(key K) {
	m.m.Delete(key)
}

// Range calls f sequentially for each key and value present in the map.
// If f returns false, iteration stops.
func (m *Map[K, V]) Range(f func(key K, value V) bool) {
	m.m.Range(func(key, value any) bool {
		//nolint:forcetypeassert // Safe to assert since we control the map.
		return f(key.(K), value.(V))
	})
}

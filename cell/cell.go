// Package cell holds write-once values keyed by identity. Every key is
// computed at most once; concurrent first requests for a key share one
// computation and every later reader sees the stored value.
package cell

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// Key is anything comparable that can name itself for singleflight.
type Key interface {
	comparable
	String() string
}

// Map is a set of write-once cells. Failed computations are not stored and
// will run again on the next request.
type Map[K Key, V any] struct {
	values sync.Map
	group  singleflight.Group
}

// Get returns the stored value for key, computing it with fn if absent.
func (m *Map[K, V]) Get(key K, fn func() (V, error)) (V, error) {
	if v, ok := m.values.Load(key); ok {
		return v.(V), nil
	}

	v, err, _ := m.group.Do(key.String(), func() (any, error) {
		// another flight may have finished between Load and Do
		if v, ok := m.values.Load(key); ok {
			return v, nil
		}

		v, err := fn()
		if err != nil {
			return nil, err
		}
		actual, _ := m.values.LoadOrStore(key, v)
		return actual, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

// Peek returns the stored value without computing it.
func (m *Map[K, V]) Peek(key K) (V, bool) {
	if v, ok := m.values.Load(key); ok {
		return v.(V), true
	}
	var zero V
	return zero, false
}

// Len counts stored cells.
func (m *Map[K, V]) Len() int {
	n := 0
	m.values.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Range calls fn for each stored cell until fn returns false.
func (m *Map[K, V]) Range(fn func(K, V) bool) {
	m.values.Range(func(k, v any) bool {
		return fn(k.(K), v.(V))
	})
}

// Name is a string key.
type Name string

func (n Name) String() string { return string(n) }

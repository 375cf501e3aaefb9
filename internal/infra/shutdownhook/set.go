package shutdownhook

import (
	"fmt"
	"reflect"
	"slices"
)

// orderedSet is an insertion-ordered set keyed by identity. It is not safe for
// concurrent use; the hook guards it with its own mutex.
type orderedSet[T comparable] struct {
	items []T
	index map[T]struct{}
}

func newOrderedSet[T comparable]() *orderedSet[T] {
	return &orderedSet[T]{
		index: make(map[T]struct{}),
	}
}

// add appends item and reports whether it was not present yet.
func (s *orderedSet[T]) add(item T) bool {
	if _, ok := s.index[item]; ok {
		return false
	}

	s.index[item] = struct{}{}
	s.items = append(s.items, item)

	return true
}

func (s *orderedSet[T]) remove(item T) bool {
	if _, ok := s.index[item]; !ok {
		return false
	}

	delete(s.index, item)

	if i := slices.Index(s.items, item); i >= 0 {
		s.items = slices.Delete(s.items, i, i+1)
	}

	return true
}

func (s *orderedSet[T]) removeFunc(del func(T) bool) {
	s.items = slices.DeleteFunc(s.items, func(item T) bool {
		if !del(item) {
			return false
		}

		delete(s.index, item)

		return true
	})
}

func (s *orderedSet[T]) contains(item T) bool {
	_, ok := s.index[item]

	return ok
}

// values returns a copy of the items in insertion order.
func (s *orderedSet[T]) values() []T {
	return slices.Clone(s.items)
}

func (s *orderedSet[T]) len() int {
	return len(s.items)
}

func (s *orderedSet[T]) clear() {
	s.items = nil
	clear(s.index)
}

// checkIdentity accepts only pointers: set members are compared by identity,
// and a value type would be compared by its contents or panic on insert.
func checkIdentity(v any) error {
	if v == nil || reflect.TypeOf(v).Kind() != reflect.Pointer {
		return fmt.Errorf("%w: %T", ErrNotComparable, v)
	}

	return nil
}

// Package listset treats ordered string lists as sets. Every function returns
// a fresh slice and never mutates its inputs.
package listset

// Add returns the union of a and ids in first-seen order with duplicates removed.
func Add[T comparable](a []T, ids ...T) []T {
	seen := make(map[T]struct{}, len(a)+len(ids))
	out := make([]T, 0, len(a)+len(ids))
	for _, list := range [][]T{a, ids} {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// Remove returns a without any element of ids, preserving order.
func Remove[T comparable](a []T, ids ...T) []T {
	drop := make(map[T]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	out := make([]T, 0, len(a))
	for _, id := range a {
		if _, ok := drop[id]; ok {
			continue
		}
		out = append(out, id)
	}
	return out
}

// Contains reports whether id is in a.
func Contains[T comparable](a []T, id T) bool {
	for _, v := range a {
		if v == id {
			return true
		}
	}
	return false
}

// Equal reports whether a and b hold the same elements in the same order.
func Equal[T comparable](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Package collection provides generic helpers for the slices the view engine
// derives from snapshots. Every function leaves its input untouched and
// returns a non-nil slice, so results encode as [] rather than null.
//
// Usage:
//
//	names := collection.Map(users, func(u models.User) string { return u.Name })
//	open := collection.Filter(tasks, func(t models.Task) bool { return t.Status != models.TaskCompleted })
//	recent := collection.Take(collection.SortBy(feed, newerFirst), 10)
package collection

import "sort"

// Map transforms each element of s using fn.
func Map[T, R any](s []T, fn func(T) R) []R {
	out := make([]R, len(s))
	for i, v := range s {
		out[i] = fn(v)
	}
	return out
}

// Filter returns the elements of s for which fn returns true, in order.
func Filter[T any](s []T, fn func(T) bool) []T {
	out := make([]T, 0)
	for _, v := range s {
		if fn(v) {
			out = append(out, v)
		}
	}
	return out
}

// Partition splits s into the elements matching fn and the rest in a single
// pass. Both halves keep input order.
func Partition[T any](s []T, fn func(T) bool) (match, rest []T) {
	match = make([]T, 0)
	rest = make([]T, 0, len(s))
	for _, v := range s {
		if fn(v) {
			match = append(match, v)
		} else {
			rest = append(rest, v)
		}
	}
	return match, rest
}

// Count returns how many elements satisfy fn.
func Count[T any](s []T, fn func(T) bool) int {
	n := 0
	for _, v := range s {
		if fn(v) {
			n++
		}
	}
	return n
}

// Contains reports whether any element of s satisfies fn.
func Contains[T any](s []T, fn func(T) bool) bool {
	for _, v := range s {
		if fn(v) {
			return true
		}
	}
	return false
}

// KeyBy turns s into a map using the key produced by fn.
// If two elements produce the same key, the last one wins.
func KeyBy[T any, K comparable](s []T, fn func(T) K) map[K]T {
	out := make(map[K]T, len(s))
	for _, v := range s {
		out[fn(v)] = v
	}
	return out
}

// SortBy returns a sorted copy of s. Equal elements keep their input order.
func SortBy[T any](s []T, less func(a, b T) bool) []T {
	out := make([]T, len(s))
	copy(out, s)
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// Take returns at most the first n elements. A negative n yields none.
func Take[T any](s []T, n int) []T {
	if n < 0 {
		n = 0
	}
	if s == nil {
		return make([]T, 0)
	}
	if n >= len(s) {
		return s
	}
	return s[:n]
}

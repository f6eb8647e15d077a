// Package pick implements the first-defined-wins fallback used to reconcile
// fields that several upstream shapes may or may not carry.
//
// A Source yields a candidate and reports whether it is usable. First walks
// the sources in priority order and returns the first usable candidate.
package pick

import (
	"math"
	"strings"
)

// Source yields a candidate value and whether it is defined.
type Source[T any] func() (T, bool)

// First returns the first defined candidate.
func First[T any](sources ...Source[T]) (T, bool) {
	for _, source := range sources {
		if source == nil {
			continue
		}
		if v, ok := source(); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// Or returns the first defined candidate, or fallback when none is.
func Or[T any](fallback T, sources ...Source[T]) T {
	if v, ok := First(sources...); ok {
		return v
	}
	return fallback
}

// Value is always defined.
func Value[T any](v T) Source[T] {
	return func() (T, bool) { return v, true }
}

// Ptr is defined when p is non-nil.
func Ptr[T any](p *T) Source[T] {
	return func() (T, bool) {
		if p == nil {
			var zero T
			return zero, false
		}
		return *p, true
	}
}

// Lazy defers evaluation until the source is reached.
func Lazy[T any](fn func() (T, bool)) Source[T] {
	return Source[T](fn)
}

// Float is defined when p is non-nil and finite.
func Float(p *float64) Source[float64] {
	return func() (float64, bool) {
		if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) {
			return 0, false
		}
		return *p, true
	}
}

// Number is defined when v is finite.
func Number(v float64) Source[float64] {
	return func() (float64, bool) {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return v, true
	}
}

// String is defined when s is not blank.
func String(s string) Source[string] {
	return func() (string, bool) {
		trimmed := strings.TrimSpace(s)
		return trimmed, trimmed != ""
	}
}

// Positive is defined when v > 0.
func Positive(v int) Source[int] {
	return func() (int, bool) { return v, v > 0 }
}

// Int64 is defined when p is non-nil.
func Int64(p *int64) Source[int64] {
	return Ptr(p)
}

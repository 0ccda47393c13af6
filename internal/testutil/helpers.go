// Package testutil provides shared test helpers for Gridline packages.
package testutil

import (
	"testing"
	"time"
)

// BaseTime is a fixed wall-clock origin used by tests so that expected
// elapsed values stay simple round numbers.
var BaseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// Nanos returns the absolute timestamp, in nanoseconds, at the given
// offset in seconds from BaseTime.
func Nanos(offsetSeconds float64) int64 {
	return BaseTime.UnixNano() + int64(offsetSeconds*1e9)
}

// CloseEnough reports whether two floats agree within tol.
func CloseEnough(a, b, tol float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= tol
}

// AssertClose fails the test unless got is within tol of want.
func AssertClose(t *testing.T, got, want, tol float64) {
	t.Helper()
	if !CloseEnough(got, want, tol) {
		t.Fatalf("got %v, want %v (tol %v)", got, want, tol)
	}
}

//go:build !debug

// Package debug provides assertions that compile to no-ops unless the debug
// build tag is set. Driver hot paths use them to check alignment and register
// programming invariants without paying for the checks in release builds.
package debug

// Enabled reports whether assertions are compiled in. Wrap assertions that
// need setup work of their own in `if debug.Enabled { ... }` so release
// builds can drop the whole block.
const Enabled = false

// Assert panics if b is false.
func Assert(b bool, message string) {}

// Assertf panics with a formatted message if b is false.
func Assertf(b bool, format string, args ...any) {}

// AssertErrNil panics if err is not nil.
func AssertErrNil(err error) {}

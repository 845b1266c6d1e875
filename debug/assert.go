//go:build debug

package debug

import "fmt"

// Enabled reports whether assertions are compiled in. Wrap assertions that
// need setup work of their own in `if debug.Enabled { ... }` so release
// builds can drop the whole block.
const Enabled = true

func Assert(b bool, message string) {
	if !b {
		panic(message)
	}
}

func Assertf(b bool, format string, args ...any) {
	if !b {
		panic(fmt.Sprintf(format, args...))
	}
}

func AssertErrNil(err error) {
	if err != nil {
		panic(err)
	}
}

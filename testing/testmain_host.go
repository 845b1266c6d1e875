//go:build !litexsoc

// Package testing provides utilities for writing litexsoc specific tests.
package testing

import (
	"os"
	"testing"
)

// TestMain runs the tests unmodified. On the litexsoc target it additionally
// mounts the UART console before running them.
func TestMain(m *testing.M) {
	os.Exit(m.Run())
}

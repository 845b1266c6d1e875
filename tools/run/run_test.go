package run

import (
	"io"
	"log"
	"os"
	"strings"
	"testing"
)

func testScan(t *testing.T, lines ...string) int {
	t.Helper()
	r := strings.NewReader(strings.Join(lines, "\n") + "\n")
	return scan(r, func() {})
}

func TestScanVerdicts(t *testing.T) {
	log.SetOutput(io.Discard)
	defer log.SetOutput(os.Stderr)

	cases := []struct {
		name  string
		lines []string
		code  int
	}{
		{"pass", []string{"ok  \tsdcard\t0.1s", "PASS"}, 0},
		{"fail", []string{"--- FAIL: TestInit (0.00s)", "FAIL"}, 1},
		{"panic", []string{"panic: runtime error: index out of range"}, 1},
		{"fatal", []string{"fatal error: all goroutines are asleep"}, 1},
		{"no verdict", []string{"booting", "hello"}, 0},
		{"verdict latches", []string{"PASS", "FAIL"}, 0},
		{"first verdict wins", []string{"FAIL", "PASS"}, 1},
		{"prefix only matches whole line", []string{"PASSWORD: hunter2"}, 0},
	}
	for _, tc := range cases {
		if got := testScan(t, tc.lines...); got != tc.code {
			t.Errorf("%s: code = %d, want %d", tc.name, got, tc.code)
		}
	}
}

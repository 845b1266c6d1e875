//go:build !litexsoc

package machine

import "os"

// DefaultWrite writes to the process's stderr. On the litexsoc target it
// writes to the UART instead and backs the runtime's print and panic output.
func DefaultWrite(fd int, p []byte) int {
	n, _ := os.Stderr.Write(p)
	return n
}

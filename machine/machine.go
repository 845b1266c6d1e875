// Package machine is imported by the runtime and allows the target to
// implement some hooks, most importantly the failsafe system console.
package machine

type defaultWriter int

// DefaultWriter is a failsafe console writer, usable before os.Stdout is
// mounted.
const DefaultWriter defaultWriter = 0

func (v defaultWriter) Write(p []byte) (int, error) {
	return DefaultWrite(int(v), p), nil
}

//go:build litexsoc

package machine

import (
	"embedded/mmio"
	"unsafe"

	"github.com/uk0/litex/soc"
)

var regs *registers = (*registers)(unsafe.Pointer(baseAddr))

const baseAddr uintptr = soc.CSRBase + uintptr(soc.UARTBase)

type registers struct {
	rxtx   mmio.U32
	txFull mmio.U32
}

// Writes to the UART transmit register, regardless if a receiver is attached
// or not. Is rather slow, because it polls the FIFO per byte. Only intended
// as a fail safe logger in very early boot and for panics.
//
//go:nowritebarrierrec
//go:nosplit
//go:linkname DefaultWrite runtime.defaultWrite
func DefaultWrite(fd int, p []byte) int {
	for _, b := range p {
		for regs.txFull.Load()&1 != 0 {
			// wait
		}
		regs.rxtx.Store(uint32(b))
	}
	return len(p)
}

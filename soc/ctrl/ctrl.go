// Package ctrl accesses the SoC controller of a LiteX SoC.
//
// The controller provides a scratch register for bus sanity checks, a reset
// request register and a counter of bus errors detected by the interconnect.
// The adjacent identifier memory holds the human readable build identifier of
// the bitstream.
package ctrl

import (
	"strings"

	"github.com/uk0/litex/soc"
	"github.com/uk0/litex/soc/csr"
)

// Reset value of the scratch register, used to verify that the CSR bus works.
const scratchInit = 0x12345678

const identMaxLen = 256

type registers struct {
	reset     csr.U32
	scratch   csr.U32
	busErrors csr.U32
}

type Ctrl struct {
	regs  registers
	bus   csr.Bus
	ident uint32
}

// Probe verifies the CSR bus by exercising the scratch register. Returns nil
// if the controller doesn't respond, e.g. when the base address doesn't match
// the bitstream.
func Probe(bus csr.Bus) *Ctrl {
	c := &Ctrl{
		regs: registers{
			reset:     csr.NewU32(bus, soc.CtrlBase+0x00),
			scratch:   csr.NewU32(bus, soc.CtrlBase+0x04),
			busErrors: csr.NewU32(bus, soc.CtrlBase+0x08),
		},
		bus:   bus,
		ident: soc.IdentifierMemBase,
	}

	old := c.regs.scratch.Load()
	c.regs.scratch.Store(0xbeefcafe)
	readback := c.regs.scratch.Load()
	c.regs.scratch.Store(old)
	if readback != 0xbeefcafe {
		return nil
	}
	return c
}

// Reset requests a SoC wide reset. On hardware this call doesn't return.
func (c *Ctrl) Reset() {
	c.regs.reset.Store(1)
}

// BusErrors returns the number of bus errors the interconnect has detected
// since power-on.
func (c *Ctrl) BusErrors() uint32 {
	return c.regs.busErrors.Load()
}

// Identifier returns the build identifier of the bitstream. The identifier
// memory stores one byte per CSR word.
func (c *Ctrl) Identifier() string {
	var b strings.Builder
	for off := uint32(0); off < identMaxLen*4; off += 4 {
		ch := byte(c.bus.Read32(c.ident + off))
		if ch == 0 {
			break
		}
		b.WriteByte(ch)
	}
	return b.String()
}

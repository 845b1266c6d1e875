// Package uart drives the serial port of a LiteX SoC.
//
// The UART has small RX and TX FIFOs and no flow control. Reads and writes
// block by polling the FIFO status registers, which makes the package usable
// before the runtime is fully up.
package uart

import (
	"github.com/uk0/litex/soc"
	"github.com/uk0/litex/soc/csr"
)

type eventFlag uint32

const (
	eventTx eventFlag = 1 << iota
	eventRx
)

type registers struct {
	rxtx      csr.U32
	txFull    csr.U32
	rxEmpty   csr.U32
	evStatus  csr.R32[eventFlag]
	evPending csr.R32[eventFlag]
	evEnable  csr.R32[eventFlag]
	txEmpty   csr.U32
	rxFull    csr.U32
}

// UART implements io.Reader and io.Writer over the serial port.
type UART struct {
	regs registers
}

func New(bus csr.Bus) *UART {
	base := soc.UARTBase
	return &UART{registers{
		rxtx:      csr.NewU32(bus, base+0x00),
		txFull:    csr.NewU32(bus, base+0x04),
		rxEmpty:   csr.NewU32(bus, base+0x08),
		evStatus:  csr.NewR32[eventFlag](bus, base+0x0c),
		evPending: csr.NewR32[eventFlag](bus, base+0x10),
		evEnable:  csr.NewR32[eventFlag](bus, base+0x14),
		txEmpty:   csr.NewU32(bus, base+0x18),
		rxFull:    csr.NewU32(bus, base+0x1c),
	}}
}

// WriteByte blocks until there is room in the TX FIFO.
func (u *UART) WriteByte(c byte) {
	for u.regs.txFull.Load()&1 != 0 {
	}
	u.regs.rxtx.Store(uint32(c))
	u.regs.evPending.Store(eventTx)
}

func (u *UART) Write(p []byte) (n int, err error) {
	for _, c := range p {
		u.WriteByte(c)
	}
	return len(p), nil
}

// ReadByte blocks until a byte is available in the RX FIFO.
func (u *UART) ReadByte() byte {
	for u.regs.rxEmpty.Load()&1 != 0 {
	}
	c := byte(u.regs.rxtx.Load())
	u.regs.evPending.Store(eventRx)
	return c
}

// TryReadByte returns a byte from the RX FIFO if one is pending.
func (u *UART) TryReadByte() (byte, bool) {
	if u.regs.rxEmpty.Load()&1 != 0 {
		return 0, false
	}
	c := byte(u.regs.rxtx.Load())
	u.regs.evPending.Store(eventRx)
	return c, true
}

// Read blocks until at least one byte is available, then drains the RX FIFO
// into p without blocking again.
func (u *UART) Read(p []byte) (n int, err error) {
	if len(p) == 0 {
		return 0, nil
	}
	p[0] = u.ReadByte()
	n = 1
	for n < len(p) && u.regs.rxEmpty.Load()&1 == 0 {
		p[n] = byte(u.regs.rxtx.Load())
		u.regs.evPending.Store(eventRx)
		n++
	}
	return n, nil
}

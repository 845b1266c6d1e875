package csr_test

import (
	"testing"

	"github.com/uk0/litex/soc/csr"
	litextesting "github.com/uk0/litex/testing"
)

func TestMain(m *testing.M) { litextesting.TestMain(m) }

// wordBus records raw word accesses for checking register layout.
type wordBus map[uint32]uint32

func (b wordBus) Read32(off uint32) uint32     { return b[off] }
func (b wordBus) Write32(off uint32, v uint32) { b[off] = v }

func TestU32(t *testing.T) {
	bus := wordBus{}
	r := csr.NewU32(bus, 0x24)

	r.Store(0xdeadbeef)
	if got := bus[0x24]; got != 0xdeadbeef {
		t.Errorf("raw word: got %#x", got)
	}
	if got := r.Load(); got != 0xdeadbeef {
		t.Errorf("load: got %#x", got)
	}
}

func TestU64WordOrder(t *testing.T) {
	bus := wordBus{}
	r := csr.NewU64(bus, 0x10)

	r.Store(0x11223344_55667788)
	if bus[0x10] != 0x11223344 {
		t.Errorf("most significant word: got %#x", bus[0x10])
	}
	if bus[0x14] != 0x55667788 {
		t.Errorf("least significant word: got %#x", bus[0x14])
	}
	if got := r.Load(); got != 0x11223344_55667788 {
		t.Errorf("load: got %#x", got)
	}
}

func TestU128WordOrder(t *testing.T) {
	bus := wordBus{0x0c: 0xa0, 0x10: 0xa1, 0x14: 0xa2, 0x18: 0xa3}
	r := csr.NewU128(bus, 0x0c)

	words := r.Load()
	for i, want := range []uint32{0xa0, 0xa1, 0xa2, 0xa3} {
		if words[i] != want {
			t.Errorf("word %d: got %#x, want %#x", i, words[i], want)
		}
	}
}

type testFlags uint32

const (
	flagA testFlags = 1 << iota
	flagB
	flagC
)

func TestR32Bits(t *testing.T) {
	bus := wordBus{}
	r := csr.NewR32[testFlags](bus, 0x0)

	r.SetBits(flagA | flagC)
	if got := r.Load(); got != flagA|flagC {
		t.Errorf("after set: got %#x", got)
	}
	r.ClearBits(flagA)
	if got := r.Load(); got != flagC {
		t.Errorf("after clear: got %#x", got)
	}
	if got := r.LoadBits(flagB | flagC); got != flagC {
		t.Errorf("masked load: got %#x", got)
	}
}

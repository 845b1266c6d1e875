// Package csr provides typed access to the configuration and status registers
// of a LiteX SoC.
//
// Registers are descriptors bound to a [Bus] and an offset instead of raw
// pointers. On hardware the Bus maps accesses directly onto the CSR address
// space, while tests substitute a simulated SoC. CSRs wider than the 32 bit
// bus width occupy consecutive words, most significant word first.
package csr

// Bus gives access to the CSR address space of a SoC. Offsets are relative to
// the CSR base address. All accesses are 32 bit wide, matching the bus width
// of the reference design.
type Bus interface {
	Read32(off uint32) uint32
	Write32(off uint32, v uint32)
}

// T32 is implemented by all types that can be stored in a 32 bit register.
type T32 interface {
	~uint32
}

// U32 is a single 32 bit register.
type U32 struct {
	bus Bus
	off uint32
}

func NewU32(bus Bus, off uint32) U32 { return U32{bus, off} }

func (r U32) Load() uint32   { return r.bus.Read32(r.off) }
func (r U32) Store(v uint32) { r.bus.Write32(r.off, v) }

// Offset returns the register's offset relative to the CSR base address.
func (r U32) Offset() uint32 { return r.off }

// R32 is a 32 bit register holding a value of type T, usually a bitfield
// type.
type R32[T T32] struct {
	bus Bus
	off uint32
}

func NewR32[T T32](bus Bus, off uint32) R32[T] { return R32[T]{bus, off} }

func (r R32[T]) Load() T   { return T(r.bus.Read32(r.off)) }
func (r R32[T]) Store(v T) { r.bus.Write32(r.off, uint32(v)) }

func (r R32[T]) LoadBits(mask T) T { return r.Load() & mask }
func (r R32[T]) SetBits(mask T)    { r.Store(r.Load() | mask) }
func (r R32[T]) ClearBits(mask T)  { r.Store(r.Load() &^ mask) }

// Offset returns the register's offset relative to the CSR base address.
func (r R32[T]) Offset() uint32 { return r.off }

// U64 is a 64 bit register spanning two consecutive words, most significant
// word at the lower offset.
type U64 struct {
	bus Bus
	off uint32
}

func NewU64(bus Bus, off uint32) U64 { return U64{bus, off} }

func (r U64) Load() uint64 {
	hi := r.bus.Read32(r.off)
	lo := r.bus.Read32(r.off + 4)
	return uint64(hi)<<32 | uint64(lo)
}

func (r U64) Store(v uint64) {
	r.bus.Write32(r.off, uint32(v>>32))
	r.bus.Write32(r.off+4, uint32(v))
}

// U128 is a 128 bit read-only register spanning four consecutive words, most
// significant word at the lowest offset. Load fills the returned array in
// offset order, i.e. index 0 holds the most significant word.
type U128 struct {
	bus Bus
	off uint32
}

func NewU128(bus Bus, off uint32) U128 { return U128{bus, off} }

func (r U128) Load() [4]uint32 {
	var buf [4]uint32
	for i := range buf {
		buf[i] = r.bus.Read32(r.off + uint32(i)*4)
	}
	return buf
}

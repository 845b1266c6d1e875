package cpu

import "unsafe"

// Addr represents a physical memory address as seen by the bus masters of the
// SoC. The reference design uses a flat address space, physical and virtual
// addresses are identical. The DMA engines take 64 bit base addresses
// regardless of the CPU's word size.
type Addr uint64

// PhysicalAddress returns the physical address of a virtual address.
func PhysicalAddress(addr uintptr) Addr {
	return Addr(addr)
}

// Same as [PhysicalAddress] but for slices.
func PhysicalAddressSlice(s []byte) Addr {
	return PhysicalAddress(uintptr(unsafe.Pointer(unsafe.SliceData(s))))
}

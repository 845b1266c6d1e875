//go:build litexsoc

package csr

import (
	"embedded/mmio"
	"unsafe"
)

// MMIO is the Bus of the running SoC. Accesses go directly to the memory
// mapped CSR address space.
type MMIO struct {
	base uintptr
}

func NewMMIO(base uintptr) *MMIO { return &MMIO{base} }

func (m *MMIO) Read32(off uint32) uint32 {
	return (*mmio.U32)(unsafe.Pointer(m.base + uintptr(off))).Load()
}

func (m *MMIO) Write32(off uint32, v uint32) {
	(*mmio.U32)(unsafe.Pointer(m.base + uintptr(off))).Store(v)
}

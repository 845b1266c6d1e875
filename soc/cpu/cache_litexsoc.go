//go:build litexsoc

package cpu

import (
	"embedded/mmio"
	"unsafe"

	"github.com/uk0/litex/soc"
)

// The reference design's CPU exposes no cache maintenance instructions to
// software. The vendor library syncs caches by reading twice the L2 size from
// main RAM, evicting every line. Loads go through mmio so they can't be
// optimized away.
func evict() {
	for off := uintptr(0); off < 2*soc.L2CacheSize; off += 4 {
		(*mmio.U32)(unsafe.Pointer(soc.MainRAMBase + off)).Load()
	}
}

// Writeback causes the cache to be written back to RAM. Call this before
// requesting another component to read from this address range.
func Writeback(addr uintptr, length int) { evict() }

// Invalidate causes the cache to be read from RAM before next access. Call
// this after the address range was written by another component.
func Invalidate(addr uintptr, length int) { evict() }

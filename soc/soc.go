// Package soc provides a hardware abstraction layer for a LiteX SoC.
//
// It implements low-level access to the peripherals of the reference design.
// All hardware capabilities are directly exposed and in general unsafe. Use
// the higher level drivers to write applications instead.
package soc

// ClockFrequency is the system clock the reference design is built with. All
// peripheral clock dividers are derived from it.
const ClockFrequency = 100_000_000

// Memory map of the reference design.
const (
	MainRAMBase uintptr = 0x4000_0000
	CSRBase     uintptr = 0xf000_0000
)

// L2CacheSize is the size of the write-back L2 cache in front of main RAM.
const L2CacheSize = 8192

// CSR window of each peripheral, relative to [CSRBase]. LiteX assigns one
// 0x800 byte page per peripheral, ordered alphabetically by name.
const (
	CtrlBase            uint32 = 0x0000
	IdentifierMemBase   uint32 = 0x0800
	SDCardBlock2MemBase uint32 = 0x1000
	SDCardCoreBase      uint32 = 0x1800
	SDCardMem2BlockBase uint32 = 0x2000
	SDCardPhyBase       uint32 = 0x2800
	Timer0Base          uint32 = 0x3000
	UARTBase            uint32 = 0x3800
)

// Package sdcard provides a driver for the LiteSDCard controller found on
// LiteX SoCs. The controller exposes a command engine, a PHY with a
// programmable clock divider and two DMA engines over CSRs. The driver brings
// an inserted SD or SDHC card to the transfer state and moves 512 byte blocks
// between the card and main RAM.
//
// A Card is not safe for concurrent use. Wrap it in a mutex, or use
// drivers/block which does.
package sdcard

import (
	"errors"
	"log/slog"
	"time"

	"github.com/uk0/litex/soc"
	"github.com/uk0/litex/soc/csr"
)

// BlockSize is the unit of all data transfers. The driver locks the card's
// block length to this value during initialization.
const BlockSize = 512

// Sentinel errors returned by commands and transfers. Errors returned by
// Init, ReadBlocks and WriteBlocks wrap one of these.
var (
	ErrTimeout        = errors.New("sdcard: command timeout")
	ErrCRC            = errors.New("sdcard: response crc error")
	ErrNoCard         = errors.New("sdcard: no card in slot")
	ErrNotReady       = errors.New("sdcard: card not ready")
	ErrNotInitialized = errors.New("sdcard: card not initialized")
)

// Config controls clocking, retry policy and DMA behavior of a Card.
type Config struct {
	// SysClk is the system clock the PHY divider divides. Zero means
	// soc.ClockFrequency.
	SysClk uint32

	// InitClock and OpClock are the requested SD clocks during
	// identification and after, in Hz.
	InitClock uint32
	OpClock   uint32

	// MultiBlockRead and MultiBlockWrite select CMD18/CMD25 for transfers
	// longer than one block. When false the driver issues one CMD17/CMD24
	// per block.
	MultiBlockRead  bool
	MultiBlockWrite bool

	// SetBlockCount predeclares multi block transfer lengths with CMD23
	// instead of terminating them with CMD12.
	SetBlockCount bool

	// RetryForeverOnCommandError retries failed transfer commands without
	// bound, matching the behavior of cards that recover after a few
	// attempts. When false a transfer command is attempted at most
	// TransferRetries times before its error is returned.
	RetryForeverOnCommandError bool
	TransferRetries            int

	// InitRetries bounds the CMD0 and ACMD41 loops during Init.
	InitRetries int

	// PollInterval is the delay between event register polls. RetryDelay
	// is the delay between initialization retries.
	PollInterval time.Duration
	RetryDelay   time.Duration

	// CoherentDMA declares that the DMA engines snoop the CPU caches. When
	// false the driver writes back and invalidates transfer buffers around
	// DMA.
	CoherentDMA bool

	// Logger receives driver events. Nil disables logging.
	Logger *slog.Logger
}

// DefaultConfig returns the configuration used by the reference firmware:
// 400 kHz identification clock, 25 MHz operational clock, multi block
// transfers terminated by CMD12 and unbounded command retry.
func DefaultConfig() Config {
	return Config{
		InitClock:                  400_000,
		OpClock:                    25_000_000,
		MultiBlockRead:             true,
		MultiBlockWrite:            true,
		RetryForeverOnCommandError: true,
		TransferRetries:            1000,
		InitRetries:                1000,
		PollInterval:               10 * time.Microsecond,
		RetryDelay:                 time.Millisecond,
	}
}

// Card drives one LiteSDCard controller instance.
type Card struct {
	core      coreRegs
	phy       phyRegs
	block2mem dmaRegs
	mem2block dmaRegs

	cfg Config

	rca   uint16
	cid   CID
	csd   CSD
	scr   SCR
	ready bool
}

// New returns a driver for the controller behind bus. The card is not touched
// until Init.
func New(bus csr.Bus, cfg Config) *Card {
	if cfg.SysClk == 0 {
		cfg.SysClk = soc.ClockFrequency
	}
	return &Card{
		core:      newCoreRegs(bus),
		phy:       newPhyRegs(bus),
		block2mem: newDMARegs(bus, soc.SDCardBlock2MemBase),
		mem2block: newDMARegs(bus, soc.SDCardMem2BlockBase),
		cfg:       cfg,
	}
}

// Ready reports whether Init has completed successfully since the last reset.
func (c *Card) Ready() bool {
	return c.ready
}

// RCA returns the relative card address assigned during initialization.
func (c *Card) RCA() uint16 {
	return c.rca
}

// CID returns the card identification decoded during initialization.
func (c *Card) CID() CID {
	return c.cid
}

// CSD returns the card specific data decoded during initialization.
func (c *Card) CSD() CSD {
	return c.csd
}

// SCR returns the card configuration register read during initialization.
func (c *Card) SCR() SCR {
	return c.scr
}

// Capacity returns the card's size in bytes.
func (c *Card) Capacity() int64 {
	return c.csd.Capacity
}

// NumBlocks returns the card's size in 512 byte blocks.
func (c *Card) NumBlocks() int64 {
	return c.csd.Capacity / BlockSize
}

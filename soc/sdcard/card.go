package sdcard

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/uk0/litex/soc/cpu"
)

// CMD6 argument fields.
const (
	switchCheck  = 0
	switchSet    = 1
	groupAccess  = 0
	speedDefault = 0
	speedHigh    = 1
)

// Card status bits of the R1 response.
const (
	StatusAppCmd       = 1 << 5
	StatusReadyForData = 1 << 8
	StatusErrorMask    = 0xfff90000
)

// CurrentState extracts the card state machine field from an R1 card status.
func CurrentState(status uint32) uint32 {
	return status >> 9 & 0xf
}

// Card states reported in the R1 status.
const (
	StateIdle = iota
	StateReady
	StateIdent
	StateStandby
	StateTransfer
	StateData
	StateReceive
	StateProgram
	StateDisconnect
)

// Present reports whether the slot's card detect switch senses a card.
func (c *Card) Present() bool {
	return c.phy.cardDetect.LoadBits(slotEmpty) == 0
}

// Init identifies an inserted card and brings it to the transfer state with a
// 4 bit bus, high speed access mode and a 512 byte block length. It must be
// called once before any transfer and again after a card change. On success
// the card's CID, CSD and SCR are decoded and Ready reports true.
func (c *Card) Init() error {
	c.ready = false
	c.rca = 0

	if !c.Present() {
		return ErrNoCard
	}

	retries := c.cfg.InitRetries
	if retries < 1 {
		retries = 1
	}

	c.setClock(c.cfg.InitClock)
	time.Sleep(c.cfg.RetryDelay)

	// The card powers up in SD mode after at least 74 clocks with CMD and
	// DAT held high. Repeat until it acknowledges CMD0.
	var err error
	idle := false
	for i := 0; i < retries; i++ {
		c.phy.initInitialize.Store(1)
		time.Sleep(c.cfg.RetryDelay)
		if err = c.goIdleState(); err == nil {
			idle = true
			break
		}
		time.Sleep(c.cfg.RetryDelay)
	}
	if !idle {
		c.logerr("no response to go idle")
		return fmt.Errorf("go idle: %w", err)
	}

	// Cards older than spec 2.00 do not answer CMD8 and are not supported,
	// they cannot negotiate the SDHC capacity class below.
	if err := c.sendIfCond(); err != nil {
		return fmt.Errorf("send if cond: %w", err)
	}

	c.setClock(c.cfg.OpClock)
	time.Sleep(c.cfg.RetryDelay)

	// Negotiate voltage and capacity class until the card leaves the busy
	// state. The CMD55 result is deliberately not checked, some cards nak
	// the first one after the clock switch.
	powered := false
	for i := 0; i < retries; i++ {
		c.appCmd(0)
		if err := c.appSendOpCond(true); err == nil {
			if c.shortResponse()&0x80000000 != 0 {
				powered = true
				break
			}
		}
		time.Sleep(c.cfg.RetryDelay)
	}
	if !powered {
		c.logerr("card stuck busy during op cond negotiation")
		return fmt.Errorf("send op cond: %w", ErrNotReady)
	}

	if err := c.allSendCID(); err != nil {
		return fmt.Errorf("all send cid: %w", err)
	}
	c.cid = DecodeCID(c.core.cmdResponse.Load())

	if err := c.sendRelativeAddr(); err != nil {
		return fmt.Errorf("send relative addr: %w", err)
	}
	c.rca = uint16(c.shortResponse() >> 16)

	if err := c.sendCID(c.rca); err != nil {
		return fmt.Errorf("send cid: %w", err)
	}
	c.cid = DecodeCID(c.core.cmdResponse.Load())

	if err := c.sendCSD(c.rca); err != nil {
		return fmt.Errorf("send csd: %w", err)
	}
	c.csd = DecodeCSD(c.core.cmdResponse.Load())

	if err := c.selectCard(c.rca); err != nil {
		return fmt.Errorf("select card: %w", err)
	}

	if err := c.appCmd(c.rca); err != nil {
		return fmt.Errorf("app cmd: %w", err)
	}
	if err := c.appSetBusWidth(); err != nil {
		return fmt.Errorf("set bus width: %w", err)
	}
	c.phy.settings.Store(phySpeed4x)

	if err := c.switchFunc(switchSet, groupAccess, speedHigh); err != nil {
		return fmt.Errorf("switch high speed: %w", err)
	}

	if err := c.readSCR(); err != nil {
		return fmt.Errorf("send scr: %w", err)
	}

	if err := c.setBlocklen(BlockSize); err != nil {
		return fmt.Errorf("set blocklen: %w", err)
	}

	c.ready = true
	c.info("card initialized",
		slog.String("product", c.cid.ProductName),
		slog.String("vendor", c.cid.Vendor()),
		slog.Uint64("rca", uint64(c.rca)),
		slog.Int64("capacity", c.csd.Capacity))
	return nil
}

// readSCR captures the card configuration register through the DMA writer
// and decodes it. The SCR arrives on the data lines like read data.
func (c *Card) readSCR() error {
	buf := cpu.MakePaddedSlice[byte](8)
	var pin cpu.Pinner
	cpu.PinSlice(&pin, buf)
	defer pin.Unpin()

	c.block2mem.enable.Store(0)
	c.block2mem.base.Store(uint64(cpu.PhysicalAddressSlice(buf)))
	c.block2mem.length.Store(8)
	c.block2mem.enable.Store(1)

	if err := c.appCmd(c.rca); err != nil {
		return err
	}
	if err := c.appSendSCR(); err != nil {
		return err
	}
	c.waitDMA(&c.block2mem)
	if !c.cfg.CoherentDMA {
		cpu.InvalidateSlice(buf)
	}
	c.scr = DecodeSCR([8]byte(buf))
	return nil
}

// CardStatus queries the card's 32 bit status register.
func (c *Card) CardStatus() (uint32, error) {
	if !c.ready {
		return 0, ErrNotInitialized
	}
	return c.sendStatus(c.rca)
}

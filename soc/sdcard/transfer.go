package sdcard

import (
	"fmt"
	"runtime"

	"github.com/uk0/litex/debug"
	"github.com/uk0/litex/soc/cpu"
)

// waitDMA blocks until the engine has moved all programmed bytes.
func (c *Card) waitDMA(dma *dmaRegs) {
	for dma.done.Load()&1 == 0 {
		runtime.Gosched()
	}
}

// startDMA programs one engine for a transfer of length bytes at buf.
func (c *Card) startDMA(dma *dmaRegs, buf []byte, length uint32) {
	dma.enable.Store(0)
	dma.base.Store(uint64(cpu.PhysicalAddressSlice(buf)))
	dma.length.Store(length)
	dma.enable.Store(1)
}

// ReadBlocks reads len(p)/512 blocks starting at lba into p. The length of p
// must be a multiple of 512. Reads bypass the CPU cache, p is invalidated
// after the transfer unless the DMA engines are coherent. Unaligned buffers
// are read through an aligned scratch buffer.
func (c *Card) ReadBlocks(p []byte, lba uint32) error {
	debug.Assert(len(p)%BlockSize == 0, "read length not a multiple of the block size")
	if !c.ready {
		return ErrNotInitialized
	}
	if len(p) == 0 {
		return nil
	}

	buf := p
	bounced := false
	if !c.cfg.CoherentDMA && !cpu.IsPadded(p) {
		buf = cpu.MakePaddedSlice[byte](len(p))
		bounced = true
	}

	var pin cpu.Pinner
	cpu.PinSlice(&pin, buf)
	defer pin.Unpin()

	count := uint32(len(p) / BlockSize)
	block := lba
	done := uint32(0)
	for count > 0 {
		nblocks := uint32(1)
		if c.cfg.MultiBlockRead {
			nblocks = count
		}
		c.startDMA(&c.block2mem, buf[done*BlockSize:], nblocks*BlockSize)

		if c.cfg.SetBlockCount && nblocks > 1 {
			if err := c.setBlockCount(nblocks); err != nil {
				return fmt.Errorf("set block count: %w", err)
			}
		}
		var err error
		if nblocks > 1 {
			err = c.readMultipleBlock(block, nblocks)
		} else {
			err = c.readSingleBlock(block)
		}
		if err != nil {
			return fmt.Errorf("read block %d: %w", block, err)
		}

		c.waitDMA(&c.block2mem)

		if nblocks > 1 && !c.cfg.SetBlockCount {
			if err := c.stopTransmission(); err != nil && !c.cfg.RetryForeverOnCommandError {
				return fmt.Errorf("stop transmission: %w", err)
			}
		}

		block += nblocks
		done += nblocks
		count -= nblocks
	}

	if !c.cfg.CoherentDMA {
		cpu.InvalidateSlice(buf)
	}
	if bounced {
		copy(p, buf)
	}
	return nil
}

// WriteBlocks writes len(p)/512 blocks from p starting at lba. The length of
// p must be a multiple of 512. The buffer is written back to RAM before the
// transfer unless the DMA engines are coherent. Unaligned buffers are copied
// to an aligned scratch buffer first.
func (c *Card) WriteBlocks(p []byte, lba uint32) error {
	debug.Assert(len(p)%BlockSize == 0, "write length not a multiple of the block size")
	if !c.ready {
		return ErrNotInitialized
	}
	if len(p) == 0 {
		return nil
	}

	buf := p
	if !c.cfg.CoherentDMA {
		buf = cpu.PaddedSlice(p)
		cpu.WritebackSlice(buf)
	}

	var pin cpu.Pinner
	cpu.PinSlice(&pin, buf)
	defer pin.Unpin()

	count := uint32(len(p) / BlockSize)
	block := lba
	done := uint32(0)
	for count > 0 {
		nblocks := uint32(1)
		if c.cfg.MultiBlockWrite {
			nblocks = count
		}
		c.startDMA(&c.mem2block, buf[done*BlockSize:], nblocks*BlockSize)

		if c.cfg.SetBlockCount && nblocks > 1 {
			if err := c.setBlockCount(nblocks); err != nil {
				return fmt.Errorf("set block count: %w", err)
			}
		}
		var err error
		if nblocks > 1 {
			err = c.writeMultipleBlock(block, nblocks)
		} else {
			err = c.writeSingleBlock(block)
		}
		if err != nil {
			return fmt.Errorf("write block %d: %w", block, err)
		}

		// The card signals the end of a multiple block write on the
		// data lines, stop transmission before draining the DMA reader.
		if nblocks > 1 && !c.cfg.SetBlockCount {
			if err := c.stopTransmission(); err != nil && !c.cfg.RetryForeverOnCommandError {
				return fmt.Errorf("stop transmission: %w", err)
			}
		}

		c.waitDMA(&c.mem2block)

		block += nblocks
		done += nblocks
		count -= nblocks
	}
	return nil
}

package sdcard

import (
	"log/slog"
	"time"
)

// err maps the completion flags of an event register to a driver error. The
// timeout flag wins over the CRC flag when both are set.
func (ev event) err() error {
	if ev&eventTimeout != 0 {
		return ErrTimeout
	}
	if ev&eventCRC != 0 {
		return ErrCRC
	}
	return nil
}

// cmd issues a single command on the SD bus and waits for the command event.
// The 128 bit response register is valid afterwards, most significant word
// first.
func (c *Card) cmd(op opcode, arg uint32, rsp response, xfer transfer) error {
	if c.logenabled(LevelTrace) {
		c.trace("cmd",
			slog.Int("cmd", int(op)),
			slog.Uint64("arg", uint64(arg)))
	}
	c.core.cmdArgument.Store(arg)
	c.core.cmdCommand.Store(uint32(op)<<8 | uint32(xfer)<<5 | uint32(rsp))
	c.core.cmdSend.Store(1)
	return c.waitCmdDone()
}

// waitCmdDone polls the command event register until the done flag is set.
// The register is read before each delay so that an already completed command
// costs a single poll.
func (c *Card) waitCmdDone() error {
	var ev event
	for {
		ev = c.core.cmdEvent.Load()
		time.Sleep(c.cfg.PollInterval)
		if ev&eventDone != 0 {
			break
		}
	}
	return ev.err()
}

// waitDataDone polls the data event register until the done flag is set. Data
// completion usually lags command completion, the delay therefore sits after
// the check.
func (c *Card) waitDataDone() error {
	var ev event
	for {
		ev = c.core.dataEvent.Load()
		if ev&eventDone != 0 {
			break
		}
		time.Sleep(c.cfg.PollInterval)
	}
	return ev.err()
}

// retryCmd reissues a failed transfer command. Some cards answer the first
// command after a clock switch with a CRC error and recover on the next
// attempt. With RetryForeverOnCommandError the loop never gives up, matching
// the reference firmware. Otherwise the last error is returned after
// TransferRetries attempts.
func (c *Card) retryCmd(op opcode, arg uint32, rsp response, xfer transfer) error {
	if c.cfg.RetryForeverOnCommandError {
		for {
			if err := c.cmd(op, arg, rsp, xfer); err == nil {
				return nil
			}
		}
	}
	retries := c.cfg.TransferRetries
	if retries < 1 {
		retries = 1
	}
	var err error
	for i := 0; i < retries; i++ {
		if err = c.cmd(op, arg, rsp, xfer); err == nil {
			return nil
		}
	}
	return err
}

// shortResponse returns the 32 bit response of the last short response
// command.
func (c *Card) shortResponse() uint32 {
	return c.core.cmdResponse.Load()[3]
}

func (c *Card) goIdleState() error {
	return c.cmd(cmdGoIdleState, 0, responseNone, transferNone)
}

// sendIfCond announces 2.7-3.6V operation and checks that the card echoes
// the 0xaa pattern. Cards that do not answer predate the 2.00 spec.
func (c *Card) sendIfCond() error {
	return c.cmd(cmdSendExtCSD, 0x1aa, responseShort, transferNone)
}

func (c *Card) appCmd(rca uint16) error {
	return c.cmd(cmdAppCmd, uint32(rca)<<16, responseShort, transferNone)
}

// appSendOpCond negotiates the operating voltage window. With hcs the host
// additionally announces SDHC support. The card reports readiness in bit 31
// of the response.
func (c *Card) appSendOpCond(hcs bool) error {
	arg := uint32(0x10ff8000)
	if hcs {
		arg |= 0x60000000
	}
	return c.cmd(acmdSendOpCond, arg, responseShortBusy, transferNone)
}

func (c *Card) allSendCID() error {
	return c.cmd(cmdAllSendCID, 0, responseLong, transferNone)
}

func (c *Card) sendRelativeAddr() error {
	return c.cmd(cmdSendRelativeAddr, 0, responseShort, transferNone)
}

func (c *Card) sendCID(rca uint16) error {
	return c.cmd(cmdSendCID, uint32(rca)<<16, responseLong, transferNone)
}

func (c *Card) sendCSD(rca uint16) error {
	return c.cmd(cmdSendCSD, uint32(rca)<<16, responseLong, transferNone)
}

func (c *Card) selectCard(rca uint16) error {
	return c.cmd(cmdSelectCard, uint32(rca)<<16, responseShortBusy, transferNone)
}

func (c *Card) appSetBusWidth() error {
	return c.cmd(acmdSetBusWidth, 2, responseShort, transferNone)
}

// switchFunc issues CMD6 to query or set one function group. The 64 byte
// status block it returns is transferred like read data and must be collected
// or discarded by the caller's DMA setup.
func (c *Card) switchFunc(mode, group, value uint32) error {
	arg := mode<<31 | 0xffffff
	arg &^= 0xf << (group * 4)
	arg |= value << (group * 4)
	c.core.blockLength.Store(64)
	c.core.blockCount.Store(1)
	if err := c.retryCmd(cmdSwitchFunc, arg, responseShort, transferRead); err != nil {
		return err
	}
	return c.waitDataDone()
}

// appSendSCR requests the 8 byte card configuration register as a data
// transfer.
func (c *Card) appSendSCR() error {
	c.core.blockLength.Store(8)
	c.core.blockCount.Store(1)
	if err := c.retryCmd(acmdSendSCR, 0, responseShort, transferRead); err != nil {
		return err
	}
	return c.waitDataDone()
}

func (c *Card) setBlocklen(blocklen uint32) error {
	return c.cmd(cmdSetBlocklen, blocklen, responseShort, transferNone)
}

func (c *Card) readSingleBlock(addr uint32) error {
	c.core.blockLength.Store(BlockSize)
	c.core.blockCount.Store(1)
	if err := c.retryCmd(cmdReadSingleBlock, addr, responseShort, transferRead); err != nil {
		return err
	}
	return c.waitDataDone()
}

func (c *Card) readMultipleBlock(addr, blockcnt uint32) error {
	c.core.blockLength.Store(BlockSize)
	c.core.blockCount.Store(blockcnt)
	if err := c.retryCmd(cmdReadMultipleBlock, addr, responseShort, transferRead); err != nil {
		return err
	}
	return c.waitDataDone()
}

// writeSingleBlock starts a single block write. The data completion is
// signalled through the mem2block DMA engine, there is no data event to wait
// for here.
func (c *Card) writeSingleBlock(addr uint32) error {
	c.core.blockLength.Store(BlockSize)
	c.core.blockCount.Store(1)
	return c.retryCmd(cmdWriteSingleBlock, addr, responseShort, transferWrite)
}

func (c *Card) writeMultipleBlock(addr, blockcnt uint32) error {
	c.core.blockLength.Store(BlockSize)
	c.core.blockCount.Store(blockcnt)
	return c.retryCmd(cmdWriteMultipleBlock, addr, responseShort, transferWrite)
}

func (c *Card) stopTransmission() error {
	return c.cmd(cmdStopTransmission, 0, responseShortBusy, transferNone)
}

// sendStatus queries the 32 bit card status register.
func (c *Card) sendStatus(rca uint16) (uint32, error) {
	if err := c.cmd(cmdSendStatus, uint32(rca)<<16, responseShort, transferNone); err != nil {
		return 0, err
	}
	return c.shortResponse(), nil
}

func (c *Card) setBlockCount(blockcnt uint32) error {
	return c.cmd(cmdSetBlockCount, blockcnt, responseShort, transferNone)
}

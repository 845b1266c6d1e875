package sdcard

import (
	"github.com/uk0/litex/soc"
	"github.com/uk0/litex/soc/csr"
)

// Register offsets within the controller's CSR windows, as generated for the
// reference bitstream. The simulated SoC implements the same layout.
const (
	CoreCmdArgument = 0x00
	CoreCmdCommand  = 0x04
	CoreCmdSend     = 0x08
	CoreCmdResponse = 0x0c // 128 bit, most significant word first
	CoreCmdEvent    = 0x1c
	CoreDataEvent   = 0x20
	CoreBlockLength = 0x24
	CoreBlockCount  = 0x28

	PhyCardDetect     = 0x00
	PhyClockerDivider = 0x04
	PhyInitInitialize = 0x08
	PhySettings       = 0x0c

	DMABase   = 0x00 // 64 bit, most significant word first
	DMALength = 0x08
	DMAEnable = 0x0c
	DMADone   = 0x10
	DMALoop   = 0x14
	DMAOffset = 0x18
)

// opcode is an SD command index. Application commands share the index space
// and are valid after cmdAppCmd.
type opcode uint32

const (
	cmdGoIdleState        opcode = 0
	cmdAllSendCID         opcode = 2
	cmdSendRelativeAddr   opcode = 3
	cmdSwitchFunc         opcode = 6
	cmdSelectCard         opcode = 7
	cmdSendExtCSD         opcode = 8
	cmdSendCSD            opcode = 9
	cmdSendCID            opcode = 10
	cmdStopTransmission   opcode = 12
	cmdSendStatus         opcode = 13
	cmdSetBlocklen        opcode = 16
	cmdReadSingleBlock    opcode = 17
	cmdReadMultipleBlock  opcode = 18
	cmdSetBlockCount      opcode = 23
	cmdWriteSingleBlock   opcode = 24
	cmdWriteMultipleBlock opcode = 25
	cmdAppCmd             opcode = 55

	acmdSetBusWidth opcode = 6
	acmdSendOpCond  opcode = 41
	acmdSendSCR     opcode = 51
)

// response selects the response kind the controller awaits after a command.
type response uint32

const (
	responseNone response = iota
	responseShort
	responseLong
	responseShortBusy
)

// transfer selects the data direction of a command.
type transfer uint32

const (
	transferNone transfer = iota
	transferRead
	transferWrite
)

// event holds the completion flags of the command and data event registers.
type event uint32

const (
	eventDone    event = 1 << 0
	eventTimeout event = 1 << 2
	eventCRC     event = 1 << 3
)

// phyFlags configures the PHY's bus mode.
type phyFlags uint32

// 4 bit wide data bus, set after the card accepts SET_BUS_WIDTH.
const phySpeed4x phyFlags = 1 << 0

// detectFlags is the state of the card detect switch.
type detectFlags uint32

const slotEmpty detectFlags = 1 << 0

// coreRegs is the command engine of the controller.
type coreRegs struct {
	cmdArgument csr.U32
	cmdCommand  csr.U32
	cmdSend     csr.U32
	cmdResponse csr.U128
	cmdEvent    csr.R32[event]
	dataEvent   csr.R32[event]
	blockLength csr.U32
	blockCount  csr.U32
}

// phyRegs is the physical layer of the controller.
type phyRegs struct {
	cardDetect     csr.R32[detectFlags]
	clockerDivider csr.U32
	initInitialize csr.U32
	settings       csr.R32[phyFlags]
}

// dmaRegs is one of the two DMA engines moving blocks between the card's
// buffer and main RAM.
type dmaRegs struct {
	base   csr.U64
	length csr.U32
	enable csr.U32
	done   csr.U32
	loop   csr.U32
	offset csr.U32
}

func newCoreRegs(bus csr.Bus) coreRegs {
	base := soc.SDCardCoreBase
	return coreRegs{
		cmdArgument: csr.NewU32(bus, base+CoreCmdArgument),
		cmdCommand:  csr.NewU32(bus, base+CoreCmdCommand),
		cmdSend:     csr.NewU32(bus, base+CoreCmdSend),
		cmdResponse: csr.NewU128(bus, base+CoreCmdResponse),
		cmdEvent:    csr.NewR32[event](bus, base+CoreCmdEvent),
		dataEvent:   csr.NewR32[event](bus, base+CoreDataEvent),
		blockLength: csr.NewU32(bus, base+CoreBlockLength),
		blockCount:  csr.NewU32(bus, base+CoreBlockCount),
	}
}

func newPhyRegs(bus csr.Bus) phyRegs {
	base := soc.SDCardPhyBase
	return phyRegs{
		cardDetect:     csr.NewR32[detectFlags](bus, base+PhyCardDetect),
		clockerDivider: csr.NewU32(bus, base+PhyClockerDivider),
		initInitialize: csr.NewU32(bus, base+PhyInitInitialize),
		settings:       csr.NewR32[phyFlags](bus, base+PhySettings),
	}
}

func newDMARegs(bus csr.Bus, base uint32) dmaRegs {
	return dmaRegs{
		base:   csr.NewU64(bus, base+DMABase),
		length: csr.NewU32(bus, base+DMALength),
		enable: csr.NewU32(bus, base+DMAEnable),
		done:   csr.NewU32(bus, base+DMADone),
		loop:   csr.NewU32(bus, base+DMALoop),
		offset: csr.NewU32(bus, base+DMAOffset),
	}
}

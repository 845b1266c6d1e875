// Package sdsim emulates a LiteSDCard controller with one inserted card
// behind the csr.Bus interface. Tests run the driver against the model
// instead of MMIO, scripted event sequences stand in for hardware faults.
//
// The model executes commands synchronously on the send register write. DMA
// transfers move data to and from host memory at the programmed physical
// address, which on the host is the virtual address of the pinned buffer.
package sdsim

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"github.com/sigurn/crc8"

	"github.com/uk0/litex/soc"
	"github.com/uk0/litex/soc/sdcard"
)

var crc7Table = crc8.MakeTable(crc8.Params{
	Poly: 0x12, Init: 0x00, RefIn: false, RefOut: false, XorOut: 0x00,
	Check: 0xea, Name: "CRC-7/SD",
})

// crc7 returns the 7 bit CRC left aligned, as stored in the upper bits of
// the CID and CSD trailer byte.
func crc7(p []byte) uint8 {
	return crc8.Checksum(p, crc7Table)
}

// Cmd records one command as seen by the card.
type Cmd struct {
	Index    uint8
	App      bool
	Arg      uint32
	Transfer uint8
	Response uint8

	// ClockChanges counts the divider writes that preceded the command.
	ClockChanges int
}

// Config describes the simulated card.
type Config struct {
	Capacity int64 // bytes, must be a multiple of 512 KiB
	Absent   bool  // empty slot
	RCA      uint16

	// OpCondPolls is the number of ACMD41 turns the card stays busy
	// before it reports power up.
	OpCondPolls int

	Manufacturer uint8
	OEM          string
	Product      string
	Serial       uint32
}

type dma struct {
	base   uint64
	length uint32
	enable uint32
	done   uint32
	loop   uint32
	offset uint32
}

func (d *dma) write(off, v uint32) {
	switch off {
	case sdcard.DMABase:
		d.base = uint64(v)<<32 | d.base&0xffffffff
	case sdcard.DMABase + 4:
		d.base = d.base&^0xffffffff | uint64(v)
	case sdcard.DMALength:
		d.length = v
	case sdcard.DMAEnable:
		d.enable = v
		if v == 0 {
			d.done = 0
		}
	case sdcard.DMALoop:
		d.loop = v
	case sdcard.DMAOffset:
		d.offset = v
	}
}

func (d *dma) read(off uint32) uint32 {
	switch off {
	case sdcard.DMABase:
		return uint32(d.base >> 32)
	case sdcard.DMABase + 4:
		return uint32(d.base)
	case sdcard.DMALength:
		return d.length
	case sdcard.DMAEnable:
		return d.enable
	case sdcard.DMADone:
		return d.done
	case sdcard.DMALoop:
		return d.loop
	case sdcard.DMAOffset:
		return d.offset
	}
	return 0
}

// Sim is the controller and card model. It implements csr.Bus.
type Sim struct {
	cfg Config

	cmdArgument uint32
	cmdCommand  uint32
	response    [4]uint32
	cmdEvent    uint32
	dataEvent   uint32
	blockLength uint32
	blockCount  uint32

	divider    uint32
	settings   uint32
	initPulses int

	b2m dma
	m2b dma

	state      uint32
	appNext    bool
	opCondLeft int
	cid        [16]byte
	csd        [16]byte
	scr        [8]byte
	sectors    map[uint32]*[512]byte
	declared   uint32

	cmdScript  []uint32
	dataScript []uint32

	trace    []Cmd
	dividers []uint32
	reads    map[uint32]int
}

// New returns a model of the controller with one card built from cfg. Zero
// fields are replaced with a generic 8 GiB card.
func New(cfg Config) *Sim {
	if cfg.Capacity == 0 {
		cfg.Capacity = 8 << 30
	}
	if cfg.RCA == 0 {
		cfg.RCA = 0x1234
	}
	if cfg.Manufacturer == 0 {
		cfg.Manufacturer = 0x03
	}
	if cfg.OEM == "" {
		cfg.OEM = "SD"
	}
	if cfg.Product == "" {
		cfg.Product = "SIM64"
	}
	if cfg.Serial == 0 {
		cfg.Serial = 0x00c0ffee
	}
	s := &Sim{
		cfg:        cfg,
		opCondLeft: cfg.OpCondPolls,
		sectors:    make(map[uint32]*[512]byte),
		reads:      make(map[uint32]int),
	}
	s.buildCID()
	s.buildCSD()
	s.scr = [8]byte{0x02, 0x35, 0x80}
	return s
}

func (s *Sim) buildCID() {
	b := &s.cid
	b[0] = s.cfg.Manufacturer
	copy(b[1:3], s.cfg.OEM)
	copy(b[3:8], s.cfg.Product)
	b[8] = 0x10
	binary.BigEndian.PutUint32(b[9:13], s.cfg.Serial)
	const year, month = 24, 4
	b[13] = year >> 4
	b[14] = (year&0xf)<<4 | month
	b[15] = crc7(b[:15]) | 1
}

func (s *Sim) buildCSD() {
	csize := uint32(s.cfg.Capacity/(512*1024) - 1)
	b := &s.csd
	copy(b[:], []byte{
		0x40, 0x0e, 0x00, 0x32, 0x5b, 0x59, 0x00, 0x00,
		0x00, 0x00, 0x7f, 0x80, 0x0a, 0x40, 0x40,
	})
	b[7] = byte(csize >> 16 & 0x3f)
	b[8] = byte(csize >> 8)
	b[9] = byte(csize)
	b[15] = crc7(b[:15]) | 1
}

// ScriptCmdEvents overrides the values returned by the next reads of the
// command event register, one value per read.
func (s *Sim) ScriptCmdEvents(ev ...uint32) {
	s.cmdScript = append(s.cmdScript, ev...)
}

// ScriptDataEvents overrides the values returned by the next reads of the
// data event register.
func (s *Sim) ScriptDataEvents(ev ...uint32) {
	s.dataScript = append(s.dataScript, ev...)
}

// Commands returns the command trace in issue order.
func (s *Sim) Commands() []Cmd {
	return s.trace
}

// Dividers returns all values written to the PHY clock divider.
func (s *Sim) Dividers() []uint32 {
	return s.dividers
}

// InitPulses returns how often the 80 clock initialization burst was
// triggered.
func (s *Sim) InitPulses() int {
	return s.initPulses
}

// ReadCount returns the number of Read32 calls for the given CSR offset.
func (s *Sim) ReadCount(off uint32) int {
	return s.reads[off]
}

// SetSector fills one sector of the card with up to 512 bytes of data.
func (s *Sim) SetSector(lba uint32, data []byte) {
	sec := new([512]byte)
	copy(sec[:], data)
	s.sectors[lba] = sec
}

// Sector returns a copy of one sector. Unwritten sectors read as zero.
func (s *Sim) Sector(lba uint32) [512]byte {
	if sec, ok := s.sectors[lba]; ok {
		return *sec
	}
	return [512]byte{}
}

func (s *Sim) Read32(off uint32) uint32 {
	s.reads[off]++
	switch {
	case off >= soc.SDCardCoreBase && off < soc.SDCardCoreBase+0x800:
		return s.readCore(off - soc.SDCardCoreBase)
	case off >= soc.SDCardPhyBase && off < soc.SDCardPhyBase+0x800:
		return s.readPhy(off - soc.SDCardPhyBase)
	case off >= soc.SDCardBlock2MemBase && off < soc.SDCardBlock2MemBase+0x800:
		return s.b2m.read(off - soc.SDCardBlock2MemBase)
	case off >= soc.SDCardMem2BlockBase && off < soc.SDCardMem2BlockBase+0x800:
		return s.m2b.read(off - soc.SDCardMem2BlockBase)
	}
	return 0
}

func (s *Sim) Write32(off, v uint32) {
	switch {
	case off >= soc.SDCardCoreBase && off < soc.SDCardCoreBase+0x800:
		s.writeCore(off-soc.SDCardCoreBase, v)
	case off >= soc.SDCardPhyBase && off < soc.SDCardPhyBase+0x800:
		s.writePhy(off-soc.SDCardPhyBase, v)
	case off >= soc.SDCardBlock2MemBase && off < soc.SDCardBlock2MemBase+0x800:
		s.b2m.write(off-soc.SDCardBlock2MemBase, v)
	case off >= soc.SDCardMem2BlockBase && off < soc.SDCardMem2BlockBase+0x800:
		s.m2b.write(off-soc.SDCardMem2BlockBase, v)
	}
}

func (s *Sim) readCore(off uint32) uint32 {
	switch off {
	case sdcard.CoreCmdArgument:
		return s.cmdArgument
	case sdcard.CoreCmdCommand:
		return s.cmdCommand
	case sdcard.CoreCmdEvent:
		if len(s.cmdScript) > 0 {
			v := s.cmdScript[0]
			s.cmdScript = s.cmdScript[1:]
			return v
		}
		return s.cmdEvent
	case sdcard.CoreDataEvent:
		if len(s.dataScript) > 0 {
			v := s.dataScript[0]
			s.dataScript = s.dataScript[1:]
			return v
		}
		return s.dataEvent
	case sdcard.CoreBlockLength:
		return s.blockLength
	case sdcard.CoreBlockCount:
		return s.blockCount
	}
	if off >= sdcard.CoreCmdResponse && off < sdcard.CoreCmdResponse+16 {
		return s.response[(off-sdcard.CoreCmdResponse)/4]
	}
	return 0
}

func (s *Sim) writeCore(off, v uint32) {
	switch off {
	case sdcard.CoreCmdArgument:
		s.cmdArgument = v
	case sdcard.CoreCmdCommand:
		s.cmdCommand = v
	case sdcard.CoreCmdSend:
		s.exec()
	case sdcard.CoreBlockLength:
		s.blockLength = v
	case sdcard.CoreBlockCount:
		s.blockCount = v
	}
}

func (s *Sim) readPhy(off uint32) uint32 {
	switch off {
	case sdcard.PhyCardDetect:
		if s.cfg.Absent {
			return 1
		}
		return 0
	case sdcard.PhyClockerDivider:
		return s.divider
	case sdcard.PhySettings:
		return s.settings
	}
	return 0
}

func (s *Sim) writePhy(off, v uint32) {
	switch off {
	case sdcard.PhyClockerDivider:
		s.divider = v
		s.dividers = append(s.dividers, v)
	case sdcard.PhyInitInitialize:
		s.initPulses++
	case sdcard.PhySettings:
		s.settings = v
	}
}

// r1 builds the card status of an R1 response from the model state.
func (s *Sim) r1() uint32 {
	return s.state<<9 | sdcard.StatusReadyForData
}

func (s *Sim) exec() {
	op := uint8(s.cmdCommand >> 8)
	app := s.appNext
	s.appNext = false

	s.trace = append(s.trace, Cmd{
		Index:        op,
		App:          app,
		Arg:          s.cmdArgument,
		Transfer:     uint8(s.cmdCommand >> 5 & 3),
		Response:     uint8(s.cmdCommand & 3),
		ClockChanges: len(s.dividers),
	})

	if s.cfg.Absent {
		s.cmdEvent = 1 | 4
		return
	}
	s.cmdEvent = 1
	s.response = [4]uint32{}

	if app {
		s.execApp(op)
		return
	}
	switch op {
	case 0:
		s.state = sdcard.StateIdle
	case 2:
		s.state = sdcard.StateIdent
		s.response = words(s.cid[:])
	case 3:
		s.state = sdcard.StateStandby
		s.response[3] = uint32(s.cfg.RCA)<<16 | 0x0500
	case 6:
		s.mustState(sdcard.StateTransfer, op)
		s.response[3] = s.r1()
		s.dataRead(s.switchStatus())
	case 7:
		s.mustRCA(op)
		s.state = sdcard.StateTransfer
		s.response[3] = s.r1()
	case 8:
		s.response[3] = s.cmdArgument & 0xfff
	case 9:
		s.mustRCA(op)
		s.response = words(s.csd[:])
	case 10:
		s.mustRCA(op)
		s.response = words(s.cid[:])
	case 12:
		s.state = sdcard.StateTransfer
		s.response[3] = s.r1()
	case 13:
		s.mustRCA(op)
		s.response[3] = s.r1()
	case 16:
		s.response[3] = s.r1()
	case 17:
		s.readBlocks(s.cmdArgument, 1)
	case 18:
		s.readBlocks(s.cmdArgument, s.blockCount)
	case 23:
		s.declared = s.cmdArgument
		s.response[3] = s.r1()
	case 24:
		s.writeBlocks(s.cmdArgument, 1)
	case 25:
		s.writeBlocks(s.cmdArgument, s.blockCount)
	case 55:
		s.appNext = true
		s.response[3] = s.r1() | sdcard.StatusAppCmd
	default:
		panic(fmt.Sprintf("sdsim: unexpected CMD%d", op))
	}
}

func (s *Sim) execApp(op uint8) {
	switch op {
	case 6:
		s.response[3] = s.r1()
	case 41:
		ocr := uint32(0x00ff8000)
		if s.opCondLeft > 0 {
			s.opCondLeft--
		} else {
			ocr |= 1<<31 | 1<<30
			s.state = sdcard.StateReady
		}
		s.response[3] = ocr
	case 51:
		s.mustState(sdcard.StateTransfer, op)
		s.response[3] = s.r1()
		s.dataRead(s.scr[:])
	default:
		panic(fmt.Sprintf("sdsim: unexpected ACMD%d", op))
	}
}

// mustRCA checks that an addressed command carries the card's RCA. A real
// card ignores commands addressed elsewhere, the host sees a timeout.
func (s *Sim) mustRCA(op uint8) {
	if s.state < sdcard.StateStandby {
		return
	}
	if uint16(s.cmdArgument>>16) != s.cfg.RCA {
		s.cmdEvent = 1 | 4
	}
}

func (s *Sim) mustState(state uint32, op uint8) {
	if s.state != state {
		panic(fmt.Sprintf("sdsim: CMD%d in state %d", op, s.state))
	}
}

// checkDeclared verifies a transfer against a preceding CMD23, if any.
func (s *Sim) checkDeclared(count uint32) {
	if s.declared != 0 && s.declared != count {
		panic(fmt.Sprintf("sdsim: %d blocks after declaring %d", count, s.declared))
	}
	s.declared = 0
}

func (s *Sim) readBlocks(lba, count uint32) {
	s.mustState(sdcard.StateTransfer, 17)
	s.checkDeclared(count)
	s.response[3] = s.r1()
	s.dataEvent = 1
	if s.b2m.enable == 0 {
		return
	}
	if s.blockLength != 512 {
		panic(fmt.Sprintf("sdsim: read block length %d", s.blockLength))
	}
	n := int(s.b2m.length)
	if n != int(count)*512 {
		panic(fmt.Sprintf("sdsim: read dma length %d for %d blocks", n, count))
	}
	dst := hostSlice(s.b2m.base, n)
	clear(dst)
	for i := uint32(0); i < count; i++ {
		if sec, ok := s.sectors[lba+i]; ok {
			copy(dst[i*512:], sec[:])
		}
	}
	s.b2m.done = 1
}

func (s *Sim) writeBlocks(lba, count uint32) {
	s.mustState(sdcard.StateTransfer, 24)
	s.checkDeclared(count)
	s.response[3] = s.r1()
	if s.m2b.enable == 0 {
		panic("sdsim: write without dma reader")
	}
	if s.blockLength != 512 {
		panic(fmt.Sprintf("sdsim: write block length %d", s.blockLength))
	}
	n := int(s.m2b.length)
	if n != int(count)*512 {
		panic(fmt.Sprintf("sdsim: write dma length %d for %d blocks", n, count))
	}
	src := hostSlice(s.m2b.base, n)
	for i := uint32(0); i < count; i++ {
		sec := new([512]byte)
		copy(sec[:], src[i*512:])
		s.sectors[lba+i] = sec
	}
	s.m2b.done = 1
}

// dataRead delivers card data through the DMA writer. With the writer
// disabled the controller drains the data internally, which is how the
// reference firmware discards the CMD6 status block.
func (s *Sim) dataRead(data []byte) {
	s.dataEvent = 1
	if s.b2m.enable == 0 {
		return
	}
	n := int(s.b2m.length)
	if n > len(data) {
		n = len(data)
	}
	copy(hostSlice(s.b2m.base, n), data[:n])
	s.b2m.done = 1
}

// switchStatus builds the 512 bit CMD6 status block. Group 1 supports the
// default and high speed modes, high speed is reported as selected.
func (s *Sim) switchStatus() []byte {
	st := make([]byte, 64)
	st[1] = 0x32
	st[13] = 0x03
	st[16] = 0x01
	return st
}

func words(b []byte) [4]uint32 {
	var r [4]uint32
	for i := range r {
		r[i] = binary.BigEndian.Uint32(b[4*i:])
	}
	return r
}

func hostSlice(base uint64, n int) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(base))), n)
}

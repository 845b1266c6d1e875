// Package block adapts an SD card to the generic block device interfaces
// expected by filesystem implementations.
//
// Device provides byte addressed reads and writes on top of the card's 512
// byte blocks, including partial and unaligned accesses. Partitions reads the
// card's partition table and returns one Volume per entry. Both Device and
// Volume satisfy diskfs' util.File, so the card can be mounted directly with
// its filesystem packages.
package block

import (
	"errors"
	"io"
	"sync"

	"github.com/uk0/litex/soc/cpu"
	"github.com/uk0/litex/soc/sdcard"
)

// SectorSize is the access unit of the underlying card.
const SectorSize = sdcard.BlockSize

var ErrSeekOutOfRange = errors.New("seek out of range")

// Device makes a Card usable by multiple goroutines. The whole register
// sequence of one read or write is a single critical section, interleaving
// commands of two transfers would corrupt the card's state.
//
// The card is initialized lazily on first access and stays initialized. A
// failed initialization is reported by the access and retried on the next
// one.
type Device struct {
	mtx    sync.Mutex
	card   *sdcard.Card
	seek   int64
	bounce []byte // one sector, for accesses below sector granularity
}

// NewDevice returns a Device on top of card. The card is not touched until
// the first access.
func NewDevice(card *sdcard.Card) *Device {
	return &Device{
		card:   card,
		bounce: cpu.MakePaddedSlice[byte](SectorSize),
	}
}

// Card returns the underlying card driver. It must not be used while another
// goroutine accesses the Device.
func (d *Device) Card() *sdcard.Card {
	return d.card
}

// Ready reports whether the card is initialized.
func (d *Device) Ready() bool {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	return d.card.Ready()
}

// Init initializes the card if it isn't already. It is called implicitly by
// all accesses.
func (d *Device) Init() error {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	return d.ensureInit()
}

func (d *Device) ensureInit() error {
	if d.card.Ready() {
		return nil
	}
	return d.card.Init()
}

// Size returns the card's capacity in bytes, or zero if the card can't be
// initialized.
func (d *Device) Size() int64 {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	if err := d.ensureInit(); err != nil {
		return 0
	}
	return d.card.Capacity()
}

func (d *Device) ReadAt(p []byte, off int64) (n int, err error) {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	return d.readAt(p, off)
}

func (d *Device) readAt(p []byte, off int64) (n int, err error) {
	if err := d.ensureInit(); err != nil {
		return 0, err
	}
	if off < 0 {
		return 0, ErrSeekOutOfRange
	}
	size := d.card.Capacity()
	if off >= size {
		return 0, io.EOF
	}
	if left := size - off; int64(len(p)) > left {
		p = p[:left]
		err = io.EOF
	}

	lba := uint32(off / SectorSize)
	if frag := int(off % SectorSize); frag != 0 {
		if rerr := d.card.ReadBlocks(d.bounce, lba); rerr != nil {
			return n, rerr
		}
		nn := copy(p, d.bounce[frag:])
		n += nn
		p = p[nn:]
		lba++
	}
	if whole := len(p) &^ (SectorSize - 1); whole > 0 {
		if rerr := d.card.ReadBlocks(p[:whole], lba); rerr != nil {
			return n, rerr
		}
		n += whole
		p = p[whole:]
		lba += uint32(whole / SectorSize)
	}
	if len(p) > 0 {
		if rerr := d.card.ReadBlocks(d.bounce, lba); rerr != nil {
			return n, rerr
		}
		n += copy(p, d.bounce)
	}
	return n, err
}

func (d *Device) WriteAt(p []byte, off int64) (n int, err error) {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	return d.writeAt(p, off)
}

func (d *Device) writeAt(p []byte, off int64) (n int, err error) {
	if err := d.ensureInit(); err != nil {
		return 0, err
	}
	if off < 0 {
		return 0, ErrSeekOutOfRange
	}
	size := d.card.Capacity()
	if off >= size {
		return 0, io.ErrShortWrite
	}
	if left := size - off; int64(len(p)) > left {
		p = p[:left]
		err = io.ErrShortWrite
	}

	lba := uint32(off / SectorSize)
	if frag := int(off % SectorSize); frag != 0 {
		// Read, modify, write the head sector.
		if werr := d.card.ReadBlocks(d.bounce, lba); werr != nil {
			return n, werr
		}
		nn := copy(d.bounce[frag:], p)
		if werr := d.card.WriteBlocks(d.bounce, lba); werr != nil {
			return n, werr
		}
		n += nn
		p = p[nn:]
		lba++
	}
	if whole := len(p) &^ (SectorSize - 1); whole > 0 {
		if werr := d.card.WriteBlocks(p[:whole], lba); werr != nil {
			return n, werr
		}
		n += whole
		p = p[whole:]
		lba += uint32(whole / SectorSize)
	}
	if len(p) > 0 {
		if werr := d.card.ReadBlocks(d.bounce, lba); werr != nil {
			return n, werr
		}
		nn := copy(d.bounce, p)
		if werr := d.card.WriteBlocks(d.bounce, lba); werr != nil {
			return n, werr
		}
		n += nn
	}
	return n, err
}

// Read and Write access the card at the offset maintained by Seek, e.g. for
// streaming a raw image onto the card with io.Copy.

func (d *Device) Read(p []byte) (n int, err error) {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	n, err = d.readAt(p, d.seek)
	d.seek += int64(n)
	return
}

func (d *Device) Write(p []byte) (n int, err error) {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	n, err = d.writeAt(p, d.seek)
	d.seek += int64(n)
	return
}

func (d *Device) Seek(offset int64, whence int) (newoffset int64, err error) {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	if err := d.ensureInit(); err != nil {
		return d.seek, err
	}
	switch whence {
	case io.SeekStart:
		// newoffset = 0
	case io.SeekCurrent:
		newoffset = d.seek
	case io.SeekEnd:
		newoffset = d.card.Capacity()
	}
	newoffset += offset
	if newoffset < 0 || newoffset > d.card.Capacity() {
		return d.seek, ErrSeekOutOfRange
	}
	d.seek = newoffset
	return newoffset, nil
}

package block

import (
	"fmt"
	"io"
	"sync"

	"github.com/diskfs/go-diskfs/partition"
)

// Volume is a window into one partition of a Device. It satisfies diskfs'
// util.File, bounded to the partition, so it can be handed to the filesystem
// packages as if it were a whole disk.
//
// Volume keeps its own seek offset, several volumes of one Device can be
// used concurrently.
type Volume struct {
	mtx   sync.Mutex
	dev   *Device
	index int
	start int64
	size  int64
	seek  int64
}

// Partitions reads the card's partition table. It returns one Volume per
// occupied entry. A volume's Index is the entry's position in the table,
// counted from one, which matches the partition numbering of other tools.
func (d *Device) Partitions() ([]*Volume, error) {
	table, err := partition.Read(d, SectorSize, SectorSize)
	if err != nil {
		return nil, fmt.Errorf("read partition table: %w", err)
	}
	var vols []*Volume
	for i, p := range table.GetPartitions() {
		if p.GetStart() == 0 || p.GetSize() == 0 {
			continue // unoccupied entry
		}
		vols = append(vols, &Volume{
			dev:   d,
			index: i + 1,
			start: p.GetStart(),
			size:  p.GetSize(),
		})
	}
	return vols, nil
}

// Index returns the volume's one-based position in the partition table.
func (v *Volume) Index() int {
	return v.index
}

// Start returns the volume's offset on the card in bytes.
func (v *Volume) Start() int64 {
	return v.start
}

// Size returns the volume's size in bytes.
func (v *Volume) Size() int64 {
	return v.size
}

func (v *Volume) ReadAt(p []byte, off int64) (n int, err error) {
	if off < 0 {
		return 0, ErrSeekOutOfRange
	}
	if off >= v.size {
		return 0, io.EOF
	}
	short := false
	if left := v.size - off; int64(len(p)) > left {
		p = p[:left]
		short = true
	}
	n, err = v.dev.ReadAt(p, v.start+off)
	if err == nil && short {
		err = io.EOF
	}
	return n, err
}

func (v *Volume) WriteAt(p []byte, off int64) (n int, err error) {
	if off < 0 {
		return 0, ErrSeekOutOfRange
	}
	if off >= v.size {
		return 0, io.ErrShortWrite
	}
	short := false
	if left := v.size - off; int64(len(p)) > left {
		p = p[:left]
		short = true
	}
	n, err = v.dev.WriteAt(p, v.start+off)
	if err == nil && short {
		err = io.ErrShortWrite
	}
	return n, err
}

func (v *Volume) Read(p []byte) (n int, err error) {
	v.mtx.Lock()
	defer v.mtx.Unlock()
	n, err = v.ReadAt(p, v.seek)
	v.seek += int64(n)
	return
}

func (v *Volume) Write(p []byte) (n int, err error) {
	v.mtx.Lock()
	defer v.mtx.Unlock()
	n, err = v.WriteAt(p, v.seek)
	v.seek += int64(n)
	return
}

func (v *Volume) Seek(offset int64, whence int) (newoffset int64, err error) {
	v.mtx.Lock()
	defer v.mtx.Unlock()

	switch whence {
	case io.SeekStart:
		// newoffset = 0
	case io.SeekCurrent:
		newoffset = v.seek
	case io.SeekEnd:
		newoffset = v.size
	}
	newoffset += offset
	if newoffset < 0 || newoffset > v.size {
		return v.seek, ErrSeekOutOfRange
	}
	v.seek = newoffset
	return newoffset, nil
}

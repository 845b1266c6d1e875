package sdcard

import (
	_ "embed"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/sigurn/crc8"
	"gopkg.in/yaml.v2"
)

// The CRC of the CID and CSD registers is the 7 bit CRC of the SD spec, left
// aligned into the upper bits of the register's last byte with the stop bit
// below it.
var crc7Table = crc8.MakeTable(crc8.Params{
	Poly: 0x12, Init: 0x00, RefIn: false, RefOut: false, XorOut: 0x00,
	Check: 0xea, Name: "CRC-7/SD",
})

func crc7(p []byte) uint8 {
	return crc8.Checksum(p, crc7Table)
}

//go:embed vendors.yaml
var vendorsYAML []byte

var vendors = func() map[int]string {
	var m map[int]string
	if err := yaml.Unmarshal(vendorsYAML, &m); err != nil {
		panic("sdcard: vendors.yaml: " + err.Error())
	}
	return m
}()

// words16 flattens a response register into the card's register byte order,
// most significant byte first.
func words16(r [4]uint32) [16]byte {
	var b [16]byte
	for i, w := range r {
		binary.BigEndian.PutUint32(b[4*i:], w)
	}
	return b
}

// CID is the decoded card identification register.
type CID struct {
	ManufacturerID uint8
	OEMID          string
	ProductName    string
	Revision       uint8 // binary coded decimal, major.minor
	SerialNumber   uint32
	Month          time.Month
	Year           int
	CRCValid       bool
}

// DecodeCID decodes a long response holding the CID register.
func DecodeCID(r [4]uint32) CID {
	b := words16(r)
	return CID{
		ManufacturerID: uint8(r[0] >> 24),
		OEMID:          string(b[1:3]),
		ProductName:    string(b[3:8]),
		Revision:       uint8(r[2] >> 24),
		SerialNumber:   r[2]<<8 | r[3]>>24,
		Month:          time.Month(r[3] >> 8 & 0xf),
		Year:           2000 + int(r[3]>>12&0xff),
		CRCValid:       crc7(b[:15])|1 == b[15],
	}
}

// Vendor returns the name of the card's manufacturer, or the raw id if it is
// not a registered one.
func (c CID) Vendor() string {
	if v, ok := vendors[int(c.ManufacturerID)]; ok {
		return v
	}
	return fmt.Sprintf("unknown (0x%02x)", c.ManufacturerID)
}

// RevisionString formats the product revision as major.minor.
func (c CID) RevisionString() string {
	return fmt.Sprintf("%d.%d", c.Revision>>4, c.Revision&0xf)
}

func (c CID) String() string {
	return fmt.Sprintf("%s %s rev %s serial %08x %d-%02d",
		c.Vendor(), c.ProductName, c.RevisionString(), c.SerialNumber,
		c.Year, c.Month)
}

// CSD is the decoded card specific data register. Capacity is precomputed
// from the version specific size fields.
type CSD struct {
	Structure    uint8
	TranSpeed    uint8
	ReadBlockLen uint32 // bytes
	Capacity     int64  // bytes
	CRCValid     bool
}

// DecodeCSD decodes a long response holding the CSD register. Version 1.0
// and 2.0 structures are understood, the capacity formulas differ.
func DecodeCSD(r [4]uint32) CSD {
	b := words16(r)
	csd := CSD{
		Structure:    uint8(r[0] >> 30),
		TranSpeed:    uint8(r[0]),
		ReadBlockLen: 1 << (r[1] >> 16 & 0xf),
		CRCValid:     crc7(b[:15])|1 == b[15],
	}
	if csd.Structure == 0 {
		csize := int64(r[1]&0x3ff)<<2 | int64(r[2]>>30)
		csizeMult := int64(r[2] >> 15 & 0x7)
		csd.Capacity = (csize + 1) << (csizeMult + 2) * int64(csd.ReadBlockLen)
	} else {
		csize := int64(r[1]&0xff)<<16 | int64(r[2]>>16)
		csd.Capacity = (csize + 1) * 512 * 1024
	}
	return csd
}

// tranSpeedValue holds the time value field of TRAN_SPEED, scaled by 10.
var tranSpeedValue = [16]uint32{
	0, 10, 12, 13, 15, 20, 25, 30, 35, 40, 45, 50, 55, 60, 70, 80,
}

// TransferRate returns the card's maximum transfer rate in bit/s. A 25 MHz
// default speed card reports 25 Mbit/s here.
func (c CSD) TransferRate() uint32 {
	unit := uint32(10_000)
	for i := uint8(0); i < c.TranSpeed&0x7; i++ {
		unit *= 10
	}
	return unit * tranSpeedValue[c.TranSpeed>>3&0xf]
}

func (c CSD) String() string {
	return fmt.Sprintf("csd v%d %d bytes %d bit/s",
		c.Structure+1, c.Capacity, c.TransferRate())
}

// SCR is the decoded card configuration register.
type SCR struct {
	Structure uint8
	Spec      uint8
	Spec3     bool
	Spec4     bool
	SpecX     uint8
	BusWidths uint8
}

// DecodeSCR decodes the 8 byte card configuration register as read from the
// data lines.
func DecodeSCR(b [8]byte) SCR {
	return SCR{
		Structure: b[0] >> 4,
		Spec:      b[0] & 0xf,
		Spec3:     b[2]&0x80 != 0,
		Spec4:     b[2]&0x04 != 0,
		SpecX:     (b[2]&0x3)<<2 | b[3]>>6,
		BusWidths: b[1] & 0xf,
	}
}

// Version returns the physical layer spec version the card implements.
func (s SCR) Version() string {
	switch {
	case s.SpecX > 0:
		return fmt.Sprintf("%d.x", s.SpecX+4)
	case s.Spec4:
		return "4.x"
	case s.Spec3:
		return "3.x"
	case s.Spec == 2:
		return "2.00"
	case s.Spec == 1:
		return "1.10"
	}
	return "1.0"
}

// SupportsBusWidth4 reports whether the card supports the 4 bit bus used
// after initialization.
func (s SCR) SupportsBusWidth4() bool {
	return s.BusWidths&0x4 != 0
}

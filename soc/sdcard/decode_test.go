package sdcard_test

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/uk0/litex/soc/sdcard"
)

// refCRC7 is the shift register formulation of the SD CRC, used to cross
// check the table driven implementation of the driver.
func refCRC7(p []byte) byte {
	crc := byte(0)
	for _, d := range p {
		for i := 0; i < 8; i++ {
			crc <<= 1
			if (d&0x80)^(crc&0x80) != 0 {
				crc ^= 0x09
			}
			d <<= 1
		}
	}
	return crc & 0x7f
}

func respWords(b [16]byte) [4]uint32 {
	var r [4]uint32
	for i := range r {
		r[i] = binary.BigEndian.Uint32(b[4*i:])
	}
	return r
}

func sealed(b [16]byte) [16]byte {
	b[15] = refCRC7(b[:15])<<1 | 1
	return b
}

func TestDecodeCID(t *testing.T) {
	assert := assert.New(t)

	raw := sealed([16]byte{
		0x03, 'S', 'D', 'S', 'C', '6', '4', 'G',
		0x21, 0x00, 0xbe, 0xef, 0x42, 0x01, 0x47,
	})
	cid := sdcard.DecodeCID(respWords(raw))

	assert.Equal(uint8(0x03), cid.ManufacturerID)
	assert.Equal("SD", cid.OEMID)
	assert.Equal("SC64G", cid.ProductName)
	assert.Equal("2.1", cid.RevisionString())
	assert.Equal(uint32(0x00beef42), cid.SerialNumber)
	assert.Equal(2020, cid.Year)
	assert.Equal(time.July, cid.Month)
	assert.Equal("SanDisk", cid.Vendor())
	assert.True(cid.CRCValid)

	raw[6] ^= 0x10 // corrupt one product name bit
	assert.False(sdcard.DecodeCID(respWords(raw)).CRCValid)
}

func TestDecodeCIDUnknownVendor(t *testing.T) {
	raw := sealed([16]byte{0xee, 'X', 'X', 'A', 'B', 'C', 'D', 'E'})
	cid := sdcard.DecodeCID(respWords(raw))
	assert.Equal(t, "unknown (0xee)", cid.Vendor())
}

func TestDecodeCSDv2(t *testing.T) {
	assert := assert.New(t)

	// 32 GiB SDHC, C_SIZE 0xffff.
	raw := sealed([16]byte{
		0x40, 0x0e, 0x00, 0x32, 0x5b, 0x59, 0x00, 0x00,
		0xff, 0xff, 0x7f, 0x80, 0x0a, 0x40, 0x40,
	})
	csd := sdcard.DecodeCSD(respWords(raw))

	assert.Equal(uint8(1), csd.Structure)
	assert.Equal(uint8(0x32), csd.TranSpeed)
	assert.Equal(uint32(25_000_000), csd.TransferRate())
	assert.Equal(uint32(512), csd.ReadBlockLen)
	assert.Equal(int64(32)<<30, csd.Capacity)
	assert.True(csd.CRCValid)
}

func TestDecodeCSDv1(t *testing.T) {
	assert := assert.New(t)

	// 1 GiB standard capacity card with 1024 byte native blocks:
	// C_SIZE 0xfff, C_SIZE_MULT 6, READ_BL_LEN 10.
	raw := sealed([16]byte{
		0x00, 0x26, 0x00, 0x32, 0x5b, 0x5a, 0x83, 0xff,
		0xf5, 0xd7, 0x7f, 0x80, 0x0a, 0x40, 0x00,
	})
	csd := sdcard.DecodeCSD(respWords(raw))

	assert.Equal(uint8(0), csd.Structure)
	assert.Equal(uint32(1024), csd.ReadBlockLen)
	assert.Equal(int64(1)<<30, csd.Capacity)
	assert.True(csd.CRCValid)
}

func TestTransferRate(t *testing.T) {
	tests := []struct {
		tranSpeed uint8
		rate      uint32
	}{
		{0x32, 25_000_000},
		{0x5a, 50_000_000},
		{0x0b, 100_000_000},
		{0x2b, 200_000_000},
	}
	for _, tt := range tests {
		csd := sdcard.CSD{TranSpeed: tt.tranSpeed}
		assert.Equal(t, tt.rate, csd.TransferRate(), "tran_speed %#x", tt.tranSpeed)
	}
}

func TestDecodeSCR(t *testing.T) {
	assert := assert.New(t)

	scr := sdcard.DecodeSCR([8]byte{0x02, 0x35, 0x80})
	assert.Equal("3.x", scr.Version())
	assert.True(scr.SupportsBusWidth4())

	scr = sdcard.DecodeSCR([8]byte{0x02, 0x35, 0x84, 0x40})
	assert.Equal("5.x", scr.Version())

	scr = sdcard.DecodeSCR([8]byte{0x02, 0x21, 0x00, 0x00})
	assert.Equal("2.00", scr.Version())
	assert.False(scr.SupportsBusWidth4())

	scr = sdcard.DecodeSCR([8]byte{0x01, 0x15, 0x00, 0x00})
	assert.Equal("1.10", scr.Version())
}

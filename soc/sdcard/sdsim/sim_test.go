package sdsim_test

import (
	"bytes"
	"testing"

	"github.com/uk0/litex/soc"
	"github.com/uk0/litex/soc/sdcard"
	"github.com/uk0/litex/soc/sdcard/sdsim"
	litextesting "github.com/uk0/litex/testing"
)

func TestMain(m *testing.M) { litextesting.TestMain(m) }

// TestCardRegisters runs the model's generated CID and CSD through the
// driver's decoders.
func TestCardRegisters(t *testing.T) {
	sim := sdsim.New(sdsim.Config{
		Capacity:     4 << 30,
		Manufacturer: 0x1b,
		OEM:          "SM",
		Product:      "GOSIM",
		Serial:       0x08154711,
	})
	card := sdcard.New(sim, testConfig())
	if err := card.Init(); err != nil {
		t.Fatal(err)
	}

	cid := card.CID()
	if !cid.CRCValid {
		t.Error("generated cid has invalid crc")
	}
	if cid.Vendor() != "Samsung" {
		t.Errorf("vendor = %q, want Samsung", cid.Vendor())
	}
	if cid.ProductName != "GOSIM" {
		t.Errorf("product = %q", cid.ProductName)
	}
	if cid.SerialNumber != 0x08154711 {
		t.Errorf("serial = %#x", cid.SerialNumber)
	}

	csd := card.CSD()
	if !csd.CRCValid {
		t.Error("generated csd has invalid crc")
	}
	if csd.Capacity != 4<<30 {
		t.Errorf("capacity = %d, want %d", csd.Capacity, int64(4)<<30)
	}
}

func TestSectorStore(t *testing.T) {
	sim := sdsim.New(sdsim.Config{})

	data := bytes.Repeat([]byte{0xa5}, 600)
	sim.SetSector(17, data) // truncated to one sector

	sec := sim.Sector(17)
	if !bytes.Equal(sec[:], data[:512]) {
		t.Error("sector differs")
	}
	if sim.Sector(18) != [512]byte{} {
		t.Error("unwritten sector not zero")
	}
}

func TestReadCount(t *testing.T) {
	sim := sdsim.New(sdsim.Config{})
	off := soc.SDCardPhyBase + sdcard.PhyCardDetect
	sim.Read32(off)
	sim.Read32(off)
	if got := sim.ReadCount(off); got != 2 {
		t.Errorf("read count = %d, want 2", got)
	}
}

func testConfig() sdcard.Config {
	cfg := sdcard.DefaultConfig()
	cfg.PollInterval = 0
	cfg.RetryDelay = 0
	return cfg
}

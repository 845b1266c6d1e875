package sdcard_test

import (
	"errors"
	"testing"

	"github.com/uk0/litex/soc/sdcard"
	"github.com/uk0/litex/soc/sdcard/sdsim"
	litextesting "github.com/uk0/litex/testing"
)

func TestMain(m *testing.M) { litextesting.TestMain(m) }

// testConfig returns the default configuration with the delays removed. The
// simulated card completes everything synchronously.
func testConfig() sdcard.Config {
	cfg := sdcard.DefaultConfig()
	cfg.PollInterval = 0
	cfg.RetryDelay = 0
	return cfg
}

func initCard(t *testing.T, sim *sdsim.Sim, cfg sdcard.Config) *sdcard.Card {
	t.Helper()
	card := sdcard.New(sim, cfg)
	if err := card.Init(); err != nil {
		t.Fatal("init:", err)
	}
	return card
}

func TestInit(t *testing.T) {
	sim := sdsim.New(sdsim.Config{
		Capacity:    16 << 30,
		RCA:         0xabcd,
		OpCondPolls: 3,
		Product:     "TSTGO",
	})
	card := initCard(t, sim, testConfig())

	if !card.Ready() {
		t.Error("not ready after init")
	}
	if got := card.RCA(); got != 0xabcd {
		t.Errorf("rca = %#x, want 0xabcd", got)
	}
	if got := card.Capacity(); got != 16<<30 {
		t.Errorf("capacity = %d, want %d", got, int64(16<<30))
	}
	if got := card.NumBlocks(); got != 16<<30/512 {
		t.Errorf("blocks = %d, want %d", got, int64(16<<30/512))
	}
	if got := card.CID().ProductName; got != "TSTGO" {
		t.Errorf("product = %q, want TSTGO", got)
	}
	if !card.CID().CRCValid {
		t.Error("cid crc invalid")
	}
	if !card.CSD().CRCValid {
		t.Error("csd crc invalid")
	}
	if !card.SCR().SupportsBusWidth4() {
		t.Error("scr reports no 4 bit bus")
	}
	if sim.InitPulses() == 0 {
		t.Error("no initialization clock bursts")
	}
}

func TestInitClocking(t *testing.T) {
	const rca = 0x5a5a
	sim := sdsim.New(sdsim.Config{RCA: rca})
	initCard(t, sim, testConfig())

	div := sim.Dividers()
	if len(div) != 2 {
		t.Fatalf("divider written %d times, want 2: %v", len(div), div)
	}
	if div[0] != 250 { // 100 MHz / 400 kHz
		t.Errorf("identification divider = %d, want 250", div[0])
	}
	if div[1] != 4 { // 100 MHz / 25 MHz
		t.Errorf("operational divider = %d, want 4", div[1])
	}

	// The identification commands must run on the slow clock, everything
	// addressed to the card must run on the operational clock.
	for _, cmd := range sim.Commands() {
		switch {
		case cmd.Index == 0 || cmd.Index == 8:
			if cmd.ClockChanges != 1 {
				t.Errorf("CMD%d after %d clock changes, want 1",
					cmd.Index, cmd.ClockChanges)
			}
		case !cmd.App && cmd.Arg>>16 == rca:
			if cmd.ClockChanges != 2 {
				t.Errorf("CMD%d after %d clock changes, want 2",
					cmd.Index, cmd.ClockChanges)
			}
		}
	}
}

func TestInitNoCard(t *testing.T) {
	sim := sdsim.New(sdsim.Config{Absent: true})
	card := sdcard.New(sim, testConfig())
	if err := card.Init(); !errors.Is(err, sdcard.ErrNoCard) {
		t.Errorf("err = %v, want ErrNoCard", err)
	}
	if card.Ready() {
		t.Error("ready without card")
	}
	if len(sim.Commands()) != 0 {
		t.Errorf("%d commands sent to empty slot", len(sim.Commands()))
	}
}

func TestInitIdleTimeout(t *testing.T) {
	sim := sdsim.New(sdsim.Config{})
	cfg := testConfig()
	cfg.InitRetries = 3
	for i := 0; i < cfg.InitRetries; i++ {
		sim.ScriptCmdEvents(1 | 4) // every CMD0 times out
	}
	card := sdcard.New(sim, cfg)
	err := card.Init()
	if !errors.Is(err, sdcard.ErrTimeout) {
		t.Errorf("err = %v, want ErrTimeout", err)
	}
	n := 0
	for _, cmd := range sim.Commands() {
		if cmd.Index == 0 {
			n++
		}
	}
	if n != cfg.InitRetries {
		t.Errorf("CMD0 sent %d times, want %d", n, cfg.InitRetries)
	}
}

func TestInitBusyCard(t *testing.T) {
	// A card that never leaves the power up phase.
	sim := sdsim.New(sdsim.Config{OpCondPolls: 10})
	cfg := testConfig()
	cfg.InitRetries = 5
	card := sdcard.New(sim, cfg)
	if err := card.Init(); !errors.Is(err, sdcard.ErrNotReady) {
		t.Errorf("err = %v, want ErrNotReady", err)
	}
}

func TestCardStatus(t *testing.T) {
	sim := sdsim.New(sdsim.Config{})
	card := initCard(t, sim, testConfig())

	status, err := card.CardStatus()
	if err != nil {
		t.Fatal(err)
	}
	if got := sdcard.CurrentState(status); got != sdcard.StateTransfer {
		t.Errorf("state = %d, want %d", got, sdcard.StateTransfer)
	}
	if status&sdcard.StatusReadyForData == 0 {
		t.Error("not ready for data")
	}
}

func TestReinit(t *testing.T) {
	sim := sdsim.New(sdsim.Config{})
	card := initCard(t, sim, testConfig())
	if err := card.Init(); err != nil {
		t.Fatal("second init:", err)
	}
	if !card.Ready() {
		t.Error("not ready after reinit")
	}
}

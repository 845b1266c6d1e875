package sdcard_test

import (
	"errors"
	"testing"

	"github.com/uk0/litex/soc"
	"github.com/uk0/litex/soc/sdcard"
	"github.com/uk0/litex/soc/sdcard/sdsim"
)

const cmdEventOff = soc.SDCardCoreBase + sdcard.CoreCmdEvent

// TestEventPollCount verifies that the event register is read once per poll
// turn and that polling stops on the first load with the done flag set.
func TestEventPollCount(t *testing.T) {
	sim := sdsim.New(sdsim.Config{})
	card := initCard(t, sim, testConfig())

	before := sim.ReadCount(cmdEventOff)
	sim.ScriptCmdEvents(0, 0, 1)
	if _, err := card.CardStatus(); err != nil {
		t.Fatal(err)
	}
	if got := sim.ReadCount(cmdEventOff) - before; got != 3 {
		t.Errorf("command event read %d times, want 3", got)
	}
}

func TestCommandTimeout(t *testing.T) {
	sim := sdsim.New(sdsim.Config{})
	card := initCard(t, sim, testConfig())

	// Busy once, then done and timeout in the same load.
	sim.ScriptCmdEvents(0, 1|4)
	_, err := card.CardStatus()
	if !errors.Is(err, sdcard.ErrTimeout) {
		t.Errorf("err = %v, want ErrTimeout", err)
	}
}

func TestCommandCRCError(t *testing.T) {
	sim := sdsim.New(sdsim.Config{})
	card := initCard(t, sim, testConfig())

	sim.ScriptCmdEvents(1 | 8)
	_, err := card.CardStatus()
	if !errors.Is(err, sdcard.ErrCRC) {
		t.Errorf("err = %v, want ErrCRC", err)
	}
}

// TestTimeoutBeforeCRC checks the flag priority when a load reports both
// error conditions.
func TestTimeoutBeforeCRC(t *testing.T) {
	sim := sdsim.New(sdsim.Config{})
	card := initCard(t, sim, testConfig())

	sim.ScriptCmdEvents(1 | 4 | 8)
	_, err := card.CardStatus()
	if !errors.Is(err, sdcard.ErrTimeout) {
		t.Errorf("err = %v, want ErrTimeout", err)
	}
}

func countCmd(cmds []sdsim.Cmd, index uint8) int {
	n := 0
	for _, cmd := range cmds {
		if cmd.Index == index && !cmd.App {
			n++
		}
	}
	return n
}

// TestTransferRetryBounded verifies that transfer commands give up after the
// configured number of attempts.
func TestTransferRetryBounded(t *testing.T) {
	sim := sdsim.New(sdsim.Config{})
	cfg := testConfig()
	cfg.RetryForeverOnCommandError = false
	cfg.TransferRetries = 2
	card := initCard(t, sim, cfg)

	start := len(sim.Commands())
	sim.ScriptCmdEvents(1|4, 1|4)
	buf := make([]byte, 512)
	err := card.ReadBlocks(buf, 0)
	if !errors.Is(err, sdcard.ErrTimeout) {
		t.Errorf("err = %v, want ErrTimeout", err)
	}
	if got := countCmd(sim.Commands()[start:], 17); got != 2 {
		t.Errorf("CMD17 sent %d times, want 2", got)
	}
}

// TestTransferRetryForever verifies that the default configuration reissues
// a failed transfer command until it goes through.
func TestTransferRetryForever(t *testing.T) {
	sim := sdsim.New(sdsim.Config{})
	card := initCard(t, sim, testConfig())
	sim.SetSector(7, []byte("recovered"))

	start := len(sim.Commands())
	sim.ScriptCmdEvents(1|8, 1|8) // two CRC errors, then clean
	buf := make([]byte, 512)
	if err := card.ReadBlocks(buf, 7); err != nil {
		t.Fatal(err)
	}
	if got := countCmd(sim.Commands()[start:], 17); got != 3 {
		t.Errorf("CMD17 sent %d times, want 3", got)
	}
	if string(buf[:9]) != "recovered" {
		t.Errorf("data = %q", buf[:9])
	}
}

package sdcard_test

import (
	"testing"

	"github.com/uk0/litex/soc/sdcard/sdsim"
)

// TestClockDividers checks the divider programmed for various requested
// clocks by observing the two divider writes of an initialization.
func TestClockDividers(t *testing.T) {
	tests := []struct {
		name       string
		sysClk     uint32
		initClock  uint32
		opClock    uint32
		wantInit   uint32
		wantOp     uint32
	}{
		{"reference", 0, 400_000, 25_000_000, 250, 4},
		{"rounds up", 0, 300_000, 12_000_000, 256, 9}, // 334 clamped to 256
		{"zero selects slowest", 0, 0, 50_000_000, 256, 2},
		{"clamps to fastest", 0, 400_000, 200_000_000, 250, 2},
		{"slow sysclk", 50_000_000, 400_000, 25_000_000, 125, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := sdsim.New(sdsim.Config{})
			cfg := testConfig()
			cfg.SysClk = tt.sysClk
			cfg.InitClock = tt.initClock
			cfg.OpClock = tt.opClock
			initCard(t, sim, cfg)

			div := sim.Dividers()
			if len(div) != 2 {
				t.Fatalf("divider written %d times, want 2: %v", len(div), div)
			}
			if div[0] != tt.wantInit {
				t.Errorf("identification divider = %d, want %d", div[0], tt.wantInit)
			}
			if div[1] != tt.wantOp {
				t.Errorf("operational divider = %d, want %d", div[1], tt.wantOp)
			}
		})
	}
}

// TestEffectiveFrequencyMonotonic sweeps the requested operational clock
// downward and checks that the resulting clock never increases, despite the
// rounding of the divider and the clocker's even steps.
func TestEffectiveFrequencyMonotonic(t *testing.T) {
	const sysClk = 100_000_000
	last := uint32(sysClk)
	for target := uint32(50_000_000); target >= 200_000; target -= target / 10 {
		sim := sdsim.New(sdsim.Config{})
		cfg := testConfig()
		cfg.OpClock = target
		initCard(t, sim, cfg)

		div := sim.Dividers()[1]
		if div < 2 || div > 256 {
			t.Fatalf("divider %d for %d Hz out of range", div, target)
		}
		effective := sysClk / ((div + 1) &^ 1)
		if effective > last {
			t.Errorf("target %d Hz: effective %d Hz, above previous %d Hz",
				target, effective, last)
		}
		// Below sysclk/256 the divider saturates and the effective clock
		// stays above the request.
		if div < 256 && effective > target {
			t.Errorf("target %d Hz: effective %d Hz exceeds request", target, effective)
		}
		last = effective
	}
}

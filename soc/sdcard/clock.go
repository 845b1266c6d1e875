package sdcard

import (
	"log/slog"

	"golang.org/x/exp/constraints"
)

func ceilDiv[T constraints.Integer](a, b T) T {
	return (a + b - 1) / b
}

func clamp[T constraints.Integer](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// setClock programs the PHY divider for the requested SD clock. A zero
// request selects the largest divider. The clocker only divides by even
// values, an odd divider is rounded up internally, so the effective frequency
// is sysclk/((div+1)&^1).
func (c *Card) setClock(freq uint32) {
	div := uint32(256)
	if freq != 0 {
		div = ceilDiv(c.cfg.SysClk, freq)
	}
	div = clamp(div, 2, 256)
	if c.logenabled(slog.LevelDebug) {
		c.debug("sd clock",
			slog.Uint64("requested", uint64(freq)),
			slog.Uint64("effective", uint64(c.cfg.SysClk/((div+1)&^1))),
			slog.Uint64("divider", uint64(div)))
	}
	c.phy.clockerDivider.Store(div)
}

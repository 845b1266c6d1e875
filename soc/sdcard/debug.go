package sdcard

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/uk0/litex/debug"
)

// LevelTrace logs every command sent to the card. It is below slog.LevelDebug
// and not emitted by default handlers.
const LevelTrace slog.Level = slog.LevelDebug - 1

func (c *Card) logenabled(lvl slog.Level) bool {
	return c.cfg.Logger != nil && c.cfg.Logger.Handler().Enabled(context.Background(), lvl)
}

func (c *Card) logattrs(lvl slog.Level, msg string, attrs ...slog.Attr) {
	if c.cfg.Logger == nil {
		return
	}
	c.cfg.Logger.LogAttrs(context.Background(), lvl, msg, attrs...)
}

func (c *Card) logerr(msg string, attrs ...slog.Attr) {
	c.logattrs(slog.LevelError, msg, attrs...)
}

func (c *Card) info(msg string, attrs ...slog.Attr) {
	c.logattrs(slog.LevelInfo, msg, attrs...)
}

func (c *Card) debug(msg string, attrs ...slog.Attr) {
	c.logattrs(slog.LevelDebug, msg, attrs...)
}

func (c *Card) trace(msg string, attrs ...slog.Attr) {
	c.logattrs(LevelTrace, msg, attrs...)
}

// DumpRegs logs the controller's register file at debug level. Only compiled
// in with the debug build tag.
func (c *Card) DumpRegs() {
	if !debug.Enabled || !c.logenabled(slog.LevelDebug) {
		return
	}
	resp := c.core.cmdResponse.Load()
	c.debug("sdcard regs",
		slog.Uint64("cmd_event", uint64(c.core.cmdEvent.Load())),
		slog.Uint64("data_event", uint64(c.core.dataEvent.Load())),
		slog.Uint64("card_detect", uint64(c.phy.cardDetect.Load())),
		slog.String("response",
			fmt.Sprintf("%08x%08x%08x%08x", resp[0], resp[1], resp[2], resp[3])))
}

//go:build litexsoc

package machine

import (
	"embedded/arch/riscv/systim"

	"github.com/uk0/litex/soc"
)

func init() {
	systim.Setup(soc.ClockFrequency)
}

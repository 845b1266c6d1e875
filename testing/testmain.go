//go:build litexsoc

// Package testing provides utilities for writing litexsoc specific tests.
package testing

import (
	"embedded/rtos"
	"fmt"
	"os"
	"syscall"
	"testing"
	"time"

	_ "github.com/uk0/litex/machine"
	"github.com/uk0/litex/soc"
	"github.com/uk0/litex/soc/csr"
	"github.com/uk0/litex/soc/ctrl"
	"github.com/uk0/litex/soc/uart"

	"github.com/embeddedgo/fs/termfs"
)

// TestMain should be used as TestMain for litexsoc specific tests. It mounts
// the UART as console before running the tests.
func TestMain(m *testing.M) {
	var err error
	bus := csr.NewMMIO(soc.CSRBase)
	con := uart.New(bus)

	fs := termfs.NewLight("termfs", nil, con)
	rtos.Mount(fs, "/dev/console")
	os.Stdout, err = os.OpenFile("/dev/console", syscall.O_WRONLY, 0)
	if err != nil {
		panic(err)
	}
	os.Stderr = os.Stdout

	// The default syswriter writes to the same UART and will print panics.
	if c := ctrl.Probe(bus); c != nil {
		fmt.Printf("running on %s\n", c.Identifier())
	} else {
		fmt.Print("\nWARN: no ctrl peripheral found\n\n")
	}

	// TODO find a way to pass these from the 'go test' command
	os.Args = append(os.Args, "-test.v")
	os.Args = append(os.Args, "-test.bench=.")
	os.Args = append(os.Args, "-test.benchmem")

	print("Press any key to enable long tests.. ")
	pressed := false
	for i := 0; i < 10; i++ {
		if _, ok := con.TryReadByte(); ok {
			pressed = true
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	if !pressed {
		os.Args = append(os.Args, "-test.short")
		println("skipping")
	} else {
		println("ok")
	}

	os.Exit(m.Run())
}

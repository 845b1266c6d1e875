// Package sdfs serves the FAT32 partition of an SD card image as a fuse
// file system.
package sdfs

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
)

const usageString = `SD card image file system.

Serves a directory view of an image's FAT32 partition. The mount is read
only, modify images with 'img cp' instead.

Usage:

	%s <command> [arguments]

The commands are:

	mount <image> <dir>	serve the image's partition via fuse
`

var (
	flags = flag.NewFlagSet("sdfs", flag.ExitOnError)

	part = flags.Int("part", 1, "partition number to serve")
)

var sigintr = make(chan os.Signal, 1)

func usage() {
	fmt.Fprintf(flags.Output(), usageString, "sdfs")
	flags.PrintDefaults()
}

func Main(args []string) {
	flags.Usage = usage
	flags.Parse(args[1:])

	if flags.NArg() < 1 {
		flags.Usage()
		os.Exit(1)
	}

	signal.Notify(sigintr, os.Interrupt)

	switch flags.Arg(0) {
	case "mount":
		if flags.NArg() < 3 {
			flags.Usage()
			os.Exit(1)
		}
		if err := mount(flags.Arg(1), flags.Arg(2)); err != nil {
			log.Fatal(err)
		}
	default:
		fmt.Fprintf(flags.Output(), "unknown command: %s\n", flags.Arg(0))
		flags.Usage()
		os.Exit(1)
	}
}

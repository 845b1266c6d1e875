package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/uk0/litex/tools/img"
	"github.com/uk0/litex/tools/run"
	"github.com/uk0/litex/tools/sdfs"
)

const usageString = `sdtool is a tool for development on LiteX SoC targets.

Usage:

	%s <command> [arguments]

The commands are:

	img   build and inspect SD card images
	sdfs  serve a card image's FAT32 partition via fuse
	run   execute a program in a SoC simulator and scan for test results
`

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), usageString, os.Args[0])
	flag.PrintDefaults()
}

func main() {
	log.Default().SetFlags(0)
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	switch flag.Arg(0) {
	case "img":
		img.Main(flag.Args())
	case "sdfs":
		sdfs.Main(flag.Args())
	case "run":
		run.Main(flag.Args())
	default:
		fmt.Fprintf(flag.CommandLine.Output(), "unknown command: %s\n", flag.Arg(0))
		flag.Usage()
		os.Exit(1)
	}
}

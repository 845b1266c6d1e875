// Package run executes a program in a SoC simulator and scans the serial
// console for test results.
package run

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"time"

	"github.com/aymanbagabas/go-pty"
	"github.com/buildkite/shellwords"
)

const usageString = `SoC simulator runner.

Runs the simulator with the program appended as last argument and scans the
console output for test results. Exits 0 unless a failed test, a panic or a
fatal runtime error was seen.

Usage: %s -cmd <simulator> [flags] <program>

`

var (
	flags = flag.NewFlagSet("run", flag.ExitOnError)

	cmdline = flags.String("cmd", "", "simulator command, split shell style")
	tty     = flags.Bool("tty", false, "run the simulator on a pty and forward stdin")
)

func usage() {
	fmt.Fprintf(flags.Output(), usageString, "run")
	flags.PrintDefaults()
}

func Main(args []string) {
	flags.Usage = usage
	flags.Parse(args[1:])

	if flags.NArg() != 1 || *cmdline == "" {
		flags.Usage()
		os.Exit(1)
	}

	cmdargs, err := shellwords.Split(*cmdline)
	if err != nil {
		log.Fatal("split command:", err)
	}
	cmdargs = append(cmdargs, flags.Arg(0))

	if *tty {
		runTTY(cmdargs)
	} else {
		runPipe(cmdargs)
	}
}

func runPipe(args []string) {
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stderr = os.Stderr
	processGroupEnable(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		log.Fatal("open stdout:", err)
	}

	sigintr := make(chan os.Signal, 1)
	signal.Notify(sigintr, os.Interrupt)

	err = cmd.Start()
	if err != nil {
		log.Fatal("start command:", err)
	}

	stop := func() {
		stdout.Close()
		err := processGroupKill(cmd)
		if err != nil {
			log.Println(err)
		}
	}
	go func() {
		<-sigintr
		stop()
	}()

	code := scan(stdout, stop)
	cmd.Wait()
	os.Exit(code)
}

// runTTY runs the simulator on a pseudo terminal. Some simulators only enable
// their interactive console when one is attached.
func runTTY(args []string) {
	ptmx, err := pty.New()
	if err != nil {
		log.Fatal("open pty:", err)
	}

	cmd := ptmx.Command(args[0], args[1:]...)

	sigintr := make(chan os.Signal, 1)
	signal.Notify(sigintr, os.Interrupt)

	err = cmd.Start()
	if err != nil {
		log.Fatal("start command:", err)
	}

	stop := func() {
		ptmx.Close()
		err := cmd.Process.Kill()
		if err != nil {
			log.Println(err)
		}
	}
	go func() {
		<-sigintr
		stop()
	}()
	go io.Copy(ptmx, os.Stdin)

	code := scan(ptmx, stop)
	cmd.Wait()
	os.Exit(code)
}

// scan echoes console output line by line and derives the exit code from it.
// After a verdict the simulator is stopped with a small delay.
func scan(r io.Reader, stop func()) int {
	scanner := bufio.NewScanner(r)
	exiting := false
	code := 0
	for scanner.Scan() {
		log.Println(scanner.Text())
		if exiting {
			continue
		}
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "fatal error:"), strings.HasPrefix(line, "panic:"):
			fallthrough
		case line == "FAIL":
			code = 1
			fallthrough
		case line == "PASS":
			exiting = true
			go func() {
				// give panic() time to print the stacktrace
				time.Sleep(500 * time.Millisecond)
				stop()
			}()
		}
	}
	return code
}

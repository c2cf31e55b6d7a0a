// Package main provides the keystream command-line interface.
//
// It transmits animation files, serves receive sessions, prepares server
// templates and runs loss experiments:
//
//	keystream server -template base.yaml -out result.yaml
//	keystream client -in walk.yaml -host 127.0.0.1
//	keystream prepare -in walk.yaml -out base.yaml
//	keystream droptest -in walk.yaml -out lossy.yaml -rate 0.6 -seed 1
//	keystream loopback -in walk.yaml -template base.yaml -out result.yaml -loss 0.1
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
)

type command struct {
	summary string
	run     func(ctx context.Context, args []string, stdout, stderr io.Writer) error
}

var commands = map[string]command{
	"client":   {"transmit an animation file once", runClient},
	"server":   {"receive one stream into a template scene", runServer},
	"prepare":  {"add absolute markers to a scene to build a server template", runPrepare},
	"droptest": {"remove random keys from an animation", runDroptest},
	"loopback": {"run client and server in one process", runLoopback},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run dispatches args to a subcommand and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-help" || args[0] == "-h" || args[0] == "help" {
		printUsage(stderr)
		if len(args) == 0 {
			return 2
		}
		return 0
	}

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		printUsage(stderr)
		return 2
	}

	if err := cmd.run(ctx, args[1:], stdout, stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "keystream %s: %v\n", args[0], err)
		return 1
	}
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "keystream streams skeletal animation over UDP")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintf(w, "  keystream <command> [options]\n\n")
	fmt.Fprintln(w, "Commands:")

	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-9s %s\n", name, commands[name].summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Use \"keystream <command> -help\" for the options of a command.")
}

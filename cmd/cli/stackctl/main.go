package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/core-tools/hsu-stack/pkg/errors"

	flags "github.com/jessevdk/go-flags"
)

const (
	exitOK           = 0
	exitFailure      = 1
	exitUnknownUsage = 2
)

type globalOptions struct {
	Config    string `long:"config" short:"c" description:"configuration file (YAML), defaults to hsu-stack.yaml when present"`
	LogLevel  string `long:"log-level" description:"log level: debug, info, warn, error"`
	LogFormat string `long:"log-format" description:"log format: console or json"`
	Yes       bool   `long:"yes" short:"y" description:"answer yes to confirmation prompts"`
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts globalOptions
	app := newApp(ctx, &opts, os.Stdout)
	defer app.close()

	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.Name = "stackctl"
	parser.ShortDescription = "tiered service stack orchestrator"
	if err := registerCommands(parser, app); err != nil {
		fmt.Fprintf(os.Stderr, "Command setup failed: %v\n", err)
		return exitFailure
	}

	if len(argv) == 0 {
		printCommands(os.Stdout, parser)
		return exitOK
	}

	_, err := parser.ParseArgs(argv)
	return exitCode(err, parser)
}

// exitCode maps an error to the process status. Per-unit failures were
// already reported and never reach here.
func exitCode(err error, parser *flags.Parser) int {
	if err == nil {
		return exitOK
	}

	var flagsErr *flags.Error
	if stderrors.As(err, &flagsErr) {
		switch flagsErr.Type {
		case flags.ErrHelp:
			fmt.Fprintln(os.Stdout, flagsErr.Message)
			return exitOK
		case flags.ErrUnknownCommand, flags.ErrCommandRequired:
			fmt.Fprintf(os.Stderr, "%s\n\n", flagsErr.Message)
			printCommands(os.Stderr, parser)
			return exitUnknownUsage
		default:
			fmt.Fprintf(os.Stderr, "Command line flags parsing failed: %v\n", err)
			return exitUnknownUsage
		}
	}

	if errors.IsCancelledError(err) {
		fmt.Fprintf(os.Stderr, "Aborted: %v\n", err)
		return exitFailure
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return exitFailure
}

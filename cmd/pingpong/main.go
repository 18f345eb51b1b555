package main

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/Owanesh/wasmlabs/deadline"
	"github.com/Owanesh/wasmlabs/internal"
	"github.com/Owanesh/wasmlabs/pingpong"
	"github.com/pion/logging"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

const usage = "usage: pingpong [flags] <seconds>"

// Exit statuses.
const (
	exitOK        = 0
	exitUsage     = 1
	exitSyncFault = 2
	exitFailure   = 3
)

func main() {
	atexit.Exit(start(nil, os.Args[1:], os.Stdout, os.Stderr))
}

// start loads the dotenv files (".env" if none) and runs the command. A
// dotenv file that cannot be parsed is a configuration failure.
func start(envFiles []string, args []string, stdout, stderr io.Writer) int {
	if err := internal.LoadEnv(envFiles...); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return exitFailure
	}
	return execute(args, stdout, stderr)
}

// usageError is a bad command line. No benchmark has been started when it
// is returned.
type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }

func (e usageError) Unwrap() error { return e.err }

func execute(args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	if err != nil {
		fmt.Fprintf(stderr, "error: %s\n", err)
		var uerr usageError
		if errors.As(err, &uerr) {
			fmt.Fprintln(stderr, usage)
		}
	}
	return exitCode(err)
}

func exitCode(err error) int {
	var uerr usageError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &uerr):
		return exitUsage
	case errors.Is(err, pingpong.ErrSyncFault):
		return exitSyncFault
	default:
		return exitFailure
	}
}

// maxSeconds is the longest duration representable as a time.Duration.
const maxSeconds = math.MaxInt64 / int64(time.Second)

// parseSeconds validates the single positional duration argument.
func parseSeconds(args []string) (int, error) {
	if len(args) != 1 {
		return 0, usageError{fmt.Errorf("want exactly one duration argument, got %d", len(args))}
	}
	secs, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, usageError{fmt.Errorf("duration %q is not a number of seconds", args[0])}
	}
	if secs < 1 {
		return 0, usageError{fmt.Errorf("duration must be at least 1 second, got %d", secs)}
	}
	if int64(secs) > maxSeconds {
		return 0, usageError{fmt.Errorf("duration must be at most %d seconds, got %d", maxSeconds, secs)}
	}
	return secs, nil
}

func newLoggerFactory(w io.Writer, verbose bool) logging.LoggerFactory {
	lf := logging.NewDefaultLoggerFactory()
	lf.Writer = w
	if verbose {
		lf.DefaultLogLevel = logging.LogLevelDebug
	}
	return lf
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var (
		o       runOptions
		faultAt int64
	)
	cmd := &cobra.Command{
		Use:   "pingpong [flags] <seconds>",
		Short: "Measure the throughput of a strictly alternating two-party hand-off.",
		Long: `pingpong hands a round number back and forth between a driver and a
responder until a deadline fires, then prints the number of completed rounds
to stderr as COUNT|<n>|<unit-count>|<unit-label>.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			secs, err := parseSeconds(args)
			if err != nil {
				return err
			}
			if faultAt >= 0 {
				at := uint64(faultAt)
				o.faultAt = &at
			}
			lf := newLoggerFactory(stderr, o.verbose)
			r, err := newRunner(o, secs, lf, stdout, stderr)
			if err != nil {
				return err
			}
			return r.Run()
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	f := cmd.Flags()
	f.StringVar(&o.workload, "workload", internal.Getenv(internal.EnvWorkload, "condvar"), "exchange to measure: condvar or chan")
	f.StringVar(&o.timer, "timer", internal.Getenv(internal.EnvTimer, deadline.Default), "deadline strategy: afterfunc, sleep or busywait")
	f.StringVar(&o.unit, "unit", internal.Getenv(internal.EnvUnit, "lps"), "normalization window of the report: lps or lpm")
	f.StringVar(&o.args, "args", "", "yaml workload arguments")
	f.StringVar(&o.statsdAddr, "statsd", internal.Getenv(internal.EnvStatsdAddr, ""), "dogstatsd address to send results to")
	f.StringSliceVar(&o.profile, "profile", nil, "profiles to record: cpu, block, mutex, goroutine, trace")
	f.StringVar(&o.outdir, "outdir", ".", "directory for profiles")
	f.BoolVar(&o.meta, "meta", false, "print run metadata as yaml on stdout")
	f.BoolVarP(&o.verbose, "verbose", "v", false, "verbose output")
	f.StringVar(&o.name, "name", "", "run name recorded in the metadata")
	f.StringVar(&o.id, "id", "", "run id recorded in the metadata")
	f.IntVar(&o.iteration, "iteration", 0, "repeat index recorded in the metadata")
	f.Int64Var(&faultAt, "inject-fault-at", -1, "corrupt the round sent at this round")
	for _, hidden := range []string{"name", "id", "iteration", "inject-fault-at"} {
		_ = f.MarkHidden(hidden)
	}

	cmd.AddCommand(newBenchCmd(stdout, stderr))
	return cmd
}

func newBenchCmd(stdout, stderr io.Writer) *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "bench <config> <outdir>",
		Short: "Run the jobs of a yaml config, one child process per run.",
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) != 2 {
				return usageError{fmt.Errorf("bench wants <config> <outdir>, got %d arguments", len(args))}
			}
			return nil
		},
		RunE: func(_ *cobra.Command, args []string) error {
			bin, err := os.Executable()
			if err != nil {
				return err
			}
			c := &Coordinator{
				Bin:     bin,
				Config:  args[0],
				Outdir:  args[1],
				Verbose: verbose,
				Stdout:  stdout,
				Stderr:  stderr,
			}
			return c.Run()
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	return cmd
}

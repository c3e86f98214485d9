// Package server carries process-lifecycle helpers shared by metad and
// storaged: CLI flag wiring and signal-driven graceful shutdown.
package server

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/urfave/cli.v2"

	"github.com/baudgraph/graphd/util/build"
	"github.com/baudgraph/graphd/util/log"
	"github.com/baudgraph/graphd/util/multierror"
)

var goFlags []*flag.Flag

type stopHook func() error

// VersionCommand returns the "version" cli subcommand shared by metad and
// storaged.
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:        "version",
		Usage:       "do the version",
		Description: "Prints out build version information",
		Action: func(c *cli.Context) error {
			fmt.Print(build.GetInfo())
			return nil
		},
	}
}

// SupressGlogWarnings marks the standard flag package as already parsed,
// so glog-style libraries that check flag.Parsed() don't complain.
func SupressGlogWarnings() {
	fs := flag.NewFlagSet("", flag.ContinueOnError)
	_ = fs.Parse([]string{})
	flag.CommandLine = fs
}

// AppendFlags appends flags to a cli command.
func AppendFlags(cmd *cli.Command, flags ...cli.Flag) {
	cmd.Flags = append(cmd.Flags, flags...)
}

// AddGoFlags mirrors every flag registered on the standard flag package
// onto the cli command, so `-foo=bar` keeps working for libraries (e.g.
// the raft logger) that register themselves via flag.
func AddGoFlags(cmd *cli.Command) {
	flag.CommandLine.VisitAll(func(gf *flag.Flag) {
		goFlags = append(goFlags, gf)
		cmd.Flags = append(cmd.Flags, &cli.StringFlag{
			Name:        gf.Name,
			Value:       gf.Value.String(),
			Usage:       gf.Usage,
			DefaultText: gf.DefValue,
		})
	})
}

// SetGoFlagVals pushes the cli-parsed values back into the standard flag
// package's Values.
func SetGoFlagVals(ctx *cli.Context) {
	for _, gf := range goFlags {
		gf.Value.Set(ctx.String(gf.Name))
	}
	goFlags = nil
}

// WaitShutdown blocks until SIGINT or SIGTERM (any other signal is
// logged and ignored), then runs every stop
// hook concurrently-enough (sequentially, in registration order) and
// forces a hard exit if a second signal arrives or 15s elapse.
func WaitShutdown(stops ...stopHook) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs)

	var sig os.Signal
	for {
		sig = <-sigs
		if sig == syscall.SIGINT || sig == syscall.SIGTERM {
			break
		}
		log.Info("ignoring signal %v", sig)
	}

	done := make(chan struct{})
	go func() {
		fmt.Println("initiating graceful shutdown...")
		merr := &multierror.MultiError{}
		for _, stop := range stops {
			merr.Append(stop())
		}
		if err := merr.ErrorOrNil(); err != nil {
			fmt.Println("shutdown error:", err)
		}
		fmt.Println("graceful shutdown complete")
		close(done)
	}()

	select {
	case <-done:
	case <-sigs:
		fmt.Println("second signal received, hard shutdown")
	case <-time.After(15 * time.Second):
		fmt.Println("shutdown timed out, hard shutdown")
	}
}

// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package vrltool defines the logic for the "vrltool" app.
//
// vrltool inspects, converts, records, and replays streams of VRL frames:
//
//	- "cat" validates VRL files and prints their frames.
//	- "repack" rebuilds the frames of a file under a new maximum frame length
//	  and compression.
//	- "record" receives frames over UDP and writes them to a file.
//	- "send" replays the frames of a file over UDP.
package vrltool

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/danjacques/govita/support/logging"
	"github.com/danjacques/govita/transport"
	"github.com/danjacques/govita/vrlfile"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
)

// env is the state shared by a subcommand's execution.
type env struct {
	cfg    Config
	logger logging.L
	stdout io.Writer
	stderr io.Writer
}

// runFunc executes a command with its positional arguments.
type runFunc func(c context.Context, e *env, args []string) error

type command struct {
	usage string
	help  string

	// setup registers the command's flags on fs, and returns the function that
	// runs it.
	setup func(fs *flagSet) runFunc
}

var commands = map[string]*command{
	"cat":    catCommand,
	"repack": repackCommand,
	"record": recordCommand,
	"send":   sendCommand,
}

// Main is the main entry point.
func Main() {
	c, cancelFunc := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := Run(c, os.Args[1:], os.Stdout, os.Stderr)
	cancelFunc()
	os.Exit(code)
}

// Run executes vrltool with args, and returns its exit code.
func Run(c context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return 2
	}

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "Unknown command %q.\n\n", args[0])
		printUsage(stderr)
		return 2
	}

	e := env{
		cfg:    DefaultConfig(),
		stdout: stdout,
		stderr: stderr,
	}
	fs := newFlagSet(args[0], &e.cfg)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: vrltool %s %s\n\n%s\n\nFlags:\n", args[0], cmd.usage, cmd.help)
		fs.PrintDefaults()
	}
	run := cmd.setup(fs)

	if err := fs.parse(args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		fmt.Fprintf(stderr, "Invalid arguments: %s\n", err)
		return 2
	}

	logger, err := logging.NewConsole(stderr, e.cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(stderr, "Invalid arguments: %s\n", err)
		return 2
	}
	e.logger = logger

	if e.cfg.MetricsAddr != "" {
		srv, err := serveMetrics(e.cfg.MetricsAddr, logger)
		if err != nil {
			logger.Errorf("Failed to serve metrics: %s", err)
			return 1
		}
		defer srv.Close()
	}

	if err := run(c, &e, fs.Args()); err != nil {
		if errors.Cause(err) == context.Canceled {
			logger.Info("Interrupted.")
			return 0
		}
		logger.Errorf("%s failed: %s", args[0], err)
		return 1
	}
	return 0
}

func printUsage(w io.Writer) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(w, "Usage: vrltool <command> [flags] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, name := range names {
		fmt.Fprintf(w, "  %-8s %s\n", name, commands[name].help)
	}
}

// serveMetrics serves this module's Prometheus metrics on addr.
func serveMetrics(addr string, logger logging.L) (*http.Server, error) {
	reg := prometheus.NewRegistry()
	transport.RegisterMonitoring(reg)
	vrlfile.RegisterMonitoring(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := http.Server{
		Addr:    addr,
		Handler: mux,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Warnf("Metrics server failed: %s", err)
		}
	}()
	logger.Infof("Serving metrics on http://%s/metrics", ln.Addr())
	return &srv, nil
}

// Command xscriptd is the XScript daemon: it loads a YAML config, compiles
// the vhost docroots on demand, and serves HTTP requests through the
// block-invocation pipeline.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sambeau/xscriptd/config"
	"github.com/sambeau/xscriptd/server"
)

// Version information, set at build time via -ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	ctx := context.Background()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr, os.Getenv); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run is the entry point, structured for testability (Mat Ryer pattern).
func run(ctx context.Context, args []string, stdout, stderr io.Writer, getenv func(string) string) error {
	flags := flag.NewFlagSet("xscriptd", flag.ContinueOnError)
	flags.SetOutput(io.Discard)

	var (
		configPath  = flags.String("config", "", "Path to config file")
		devMode     = flags.Bool("dev", false, "Development mode (HTTP on localhost)")
		quietMode   = flags.Bool("quiet", false, "Suppress request logs")
		port        = flags.Int("port", 0, "Override listen port")
		showVersion = flags.Bool("version", false, "Show version")
		showHelp    = flags.Bool("help", false, "Show help")
	)

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printUsage(stdout)
			return nil
		}
		printUsage(stderr)
		return err
	}
	if *showHelp {
		printUsage(stdout)
		return nil
	}
	if *showVersion {
		fmt.Fprintf(stdout, "xscriptd version %s (%s)\n", Version, Commit)
		return nil
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, configFile, err := config.LoadWithPath(*configPath, getenv)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if *devMode {
		cfg.Server.Dev = true
	}
	if *quietMode {
		cfg.Logging.Quiet = true
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	version := fmt.Sprintf("version %s (%s)", Version, Commit)
	srv, err := server.New(cfg, configFile, version, Commit, stdout, stderr)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	go func() {
		for range sighup {
			fmt.Fprintf(stdout, "received SIGHUP - reloading scripts\n")
			srv.ReloadScripts()
		}
	}()

	return srv.Run(ctx)
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `xscriptd - an XML composition server

Usage:
  xscriptd [options]

Options:
  --config PATH      Path to config file (default: auto-detect)
  --dev              Development mode (HTTP on localhost)
  --quiet            Suppress request logs
  --port PORT        Override listen port
  --version          Show version
  --help             Show this help

Config Resolution:
  1. --config flag
  2. XSCRIPT_CONFIG environment variable
  3. ./xscript.yaml
  4. ~/.config/xscript/xscript.yaml

Signals:
  SIGHUP            Reload scripts (clear cache, re-parse on next request)
  SIGINT/SIGTERM    Graceful shutdown
`)
}

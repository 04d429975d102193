package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	gatewayservice "fleet-tracker/cmd/gateway_service"
	"fleet-tracker/cmd/watcher"
	"fleet-tracker/internal/cli"
)

func main() {
	// quick path for global help
	if len(os.Args) == 2 && (os.Args[1] == "--help" || os.Args[1] == "-h") {
		cli.PrintUsage(os.Stdout)
		os.Exit(0)
	}

	// parse mode and collect the remaining args for that mode
	mode, svcArgs, err := cli.ParseMode(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		cli.PrintUsage(os.Stderr)
		os.Exit(2)
	}

	// context cancelled on SIGINT/SIGTERM for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// run the service specified by the mode flag
	switch mode {

	case cli.ModeGateway:
		fs := flag.NewFlagSet(cli.ModeGateway, flag.ContinueOnError)
		configPath := fs.String("config", "config/config.yaml", "Path to the YAML config file")
		maxConc := fs.Int("max-concurrent", 10000, "Maximum number of concurrent requests, open WebSocket connections included")
		cli.AttachUsage(fs, cli.ModeGateway)

		if err := fs.Parse(svcArgs); err != nil {
			if err == flag.ErrHelp {
				os.Exit(0)
			}
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(2)
		}
		if *maxConc < 1 {
			fmt.Fprintln(os.Stderr, "Error: --max-concurrent must be >= 1")
			fs.Usage()
			os.Exit(2)
		}
		if err := gatewayservice.Run(ctx, *configPath, *maxConc); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}

	case cli.ModeWatch:
		fs := flag.NewFlagSet(cli.ModeWatch, flag.ContinueOnError)
		url := fs.String("url", "http://localhost:3001", "Base URL of a gateway")
		token := fs.String("token", os.Getenv("FLEET_WATCH_TOKEN"), "Bearer token of an ADMIN or DISPATCHER account")
		poll := fs.Duration("poll-interval", 15*time.Second, "Snapshot poll interval while not connected")
		attempts := fs.Int("max-attempts", 5, "Live reconnect attempts before settling into polling")
		base := fs.Duration("base-backoff", time.Second, "Initial reconnect backoff")
		maxBackoff := fs.Duration("max-backoff", 30*time.Second, "Reconnect backoff cap")
		cli.AttachUsage(fs, cli.ModeWatch)

		if err := fs.Parse(svcArgs); err != nil {
			if err == flag.ErrHelp {
				os.Exit(0)
			}
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(2)
		}
		if *attempts < 1 {
			fmt.Fprintln(os.Stderr, "Error: --max-attempts must be >= 1")
			fs.Usage()
			os.Exit(2)
		}
		if err := watcher.Run(ctx, watcher.Options{
			GatewayURL:   *url,
			Token:        *token,
			PollInterval: *poll,
			MaxAttempts:  *attempts,
			BaseBackoff:  *base,
			MaxBackoff:   *maxBackoff,
		}); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}

	default:
		// should not happen because ParseMode validates known modes
		fmt.Fprintln(os.Stderr, "Error: unknown mode")
		os.Exit(2)
	}

	// tiny delay to let deferred logs flush on very fast exits
	select {
	case <-ctx.Done():
	case <-time.After(10 * time.Millisecond):
	}
}

package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
)

const (
	ModeGateway = "gateway"
	ModeWatch   = "watch"
)

// isKnownMode checks if the provided mode name is known.
func isKnownMode(s string) (string, bool) {
	switch s {
	case ModeGateway, "gateway-service", "gw", "g":
		return ModeGateway, true
	case ModeWatch, "watcher", "w":
		return ModeWatch, true
	default:
		return "", false
	}
}

// ParseMode supports:
//
//	--mode=<value>
//	<value> (subcommand shorthand), e.g., `gateway --max-concurrent=5000`
func ParseMode(args []string) (string, []string, error) {
	var mode string
	var out []string

	for i := range args {
		arg := args[i]
		if after, ok := strings.CutPrefix(arg, "--mode="); ok {
			mode = after
			continue
		}

		if mode == "" {
			if m, ok := isKnownMode(arg); ok {
				mode = m
				continue
			}
		}
		out = append(out, arg)
	}

	if mode == "" {
		return "", out, errors.New("no mode specified: use --mode=<gateway|watch>")
	}

	m, ok := isKnownMode(mode)
	if !ok {
		return "", out, fmt.Errorf("unknown mode %q", mode)
	}

	return m, out, nil
}

// PrintUsage prints the usage information with examples.
func PrintUsage(w io.Writer) {
	fmt.Fprint(w, "\033[36m") // cyan

	fmt.Fprintln(w, `Usage:
  ./fleet-tracker --mode=<mode> [flags]

Modes:
  gateway      WebSocket gateway: live driver locations, presence and order status
  watch        Follow the fleet through a gateway (live feed with polling fallback)

Examples:
  ./fleet-tracker --mode=gateway --config=config/config.yaml --max-concurrent=10000
  ./fleet-tracker --mode=watch --url=http://localhost:3001 --token=$ADMIN_TOKEN`)

	fmt.Fprint(w, "\033[0m") // reset
}

// AttachUsage wires a concise per-mode usage to a FlagSet.
func AttachUsage(fs *flag.FlagSet, mode string) {
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: ./fleet-tracker --mode=%s [flags]\n", mode)
		fs.PrintDefaults()
	}
}

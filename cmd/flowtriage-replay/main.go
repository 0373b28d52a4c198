package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/netsift/flowtriage/internal/replay"
)

// Build variables - set by ldflags during build.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		evePath     string
		serverURL   string
		limit       int
		maxFailures int
		showVersion bool
	)

	flag.StringVar(&evePath, "eve", "", "Suricata EVE JSON flow log to replay (required)")
	flag.StringVar(&serverURL, "server", "http://127.0.0.1:8080", "prediction service base URL")
	flag.IntVar(&limit, "limit", 0, "max flow records to submit (0 = all)")
	flag.IntVar(&maxFailures, "max-failures", replay.DefaultMaxConsecutiveFailures,
		"consecutive request failures before aborting")
	flag.BoolVar(&showVersion, "version", false, "print version information")
	flag.Parse()

	if showVersion {
		fmt.Printf("flowtriage-replay %s (%s)\n", version, commit)
		return
	}

	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if evePath == "" {
		fmt.Fprintln(os.Stderr, "Error: --eve is required")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := replay.Run(ctx, replay.Options{
		LogPath:                evePath,
		ServerURL:              serverURL,
		Limit:                  limit,
		MaxConsecutiveFailures: maxFailures,
	})
	if summary != nil {
		fmt.Println(summary.Render())
	}
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "Error: interrupted")
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

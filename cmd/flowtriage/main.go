package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/netsift/flowtriage/internal/archive"
	"github.com/netsift/flowtriage/internal/batch"
	"github.com/netsift/flowtriage/internal/classify"
	"github.com/netsift/flowtriage/internal/svm"
)

// Build variables - set by ldflags during build.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		dataPath    string
		evePath     string
		zeekPath    string
		outPath     string
		modelsDir   string
		archivePath string
		limit       int
		workers     int
		showVersion bool
	)

	flag.StringVar(&dataPath, "data", "", "CSV dataset with header-named feature columns")
	flag.StringVar(&evePath, "eve", "", "Suricata EVE JSON flow log")
	flag.StringVar(&zeekPath, "zeek", "", "Zeek conn.log (JSON per line)")
	flag.StringVar(&outPath, "out", "", "output CSV path for predictions (required)")
	flag.StringVar(&modelsDir, "models", "models", "directory with model artifacts and calibration sidecars")
	flag.StringVar(&archivePath, "archive", "", "optional DuckDB archive for classification results")
	flag.IntVar(&limit, "limit", 0, "max records to process (0 = all)")
	flag.IntVar(&workers, "workers", batch.DefaultWorkers, "parallel classification workers")
	flag.BoolVar(&showVersion, "version", false, "print version information")
	flag.Parse()

	if showVersion {
		fmt.Printf("flowtriage %s (%s)\n", version, commit)
		return
	}

	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	inputs := 0
	for _, p := range []string{dataPath, evePath, zeekPath} {
		if p != "" {
			inputs++
		}
	}
	if inputs != 1 {
		fmt.Fprintln(os.Stderr, "Error: exactly one of --data, --eve and --zeek is required")
		os.Exit(2)
	}
	if outPath == "" {
		fmt.Fprintln(os.Stderr, "Error: --out is required")
		os.Exit(2)
	}

	opts := batch.Options{
		DataPath: dataPath,
		EVEPath:  evePath,
		ZeekPath: zeekPath,
		OutPath:  outPath,
		Limit:    limit,
		Workers:  workers,
	}
	if err := run(opts, modelsDir, archivePath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(opts batch.Options, modelsDir, archivePath string) error {
	// Models load once, before any record is read. A missing or corrupt
	// artifact aborts here.
	store, err := svm.Load(
		filepath.Join(modelsDir, svm.BinaryModelFile),
		filepath.Join(modelsDir, svm.SecondaryModelFile),
	)
	if err != nil {
		return fmt.Errorf("loading models: %w", err)
	}

	if archivePath != "" {
		arch, err := archive.NewStore(archivePath)
		if err != nil {
			return fmt.Errorf("opening archive: %w", err)
		}
		defer arch.Close()
		opts.Archive = arch
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := batch.Run(ctx, classify.New(store), opts)
	if summary != nil {
		fmt.Println(summary.Render())
	}
	if errors.Is(err, context.Canceled) {
		// Interrupted: partial output was flushed and the summary above
		// covers what completed.
		return fmt.Errorf("interrupted")
	}
	if err != nil {
		return err
	}

	fmt.Printf("\nWrote predictions to %s\n", opts.OutPath)
	return nil
}

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
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/viper"

	"github.com/netsift/flowtriage/internal/archive"
	"github.com/netsift/flowtriage/internal/classify"
	"github.com/netsift/flowtriage/internal/httpserver"
	"github.com/netsift/flowtriage/internal/svm"
)

// Build variables - set by ldflags during build.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var configPath string
	var showVersion bool

	flag.StringVar(&configPath, "config", "", "config file (default is $HOME/.config/flowtriage/config.yml)")
	flag.BoolVar(&showVersion, "version", false, "print version information")
	flag.Parse()

	if showVersion {
		fmt.Printf("flowtriage-server %s (%s)\n", version, commit)
		return
	}

	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := runServer(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(configPath string) (appConfig, error) {
	var cfg appConfig

	v := viper.New()
	v.SetEnvPrefix("FLOWTRIAGE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("host", defaultBindHost)
	v.SetDefault("port", defaultPort)
	v.SetDefault("models-dir", defaultModelsDir)
	v.SetDefault("archive-enabled", false)
	v.SetDefault("archive-path", defaultArchivePath)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else if home, err := os.UserHomeDir(); err == nil {
		v.SetConfigFile(filepath.Join(home, ".config", "flowtriage", "config.yml"))
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	cfg.ConfigPath = v.ConfigFileUsed()
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return cfg, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.ArchiveEnabled && cfg.ArchivePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return cfg, fmt.Errorf("finding home directory: %w", err)
		}
		cfg.ArchivePath = filepath.Join(home, ".local", "share", "flowtriage", "archive.duckdb")
	}

	return cfg, nil
}

func runServer(cfg appConfig) error {
	// Load both models before the listener opens. A missing or corrupt
	// artifact is fatal; the service never runs with one model.
	store, err := svm.Load(
		filepath.Join(cfg.ModelsDir, svm.BinaryModelFile),
		filepath.Join(cfg.ModelsDir, svm.SecondaryModelFile),
	)
	if err != nil {
		return fmt.Errorf("loading models: %w", err)
	}

	var arch *archive.Store
	if cfg.ArchiveEnabled {
		arch, err = archive.NewStore(cfg.ArchivePath)
		if err != nil {
			return fmt.Errorf("opening archive: %w", err)
		}
		defer arch.Close()
	}

	server := httpserver.NewServer(cfg.listenAddr(), classify.New(store), arch)
	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	defer server.Stop()
	server.SetReady()

	printStartupBanner(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	fmt.Println("\nShutting down...")
	return nil
}

func printStartupBanner(cfg appConfig) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")

	var lines []string
	lines = append(lines, "")
	lines = append(lines, bold.Render("  flowtriage-server ")+dim.Render("v"+version))
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("  %s  HTTP API    %s", check, cyan.Render(cfg.listenAddr())))
	lines = append(lines, fmt.Sprintf("  %s  Models      %s", check, dim.Render(cfg.ModelsDir)))
	if cfg.ArchiveEnabled {
		lines = append(lines, fmt.Sprintf("  %s  Archive     %s", check, dim.Render(cfg.ArchivePath)))
	} else {
		lines = append(lines, fmt.Sprintf("  %s  Archive     %s", dot, dim.Render("disabled")))
	}
	if cfg.ConfigPath != "" {
		lines = append(lines, fmt.Sprintf("  %s  Config      %s", check, dim.Render(cfg.ConfigPath)))
	}
	lines = append(lines, "")
	lines = append(lines, "  "+dim.Render("Press Ctrl+C to stop"))
	lines = append(lines, "")

	fmt.Println(strings.Join(lines, "\n"))
}

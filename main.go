package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"
)

// Build information injected via ldflags, e.g.
// -ldflags="-X main.version=v1.0.0".
var version = "dev"

const tagline = "Find and delete node_modules directories"

// CLI flags override environment variables, which override the config file.
// Pointer fields distinguish "not given" from an explicit zero.
var cli struct {
	Path    string           `arg:"" optional:"" default:"." type:"path" help:"Directory to scan."`
	Depth   *int             `short:"d" env:"NODEKILL_DEPTH" placeholder:"N" help:"Maximum directory depth to scan (0 = unlimited)."`
	Workers *int             `short:"w" env:"NODEKILL_WORKERS" placeholder:"N" help:"Concurrent directory size workers."`
	Skip    []string         `env:"NODEKILL_SKIP" placeholder:"NAME" help:"Extra directory names to skip while scanning."`
	Config  string           `short:"c" env:"NODEKILL_CONFIG" type:"path" placeholder:"FILE" help:"Path to a JSON config file."`
	Version kong.VersionFlag `help:"Show version information"`
}

func main() {
	kong.Parse(&cli,
		kong.Name("nodekill"),
		kong.Description(tagline),
		kong.Vars{"version": fmt.Sprintf("nodekill %s", version)},
		kong.UsageOnError(),
	)

	if err := initLogging(); err != nil {
		fmt.Fprintln(os.Stderr, "Error setting up logging:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	absRoot, err := filepath.Abs(cli.Path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error resolving path:", err)
		os.Exit(1)
	}

	rootHandle, err := os.OpenRoot(absRoot)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error opening root:", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := rootHandle.Close(); closeErr != nil {
			fmt.Fprintln(os.Stderr, "Error closing root:", closeErr)
		}
	}()

	config := Config{}
	if path, ok, err := resolveConfigPath(absRoot, cli.Config); err != nil {
		fmt.Fprintln(os.Stderr, "Error resolving config:", err)
		os.Exit(1)
	} else if ok {
		config, err = loadConfig(path)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error loading config:", err)
			os.Exit(1)
		}
		slog.Info("loaded config", "path", path, "depth", config.Depth, "workers", config.Workers, "skip", config.Skip)
	}

	depth := config.Depth
	if cli.Depth != nil {
		depth = *cli.Depth
	}
	if depth < 0 {
		depth = 0
	}
	workers := config.Workers
	if cli.Workers != nil {
		workers = *cli.Workers
	}
	if workers < 0 {
		workers = 0
	}
	skip := mergeSkipDirs(defaultSkipDirs(), config.Skip)
	skip = mergeSkipDirs(skip, cli.Skip)

	home, err := os.UserHomeDir()
	if err != nil {
		// Without a home directory the home-relative sensitivity rules
		// cannot apply; system-level rules still do.
		home = ""
	}

	opts := ScanOptions{
		Root:       absRoot,
		RootHandle: rootHandle,
		Home:       home,
		MaxDepth:   depth,
		Workers:    workers,
		SkipDirs:   skip,
	}

	m := NewModel(ctx, opts)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error running program:", err)
		os.Exit(1)
	}
}

// palaver - a terminal client for remote agent chat sessions.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/palaverhq/palaver-tui/internal/commands"
	"github.com/palaverhq/palaver-tui/internal/config"
	"github.com/palaverhq/palaver-tui/internal/history"
	"github.com/palaverhq/palaver-tui/internal/rpc"
	"github.com/palaverhq/palaver-tui/internal/session"
	"github.com/palaverhq/palaver-tui/internal/ui/chat"
)

// Version information (set at build time)
var (
	Version   = "0.3.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		runTUI()
		return
	}

	switch args[0] {
	case "version", "--version", "-v":
		fmt.Printf("palaver %s (%s, built %s)\n", Version, GitCommit, BuildDate)
	case "status":
		handleStatus()
	case "config":
		handleConfig(args[1:])
	case "history":
		handleHistory(args[1:])
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`palaver - terminal client for remote agent sessions

Usage:
  palaver              Start the chat interface
  palaver status       Check gateway connectivity
  palaver config show  Print the active configuration
  palaver config path  Print the configuration file path
  palaver config init  Write a default configuration file
  palaver history prune  Remove expired usage history
  palaver version      Print version information`)
}

// =============================================================================
// TUI
// =============================================================================

func runTUI() {
	cfg := loadConfig()

	registry, err := commands.NewRegistry(commands.DefaultDescriptors()...)
	if err != nil {
		// Registry validation failures are programming errors; refuse to
		// start rather than run with a broken command set.
		fatal("invalid command registry: %v", err)
	}

	client := buildClient(cfg)

	var prober session.Prober
	if client.IsConfigured() {
		prober = client
	}
	sess := session.NewManager(session.Config{
		Timeout:       time.Duration(cfg.Session.IdleTimeoutSecs) * time.Second,
		WarningBefore: time.Duration(cfg.Session.WarningBeforeSecs) * time.Second,
	}, prober)

	dispatcher := commands.NewDispatcher(client, func(ctx context.Context, text string) error {
		return client.SendMessage(ctx, sess.SessionID(), text)
	})

	var hist *history.Store
	if cfg.History.Enabled {
		path := cfg.History.Path
		if path == "" {
			path, err = cfg.HistoryPath()
			if err != nil {
				path = ""
			}
		}
		if path != "" {
			hist, err = history.Open(path, time.Duration(cfg.History.RetentionDays)*24*time.Hour)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: command history disabled: %v\n", err)
				hist = nil
			}
		}
	}
	if hist != nil {
		defer hist.Close()
	}

	// Reload gateway settings when the config file changes on disk.
	watcher, werr := startConfigWatcher()
	if werr == nil && watcher != nil {
		defer watcher.Close()
	}

	model := chat.New(registry, dispatcher, sess, hist).
		WithMaxVisible(cfg.Palette.MaxVisible).
		WithRecentMarkers(cfg.Palette.ShowRecent)
	program := tea.NewProgram(model, tea.WithAltScreen())

	if _, err := program.Run(); err != nil {
		fatal("error running program: %v", err)
	}
}

// startConfigWatcher watches the config file; reloads are applied on the
// next program start. Watching is best-effort.
func startConfigWatcher() (*config.Watcher, error) {
	path, err := config.ConfigPath()
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	w, err := config.NewWatcher(path, func(c *config.Config) {
		// Nothing hot-swaps yet; the watcher validates edits as they land.
	})
	if err != nil {
		return nil, err
	}
	if err := w.Watch(); err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}

// =============================================================================
// SUBCOMMANDS
// =============================================================================

func handleStatus() {
	cfg := loadConfig()
	client := buildClient(cfg)

	if !client.IsConfigured() {
		fmt.Println("Gateway: not configured")
		fmt.Println("Set gateway.url and gateway.token in the config file,")
		fmt.Println("or export PALAVER_GATEWAY_URL and PALAVER_TOKEN.")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	start := time.Now()
	if err := client.Ping(ctx); err != nil {
		fmt.Printf("Gateway: unreachable (%v)\n", err)
		os.Exit(1)
	}
	fmt.Printf("Gateway: ok (%s, %s)\n", cfg.Gateway.URL, time.Since(start).Round(time.Millisecond))
}

func handleConfig(args []string) {
	sub := "show"
	if len(args) > 0 {
		sub = args[0]
	}

	switch sub {
	case "show":
		cfg := loadConfig()
		if err := toml.NewEncoder(os.Stdout).Encode(cfg); err != nil {
			fatal("could not render config: %v", err)
		}
	case "path":
		path, err := config.ConfigPath()
		if err != nil {
			fatal("could not resolve config path: %v", err)
		}
		fmt.Println(path)
	case "init":
		path, err := config.ConfigPath()
		if err != nil {
			fatal("could not resolve config path: %v", err)
		}
		if _, err := os.Stat(path); err == nil {
			fatal("config already exists at %s", path)
		}
		if err := config.Save(config.Default()); err != nil {
			fatal("could not write config: %v", err)
		}
		fmt.Printf("Wrote default config to %s\n", path)
	default:
		fatal("unknown config subcommand: %s", sub)
	}
}

func handleHistory(args []string) {
	if len(args) == 0 || args[0] != "prune" {
		fatal("usage: palaver history prune")
	}

	cfg := loadConfig()
	path := cfg.History.Path
	if path == "" {
		var err error
		path, err = cfg.HistoryPath()
		if err != nil {
			fatal("could not resolve history path: %v", err)
		}
	}

	store, err := history.Open(path, time.Duration(cfg.History.RetentionDays)*24*time.Hour)
	if err != nil {
		fatal("could not open history: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	removed, err := store.Prune(ctx)
	if err != nil {
		fatal("prune failed: %v", err)
	}
	fmt.Printf("Removed %d expired entries\n", removed)
}

// =============================================================================
// WIRING HELPERS
// =============================================================================

// loadConfig loads the config file. Load applies env overrides and
// validates; invalid configs refuse to start with per-field detail.
func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		var errs config.ValidateErrors
		if errors.As(err, &errs) {
			fmt.Fprintln(os.Stderr, "Invalid configuration:")
			for _, e := range errs {
				fmt.Fprintf(os.Stderr, "  - %v\n", e)
			}
			os.Exit(1)
		}
		fatal("could not load config: %v", err)
	}
	return cfg
}

// buildClient constructs the gateway client from config.
func buildClient(cfg *config.Config) *rpc.Client {
	return rpc.NewClient(cfg.Gateway.URL, cfg.Gateway.Token).
		WithTimeout(time.Duration(cfg.Gateway.TimeoutSecs) * time.Second).
		WithMaxRetries(cfg.Gateway.MaxRetries).
		WithRateLimit(cfg.Gateway.CallsPerSecond)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/example/tempvoice/internal/config"
	"github.com/example/tempvoice/internal/engine"
	"github.com/example/tempvoice/internal/logging"
	"github.com/example/tempvoice/internal/platform"
	"github.com/example/tempvoice/internal/platform/sim"
	"github.com/example/tempvoice/internal/snapshot"
)

func main() {
	var (
		configPath string
		simulation bool
	)
	pflag.StringVar(&configPath, "config", "", "path to the YAML configuration file")
	pflag.BoolVar(&simulation, "sim", false, "run against the in-memory platform with a stdin command loop")
	pflag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if simulation {
		cfg.Simulation = true
	}

	logger := logging.NewLogger(logging.Options{
		Level:      cfg.Log.Level,
		FilePath:   cfg.Log.FilePath,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := snapshot.Open(cfg.Snapshot.Path)
	if err != nil {
		logger.Error("failed to open snapshot store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("failed to close snapshot store", "error", cerr)
		}
	}()
	if err := store.Migrate(ctx); err != nil {
		logger.Error("failed to apply snapshot migrations", "error", err)
		os.Exit(1)
	}

	if !cfg.Simulation {
		logger.Error("no platform transport configured; run with --sim for the in-memory platform")
		os.Exit(1)
	}

	if err := runSimulation(ctx, os.Stdin, store, logger); err != nil {
		logger.Error("simulation loop failed", "error", err)
		os.Exit(1)
	}
}

const (
	simCommunity = "community-sim"
	simOperator  = "operator"
)

// runSimulation drives the engine against the in-memory platform: one
// seeded community with an operator in a lobby channel, and an input loop
// where each line is dispatched as a command from the operator. A final
// snapshot is written on shutdown, whether the loop ends by cancellation or
// by input EOF.
func runSimulation(ctx context.Context, input io.Reader, store *snapshot.Store, logger *slog.Logger) error {
	// Input EOF must stop the sweeper too, not just the signal handler.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := sim.New(platform.Member{ID: "bot", Name: "tempvoice"})
	p.AddCommunity(simCommunity)
	p.AddMember(simCommunity, platform.Member{ID: simOperator, Name: "operator"})
	p.SeedVoiceChannel(simCommunity, "lobby", "Lobby", "")
	p.SeedTextChannel(simCommunity, "console", "console", "")
	p.Connect(simOperator, "lobby")

	e := engine.New(p, store, logger)
	e.HandleReady(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		e.RunSweeper(ctx)
	}()

	logger.Info("simulation ready", "community", simCommunity, "operator", simOperator)
	fmt.Println("tempvoice simulation; type commands (e.g. `c -n my room`), Ctrl-D or Ctrl-C to exit")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(input)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	printedChannel, printedDirect := 0, 0
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			e.HandleCommand(ctx, engine.CommandContext{
				Community: simCommunity,
				Channel:   "console",
				Author:    platform.Member{ID: simOperator, Name: "operator"},
				Text:      line,
			})
			channelMsgs := p.ChannelMessages("console")
			for _, msg := range channelMsgs[printedChannel:] {
				fmt.Println(msg)
			}
			printedChannel = len(channelMsgs)
			directMsgs := p.DirectMessages(simOperator)
			for _, msg := range directMsgs[printedDirect:] {
				fmt.Println("[dm]", msg)
			}
			printedDirect = len(directMsgs)
		}
	}

	cancel()
	wg.Wait()

	if err := e.SaveSnapshot(context.Background()); err != nil {
		return fmt.Errorf("final snapshot: %w", err)
	}
	logger.Info("simulation stopped")
	return nil
}

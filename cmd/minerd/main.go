package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/modoterra/minermock/internal/buildinfo"
	"github.com/modoterra/minermock/pkg/config"
	"github.com/modoterra/minermock/pkg/sim"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("minerd %s (%s) built %s\n", buildinfo.Version, buildinfo.Commit, buildinfo.Date)
		return
	}

	configPath := flag.String("config", config.DefaultPath, "path to minermock.yaml")
	logPath := flag.String("log", "", "log file (overrides miner.log_file)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		logger.Error("config load failed", "path", *configPath, "err", err)
		os.Exit(1)
	}
	if *logPath != "" {
		cfg.Miner.LogFile = *logPath
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		for _, e := range errs {
			logger.Error("config validation", "err", e)
		}
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The handler only cancels; the simulator writes its summary on the way out.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	logger.Info("starting minerd", "version", buildinfo.Version, "log", cfg.Miner.LogFile)
	if _, err := sim.RunFile(ctx, cfg.Miner, os.Stdout, logger); err != nil {
		logger.Error("miner error", "err", err)
		os.Exit(1)
	}
}

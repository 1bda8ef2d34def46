// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Command couchplay negotiates a stream for one media item against a Jellyfin-style
// server and serves the live session state until interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/couchplay/internal/config"
	"github.com/ManuGH/couchplay/internal/log"
	"github.com/ManuGH/couchplay/internal/version"
)

const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) > 0 && args[0] == "healthcheck" {
		return runHealthcheck(args[1:], os.Stdout, os.Stderr)
	}

	fset := flag.NewFlagSet("couchplay", flag.ContinueOnError)
	showVersion := fset.Bool("version", false, "print version and exit")
	configPath := fset.String("config", "", "path to config file (YAML)")
	envFile := fset.String("env-file", ".env", "optional dotenv file loaded before the environment is read")
	itemID := fset.String("item", "", "media item id to start a session for")
	fromStart := fset.Bool("from-start", false, "ignore the saved resume position")
	printConfig := fset.Bool("print-config", false, "print the effective configuration and exit")
	if err := fset.Parse(args); err != nil {
		return 2
	}

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		return 0
	}

	log.Configure(log.Config{Level: "info", Service: "couchplay", Version: version.Version})
	logger := log.WithComponent("main")

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Warn().Err(err).Str(log.FieldEvent, "config.dotenv_failed").Str("path", *envFile).Msg("could not read dotenv file")
		}
	}

	loader := config.NewLoader(strings.TrimSpace(*configPath))
	cfg, err := loader.Load()
	if err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "config.load_failed").Str("path", loader.Path()).Msg("failed to load configuration")
		return 1
	}
	if *printConfig {
		fmt.Print(cfg.String())
		return 0
	}

	log.Configure(log.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Service: "couchplay", Version: version.Version})
	logger = log.WithComponent("main")
	logger.Info().
		Str(log.FieldEvent, "config.loaded").
		Str("path", loader.Path()).
		Str("server", maskURL(cfg.Server.BaseURL)).
		Str("storage", cfg.Storage.Backend).
		Msg("configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "startup.failed").Msg("startup failed")
		return 1
	}

	holder := config.NewHolder(cfg, loader)
	holder.OnReload(config.ApplyLogLevel)
	if err := holder.Watch(ctx); err != nil {
		logger.Warn().Err(err).Str(log.FieldEvent, "config.watch_failed").Msg("config hot reload disabled")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.api.Run(gctx) })
	g.Go(func() error {
		a.observe(gctx)
		return nil
	})
	if id := strings.TrimSpace(*itemID); id != "" {
		g.Go(func() error { return a.start(gctx, id, *fromStart) })
	} else {
		logger.Info().Str(log.FieldEvent, "session.idle").Msg("no -item given, serving idle session")
	}

	runErr := g.Wait()
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.Error().Err(runErr).Str(log.FieldEvent, "run.failed").Msg("couchplay stopped with error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	a.shutdown(shutdownCtx)
	holder.Wait()

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return 1
	}
	logger.Info().Str(log.FieldEvent, "shutdown.complete").Msg("bye")
	return 0
}

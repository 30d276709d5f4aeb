package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"AaveRisk/internal/di"
	"AaveRisk/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML configuration")
	checkOnly := flag.Bool("check", false, "validate the configuration and exit")
	ingestOnce := flag.Bool("ingest-once", false, "run one daily OHLC ingestion pass and exit")
	flag.Parse()

	if err := run(*configPath, *checkOnly, *ingestOnce); err != nil {
		fmt.Fprintln(os.Stderr, "aaverisk:", err)
		os.Exit(1)
	}
}

func run(path string, checkOnly, ingestOnce bool) error {
	cfg, err := config.LoadWithEnv(path)
	if err != nil {
		return err
	}
	if checkOnly {
		fmt.Printf("config ok: env=%s backend=%s markets=%d version=%d\n",
			cfg.Environment, cfg.Backend.Type, len(cfg.Markets), cfg.MarketsVersion)
		return nil
	}

	app, err := di.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	if !ingestOnce {
		return app.Run()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	_, err = app.IngestOnce(ctx)
	return err
}

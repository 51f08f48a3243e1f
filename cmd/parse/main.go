package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/2haed/cs-market/internal/app"
	"github.com/2haed/cs-market/internal/config"
	"github.com/2haed/cs-market/internal/logging"
)

var itemType = flag.String("type", config.TypeBoth, "item type to parse: knife, glove or both")

func main() {
	flag.Parse()
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logFile, err := logging.Setup(cfg.LogFile)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.Pipeline.ParseItems(ctx, *itemType)
	if err != nil {
		return fmt.Errorf("parsing failed: %w", err)
	}
	log.Println(report)
	return nil
}

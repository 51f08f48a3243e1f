package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/2haed/cs-market/internal/app"
	"github.com/2haed/cs-market/internal/config"
	"github.com/2haed/cs-market/internal/dialog"
	"github.com/2haed/cs-market/internal/logging"
	"github.com/2haed/cs-market/internal/services/adjuster"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logFile, err := logging.Setup(cfg.LogFile)
	if err != nil {
		log.Fatal("Failed to set up logging:", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	outcomes, err := a.Adjuster.Adjust(ctx)
	switch {
	case errors.Is(err, adjuster.ErrNothingToAdjust):
		log.Println("Nothing to adjust")
	case err != nil:
		log.Printf("Price adjustment failed: %v", err)
	}
	if len(outcomes) > 0 {
		log.Println(dialog.FormatOutcomes(outcomes))
	}
}

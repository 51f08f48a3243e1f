package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/2haed/cs-market/internal/api"
	"github.com/2haed/cs-market/internal/app"
	"github.com/2haed/cs-market/internal/config"
	"github.com/2haed/cs-market/internal/logging"
	"github.com/2haed/cs-market/internal/scheduler"

	"github.com/gin-gonic/gin"
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

	if cfg.Market.APIKey == "" {
		log.Println("MARKET_API_KEY is not set, item info and repricing requests will be rejected")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	var sched *scheduler.Scheduler
	if cfg.Schedule.Enabled {
		sched = scheduler.New(cfg.Schedule, a.Pipeline)
		if err := sched.Start(ctx); err != nil {
			log.Fatal(err)
		}
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	r.Use(api.CORS())

	apiGroup := r.Group("/api/v1")
	api.SetupRoutes(apiGroup, api.Deps{
		Parser:   a.Pipeline,
		Adjuster: a.Adjuster,
		Store:    a.Store,
		Dialog:   a.Dialog,
		Catalog:  cfg.Catalog,
		Metrics:  a.Metrics,
		Gatherer: a.Registry,
		Health:   a.Health,
	})
	r.GET("/health", func(c *gin.Context) {
		if err := a.Health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down")

	if sched != nil {
		sched.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown: %v", err)
	}
}

// Package app wires configuration, storage and upstream clients into the
// pipeline, the adjuster and the dialog engine.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/2haed/cs-market/internal/config"
	"github.com/2haed/cs-market/internal/database"
	"github.com/2haed/cs-market/internal/dialog"
	"github.com/2haed/cs-market/internal/metrics"
	"github.com/2haed/cs-market/internal/pipeline"
	"github.com/2haed/cs-market/internal/services/adjuster"
	"github.com/2haed/cs-market/internal/services/lisskins"
	"github.com/2haed/cs-market/internal/services/market"
	"github.com/2haed/cs-market/internal/services/rate"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	runLockKey    = "csmarket:run-lock"
	sessionPrefix = "csmarket:session"
)

type App struct {
	Config   *config.Config
	DB       *gorm.DB
	Store    *database.Store
	Pipeline *pipeline.Pipeline
	Adjuster *adjuster.Adjuster
	Dialog   *dialog.Engine
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry

	closers []io.Closer
}

// New connects to the database (and Redis when configured) and builds every
// component. Close releases what New opened.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := database.Initialize(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return build(ctx, cfg, db)
}

// build owns db from here on: it is closed if anything below fails.
func build(ctx context.Context, cfg *config.Config, db *gorm.DB) (_ *App, err error) {
	a := &App{Config: cfg, DB: db, Store: database.NewStore(db)}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.Metrics = metrics.New()
	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := a.Metrics.Register(a.Registry); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	var (
		locker   pipeline.Locker
		sessions dialog.SessionStore
	)
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.closers = append(a.closers, rdb)
		locker = pipeline.NewRedisLocker(rdb, runLockKey, cfg.Redis.LockTTL)
		sessions = dialog.NewRedisStore(rdb, cfg.Redis.SessionTTL, sessionPrefix)
		log.Printf("Using redis at %s for sessions and the run lock", cfg.Redis.Addr)
	} else {
		mem := dialog.NewMemoryStore(cfg.Redis.SessionTTL, cfg.Redis.SessionTTL)
		a.closers = append(a.closers, mem)
		locker = pipeline.NewMutexLocker()
		sessions = mem
	}

	marketClient := market.NewClient(cfg.Market)
	a.Pipeline = pipeline.New(pipeline.Deps{
		Market:   marketClient,
		LisSkins: lisskins.NewClient(cfg.LisSkins.ExportURL, cfg.LisSkins.Timeout),
		Rates:    rate.NewProvider(cfg.Rate.URL, cfg.Rate.Fallback, cfg.Rate.Markup, cfg.Rate.Timeout),
		Store:    a.Store,
		Catalog:  cfg.Catalog,
		Locker:   locker,
		Metrics:  a.Metrics,
	}, pipeline.OptionsFromConfig(cfg))

	a.Adjuster = adjuster.New(marketClient, cfg.Market.ListCurrency, cfg.Market.RepriceDelay)
	a.Adjuster.SetMetrics(a.Metrics)

	a.Dialog = dialog.NewEngine(dialog.Deps{
		Sessions: sessions,
		Catalog:  cfg.Catalog,
		Parser:   a.Pipeline,
		Adjuster: a.Adjuster,
		Ranking:  a.Store,
	})
	return a, nil
}

// Health pings the database.
func (a *App) Health(ctx context.Context) error {
	return database.Ping(ctx, a.DB)
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		errs = append(errs, sqlDB.Close())
	}
	return errors.Join(errs...)
}

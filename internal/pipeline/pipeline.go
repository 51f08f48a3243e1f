// Package pipeline runs one parsing pass: market.csgo.com export and sale
// statistics, lis-skins listings, conversion and a single persisted upsert.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/2haed/cs-market/internal/config"
	"github.com/2haed/cs-market/internal/metrics"
	"github.com/2haed/cs-market/internal/models"
	"github.com/2haed/cs-market/internal/services/market"
	"github.com/2haed/cs-market/internal/services/stats"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const statTrak = "StatTrak"

// MarketSource is the market.csgo.com surface used by a run.
type MarketSource interface {
	ExportIndex(ctx context.Context, file string) (*market.ExportIndex, error)
	ItemFile(ctx context.Context, file string, schema *market.Schema) ([]models.ItemDescriptor, error)
	CurrentPrices(ctx context.Context, currency string) (models.PriceSnapshot, error)
	ItemInfoBulk(ctx context.Context, names []string) (map[string]market.RawStats, error)
}

type ListingSource interface {
	Listings(ctx context.Context, filters []string) ([]models.Listing, error)
}

type RateSource interface {
	ConversionRate(ctx context.Context) float64
}

type Store interface {
	SaveRun(ctx context.Context, listings []models.Listing, stats map[string]models.ItemStats) error
}

// Deps are the collaborators of a Pipeline. Locker and Metrics default to an
// in-process mutex and unregistered collectors.
type Deps struct {
	Market   MarketSource
	LisSkins ListingSource
	Rates    RateSource
	Store    Store
	Catalog  *config.Catalog
	Locker   Locker
	Metrics  *metrics.Metrics
}

type Options struct {
	ExportFile       string
	PriceCurrency    string
	ItemURL          string
	ShardWorkers     int
	ShardSubmitDelay time.Duration
	BatchSize        int
	BatchDelay       time.Duration
}

// OptionsFromConfig maps the loaded configuration onto pipeline options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		ExportFile:       cfg.Market.ExportFile,
		PriceCurrency:    cfg.Pipeline.PriceCurrency,
		ItemURL:          cfg.Market.ItemURL,
		ShardWorkers:     cfg.Pipeline.ShardWorkers,
		ShardSubmitDelay: cfg.Pipeline.ShardSubmitDelay,
		BatchSize:        cfg.Pipeline.BatchSize,
		BatchDelay:       cfg.Pipeline.BatchDelay,
	}
}

type Pipeline struct {
	deps Deps
	opts Options
	now  func() time.Time
}

func New(deps Deps, opts Options) *Pipeline {
	if deps.Locker == nil {
		deps.Locker = NewMutexLocker()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	if deps.Catalog == nil {
		deps.Catalog = config.DefaultCatalog()
	}
	if opts.ShardWorkers <= 0 {
		opts.ShardWorkers = 20
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 30
	}
	if opts.PriceCurrency == "" {
		opts.PriceCurrency = "USD"
	}
	return &Pipeline{deps: deps, opts: opts, now: time.Now}
}

// ParseItems runs one full pass for itemType (knife, glove or both). Upstream
// fetch failures are logged and counted in the report; only an unusable export
// index, cancellation or a persistence error fail the run.
func (p *Pipeline) ParseItems(ctx context.Context, itemType string) (*RunReport, error) {
	filters, categories, err := p.deps.Catalog.Filter(itemType)
	if err != nil {
		p.deps.Metrics.RunsTotal.WithLabelValues(itemType, "invalid").Inc()
		return nil, err
	}

	unlock, err := p.deps.Locker.Lock(ctx)
	if err != nil {
		if errors.Is(err, ErrRunInProgress) {
			p.deps.Metrics.RunsTotal.WithLabelValues(itemType, "busy").Inc()
		}
		return nil, err
	}
	defer unlock()

	report := &RunReport{ID: uuid.NewString(), ItemType: itemType, StartedAt: p.now()}
	log.Printf("[Pipeline] run %s started for %s", report.ID, itemType)

	err = p.run(ctx, report, filters, categories)
	report.Duration = p.now().Sub(report.StartedAt)
	p.deps.Metrics.RunDuration.WithLabelValues(itemType).Observe(report.Duration.Seconds())
	if err != nil {
		p.deps.Metrics.RunsTotal.WithLabelValues(itemType, "error").Inc()
		log.Printf("[Pipeline] run %s failed after %s: %v", report.ID, report.Duration, err)
		return report, err
	}

	p.deps.Metrics.RunsTotal.WithLabelValues(itemType, "ok").Inc()
	log.Printf("[Pipeline] run %s finished in %s: %s", report.ID, report.Duration, report)
	return report, nil
}

func (p *Pipeline) run(ctx context.Context, report *RunReport, filters, categories []string) error {
	idx, err := p.deps.Market.ExportIndex(ctx, p.opts.ExportFile)
	if err != nil {
		p.deps.Metrics.SourceErrors.WithLabelValues("export_index").Inc()
		return fmt.Errorf("export index: %w", err)
	}
	report.SchemaVersion = idx.Schema.Version
	report.Shards = len(idx.Files)

	descriptors, err := p.fetchShards(ctx, idx, report)
	if err != nil {
		return err
	}
	report.Descriptors = len(descriptors)

	names := selectNames(descriptors, categories)
	report.Names = len(names)

	prices, err := p.deps.Market.CurrentPrices(ctx, p.opts.PriceCurrency)
	if err != nil {
		log.Printf("[Pipeline] current prices unavailable: %v", err)
		p.deps.Metrics.SourceErrors.WithLabelValues("current_prices").Inc()
		report.PricesFailed = true
		prices = models.PriceSnapshot{}
	}

	raw, err := p.fetchStats(ctx, names, report)
	if err != nil {
		return err
	}

	report.Rate = p.deps.Rates.ConversionRate(ctx)
	converted := stats.Convert(stats.Normalize(raw, prices, p.now(), p.opts.ItemURL), report.Rate)
	report.Stats = len(converted)

	listings, err := p.deps.LisSkins.Listings(ctx, filters)
	if err != nil {
		log.Printf("[Pipeline] lis-skins listings unavailable: %v", err)
		p.deps.Metrics.SourceErrors.WithLabelValues("lisskins").Inc()
		report.ListingsFailed = true
		listings = nil
	}
	report.Listings = len(listings)

	if err := p.deps.Store.SaveRun(ctx, listings, converted); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	p.deps.Metrics.RowsUpserted.WithLabelValues("market_items").Add(float64(len(converted)))
	p.deps.Metrics.RowsUpserted.WithLabelValues("lisskins_items").Add(float64(len(listings)))
	return nil
}

// fetchShards downloads every export shard with a bounded pool. Results keep
// submission order regardless of completion order.
func (p *Pipeline) fetchShards(ctx context.Context, idx *market.ExportIndex, report *RunReport) ([]models.ItemDescriptor, error) {
	results := make([][]models.ItemDescriptor, len(idx.Files))
	errs := make([]error, len(idx.Files))
	limiter := rate.NewLimiter(rate.Every(p.opts.ShardSubmitDelay), 1)

	var g errgroup.Group
	g.SetLimit(p.opts.ShardWorkers)
	var waitErr error
	for i, file := range idx.Files {
		if waitErr = limiter.Wait(ctx); waitErr != nil {
			break
		}
		i, file := i, file
		g.Go(func() error {
			items, err := p.deps.Market.ItemFile(ctx, file, idx.Schema)
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i] = items
			return nil
		})
	}
	_ = g.Wait()
	if waitErr != nil {
		return nil, fmt.Errorf("fetch shards: %w", waitErr)
	}

	var out []models.ItemDescriptor
	for i, items := range results {
		if errs[i] != nil {
			log.Printf("[Pipeline] shard %s skipped: %v", idx.Files[i], errs[i])
			report.FailedShards++
			p.deps.Metrics.ShardFailures.Inc()
			continue
		}
		out = append(out, items...)
	}
	return out, nil
}

// fetchStats requests item info in sequential batches paced by BatchDelay. A
// failed batch is logged and skipped.
func (p *Pipeline) fetchStats(ctx context.Context, names []string, report *RunReport) (map[string]market.RawStats, error) {
	all := make(map[string]market.RawStats, len(names))
	limiter := rate.NewLimiter(rate.Every(p.opts.BatchDelay), 1)

	for start := 0; start < len(names); start += p.opts.BatchSize {
		end := min(start+p.opts.BatchSize, len(names))
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("fetch item info: %w", err)
		}

		report.Batches++
		batch, err := p.deps.Market.ItemInfoBulk(ctx, names[start:end])
		if err != nil {
			log.Printf("[Pipeline] item info batch %d-%d skipped: %v", start, end, err)
			report.FailedBatches++
			p.deps.Metrics.BatchFailures.Inc()
			continue
		}
		for name, st := range batch {
			all[name] = st
		}
		log.Printf("[Pipeline] processed %d out of %d", end, len(names))
	}
	return all, nil
}

// selectNames keeps descriptors of the wanted categories, de-duplicated in
// first-seen order, without StatTrak variants.
func selectNames(descriptors []models.ItemDescriptor, categories []string) []string {
	wanted := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		wanted[c] = struct{}{}
	}

	seen := make(map[string]struct{})
	var names []string
	for _, d := range descriptors {
		if _, ok := wanted[d.Type]; !ok {
			continue
		}
		if _, dup := seen[d.MarketHashName]; dup {
			continue
		}
		seen[d.MarketHashName] = struct{}{}
		if strings.Contains(d.MarketHashName, statTrak) {
			continue
		}
		names = append(names, d.MarketHashName)
	}
	return names
}

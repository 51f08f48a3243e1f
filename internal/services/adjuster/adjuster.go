// Package adjuster keeps the operator's market.csgo.com listings one minor unit
// below the current best offer.
package adjuster

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/2haed/cs-market/internal/metrics"
	"github.com/2haed/cs-market/internal/models"

	"github.com/shopspring/decimal"
)

var ErrNothingToAdjust = errors.New("nothing to adjust")

// undercut is subtracted from the market price to get the target.
var undercut = decimal.RequireFromString("0.01")

// Market is the part of the market.csgo.com client the adjuster needs.
type Market interface {
	ListedItems(ctx context.Context) ([]models.ListedItem, error)
	CurrentPrices(ctx context.Context, currency string) (models.PriceSnapshot, error)
	SetPrice(ctx context.Context, itemID string, price float64, currency string) error
}

// Outcome is the result for one active listing.
type Outcome struct {
	Name     string  `json:"name"`
	ItemID   string  `json:"item_id"`
	OldPrice float64 `json:"old_price"`
	NewPrice float64 `json:"new_price"`
	Currency string  `json:"currency"`
	Repriced bool    `json:"repriced"`
	Accepted bool    `json:"accepted"`
	Error    string  `json:"error,omitempty"`
}

func (o Outcome) String() string {
	if !o.Repriced {
		return fmt.Sprintf("%s: %.2f %s (optimal)", o.Name, o.OldPrice, o.Currency)
	}
	status := "ok"
	if !o.Accepted {
		status = "rejected: " + o.Error
	}
	return fmt.Sprintf("%s: %.2f %s -> %.2f %s (%s)", o.Name, o.OldPrice, o.Currency, o.NewPrice, o.Currency, status)
}

type Adjuster struct {
	market   Market
	currency string
	delay    time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
	metrics  *metrics.Metrics
}

func New(market Market, currency string, delay time.Duration) *Adjuster {
	return &Adjuster{
		market:   market,
		currency: currency,
		delay:    delay,
		sleep:    sleepCtx,
	}
}

// SetMetrics enables the reprices_total counter.
func (a *Adjuster) SetMetrics(m *metrics.Metrics) {
	a.metrics = m
}

func (a *Adjuster) record(o Outcome) {
	if a.metrics == nil {
		return
	}
	result := "optimal"
	switch {
	case o.Repriced && o.Accepted:
		result = "accepted"
	case o.Repriced:
		result = "rejected"
	}
	a.metrics.Reprices.WithLabelValues(result).Inc()
}

// Adjust re-prices every active listing whose price is above market-0.01.
// Every SetPrice call is followed by the configured delay.
func (a *Adjuster) Adjust(ctx context.Context) ([]Outcome, error) {
	items, err := a.market.ListedItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrNothingToAdjust
	}

	prices, err := a.market.CurrentPrices(ctx, a.currency)
	if err != nil {
		return nil, fmt.Errorf("current prices: %w", err)
	}

	outcomes := make([]Outcome, 0, len(items))
	for _, item := range items {
		if item.Status != models.ListedStatusActive {
			continue
		}
		market, ok := prices[item.MarketHashName]
		if !ok || market.CurrentPrice == 0 {
			continue
		}

		target := Target(market.CurrentPrice)
		out := Outcome{
			Name:     item.MarketHashName,
			ItemID:   item.ItemID,
			OldPrice: item.Price,
			NewPrice: item.Price,
			Currency: a.currency,
		}
		if item.Price > target {
			out.Repriced = true
			out.NewPrice = target
			if err := a.market.SetPrice(ctx, item.ItemID, target, a.currency); err != nil {
				log.Printf("[Adjuster] %s: set price %.2f failed: %v", item.MarketHashName, target, err)
				out.Error = err.Error()
			} else {
				out.Accepted = true
			}
			if err := a.sleep(ctx, a.delay); err != nil {
				a.record(out)
				outcomes = append(outcomes, out)
				return outcomes, err
			}
		}
		a.record(out)
		outcomes = append(outcomes, out)
	}

	log.Printf("[Adjuster] processed %d listings, %d outcomes", len(items), len(outcomes))
	return outcomes, nil
}

// Target is the market price minus 0.01, rounded to 2 decimals.
func Target(marketPrice float64) float64 {
	v, _ := decimal.NewFromFloat(marketPrice).Sub(undercut).Round(2).Float64()
	return v
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

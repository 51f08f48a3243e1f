// Package stats turns raw market.csgo.com sale history into the per-item
// statistics persisted in market_items.
package stats

import (
	"net/url"
	"time"

	"github.com/2haed/cs-market/internal/models"
	"github.com/2haed/cs-market/internal/services/market"

	"github.com/shopspring/decimal"
)

// Window is the trailing period used for the rolling average and sale count.
const Window = 7 * 24 * time.Hour

// Normalize computes the 7-day average and sale count for every item in raw.
// Sales at exactly now-Window are still counted. Items without recent sales fall
// back to the all-time average with Sales7d = 0.
func Normalize(raw map[string]market.RawStats, prices models.PriceSnapshot, now time.Time, itemURL string) map[string]models.ItemStats {
	cutoff := now.Add(-Window).Unix()
	out := make(map[string]models.ItemStats, len(raw))

	for name, st := range raw {
		sum := decimal.Zero
		count := 0
		for _, sale := range st.History {
			if sale.Timestamp >= cutoff {
				sum = sum.Add(decimal.NewFromFloat(sale.Price))
				count++
			}
		}

		item := models.ItemStats{
			Name:    name,
			Sales7d: count,
			URL:     itemURL + url.PathEscape(name),
		}
		if count > 0 {
			avg := sum.Div(decimal.NewFromInt(int64(count)))
			item.LastPrice = round2(avg)
		} else if st.Average != nil && *st.Average != 0 {
			item.LastPrice = round2(decimal.NewFromFloat(*st.Average))
		}
		if p, ok := prices[name]; ok {
			current := p.CurrentPrice
			item.CurrentPrice = &current
		}
		out[name] = item
	}
	return out
}

// Convert divides every LastPrice by rate. Missing or zero prices stay nil, and
// so does everything when rate is not positive.
func Convert(stats map[string]models.ItemStats, rate float64) map[string]models.ItemStats {
	out := make(map[string]models.ItemStats, len(stats))
	r := decimal.NewFromFloat(rate)

	for name, st := range stats {
		converted := st
		converted.LastPrice = nil
		if st.LastPrice != nil && *st.LastPrice != 0 && rate > 0 {
			converted.LastPrice = round2(decimal.NewFromFloat(*st.LastPrice).Div(r))
		}
		out[name] = converted
	}
	return out
}

func round2(d decimal.Decimal) *float64 {
	v, _ := d.Round(2).Float64()
	return &v
}

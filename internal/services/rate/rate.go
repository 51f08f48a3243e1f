package rate

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-resty/resty/v2"
)

// Provider fetches the RUB per USD rate from the CBR daily feed.
type Provider struct {
	url      string
	fallback float64
	markup   float64
	client   *resty.Client
}

type cbrDaily struct {
	Valute map[string]struct {
		Value *float64 `json:"Value"`
	} `json:"Valute"`
}

func NewProvider(url string, fallback, markup float64, timeout time.Duration) *Provider {
	client := resty.New()
	client.SetTimeout(timeout)

	return &Provider{
		url:      url,
		fallback: fallback,
		markup:   markup,
		client:   client,
	}
}

// ConversionRate never fails: any problem with the feed yields the fallback rate.
func (p *Provider) ConversionRate(ctx context.Context) float64 {
	rate, err := p.fetch(ctx)
	if err != nil {
		log.Printf("[Rate] using fallback %.2f: %v", p.fallback, err)
		return p.fallback
	}
	return rate + p.markup
}

func (p *Provider) fetch(ctx context.Context) (float64, error) {
	resp, err := p.client.R().SetContext(ctx).Get(p.url)
	if err != nil {
		return 0, err
	}
	if resp.IsError() {
		return 0, fmt.Errorf("rate feed returned HTTP %d", resp.StatusCode())
	}

	var daily cbrDaily
	if err := json.Unmarshal(resp.Body(), &daily); err != nil {
		return 0, fmt.Errorf("decode rate feed: %w", err)
	}
	usd, ok := daily.Valute["USD"]
	if !ok || usd.Value == nil {
		return 0, fmt.Errorf("rate feed has no USD value")
	}
	if *usd.Value <= 0 {
		return 0, fmt.Errorf("rate feed USD value %v is not positive", *usd.Value)
	}
	return *usd.Value, nil
}

package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/2haed/cs-market/internal/config"
	"github.com/2haed/cs-market/internal/models"

	"github.com/go-resty/resty/v2"
)

// Client talks to market.csgo.com: the public full export, the price feed and
// the key-authenticated v2 API.
type Client struct {
	apiKey  string
	baseURL string
	client  *resty.Client
	// stats requests may be retried; everything else is single shot
	statsClient *resty.Client
}

// ExportIndex lists the shard files of the full export and their field layout.
type ExportIndex struct {
	Currency string
	Schema   *Schema
	Files    []string
}

func NewClient(cfg config.MarketConfig) *Client {
	client := resty.New()
	client.SetTimeout(cfg.Timeout)

	statsClient := resty.New()
	statsClient.SetTimeout(cfg.Timeout)
	if cfg.StatsRetries > 0 {
		statsClient.
			SetRetryCount(cfg.StatsRetries).
			SetRetryWaitTime(time.Second).
			SetRetryMaxWaitTime(5 * time.Second).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				if err != nil {
					return true
				}
				return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
			})
	}

	return &Client{
		apiKey:      cfg.APIKey,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		client:      client,
		statsClient: statsClient,
	}
}

func (c *Client) get(ctx context.Context, client *resty.Client, path string, params url.Values) ([]byte, error) {
	req := client.R().SetContext(ctx)
	if params != nil {
		req.SetQueryParamsFromValues(params)
	}
	resp, err := req.Get(c.baseURL + path)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("GET %s: HTTP %d", path, resp.StatusCode())
	}
	return resp.Body(), nil
}

// ExportIndex fetches /api/full-export/<file>, e.g. USD.json.
func (c *Client) ExportIndex(ctx context.Context, file string) (*ExportIndex, error) {
	body, err := c.get(ctx, c.client, "/api/full-export/"+file, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch export index: %w", err)
	}

	var resp exportIndexResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode export index: %w", err)
	}
	schema, err := NewSchema(resp.Format)
	if err != nil {
		return nil, err
	}

	return &ExportIndex{Currency: resp.Currency, Schema: schema, Files: resp.Items}, nil
}

// ItemFile fetches one export shard and decodes it against the index schema.
func (c *Client) ItemFile(ctx context.Context, file string, schema *Schema) ([]models.ItemDescriptor, error) {
	body, err := c.get(ctx, c.client, "/api/full-export/"+file, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch shard %s: %w", file, err)
	}
	return schema.Decode(file, body)
}

// CurrentPrices returns the best offer per item. An unsuccessful feed yields an
// empty snapshot, not an error.
func (c *Client) CurrentPrices(ctx context.Context, currency string) (models.PriceSnapshot, error) {
	body, err := c.get(ctx, c.client, "/api/v2/prices/"+currency+".json", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch current prices: %w", err)
	}

	var resp pricesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode current prices: %w", err)
	}

	prices := make(models.PriceSnapshot, len(resp.Items))
	if !resp.Success {
		return prices, nil
	}
	for _, item := range resp.Items {
		if item.MarketHashName == "" {
			continue
		}
		prices[item.MarketHashName] = models.PricePoint{
			CurrentPrice: float64(item.Price),
			Volume:       int(item.Volume),
		}
	}
	return prices, nil
}

// ItemInfoBulk fetches sale history for a batch of names in one request.
func (c *Client) ItemInfoBulk(ctx context.Context, names []string) (map[string]RawStats, error) {
	if len(names) == 0 {
		return map[string]RawStats{}, nil
	}
	params := url.Values{
		"key":              {c.apiKey},
		"list_hash_name[]": names,
	}
	body, err := c.get(ctx, c.statsClient, "/api/v2/get-list-items-info", params)
	if err != nil {
		return nil, fmt.Errorf("fetch items info: %w", err)
	}

	var resp itemsInfoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode items info: %w", err)
	}
	if !resp.Success && resp.Error != "" {
		return nil, fmt.Errorf("items info rejected: %s", resp.Error)
	}
	if resp.Data == nil {
		return map[string]RawStats{}, nil
	}
	return resp.Data, nil
}

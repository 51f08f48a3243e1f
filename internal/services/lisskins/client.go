package lisskins

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/2haed/cs-market/internal/models"

	"github.com/go-resty/resty/v2"
)

// statTrak marks the variant we never track.
const statTrak = "StatTrak"

// Client reads the lis-skins.com public JSON export.
type Client struct {
	exportURL string
	client    *resty.Client
}

type exportEntry struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Count int     `json:"count"`
	URL   string  `json:"url"`
}

func NewClient(exportURL string, timeout time.Duration) *Client {
	client := resty.New()
	client.SetTimeout(timeout)
	return &Client{exportURL: exportURL, client: client}
}

// Listings downloads the whole export and keeps entries whose lower-cased name
// contains any of filters. Filters are expected lower-cased.
func (c *Client) Listings(ctx context.Context, filters []string) ([]models.Listing, error) {
	resp, err := c.client.R().SetContext(ctx).Get(c.exportURL)
	if err != nil {
		return nil, fmt.Errorf("fetch lis-skins export: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("lis-skins export returned HTTP %d", resp.StatusCode())
	}

	var entries []exportEntry
	if err := json.Unmarshal(resp.Body(), &entries); err != nil {
		return nil, fmt.Errorf("decode lis-skins export: %w", err)
	}

	return filter(entries, filters), nil
}

// filter applies the name match and drops StatTrak variants.
func filter(entries []exportEntry, filters []string) []models.Listing {
	out := make([]models.Listing, 0)
	for _, e := range entries {
		if strings.Contains(e.Name, statTrak) || !matchesAny(strings.ToLower(e.Name), filters) {
			continue
		}
		out = append(out, models.Listing{
			Name:  e.Name,
			Price: e.Price,
			Count: e.Count,
			URL:   strings.TrimSpace(e.URL),
		})
	}
	return out
}

func matchesAny(name string, filters []string) bool {
	for _, f := range filters {
		if strings.Contains(name, f) {
			return true
		}
	}
	return false
}

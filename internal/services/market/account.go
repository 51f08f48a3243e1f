package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/2haed/cs-market/internal/models"

	"github.com/shopspring/decimal"
)

var ErrRepriceRejected = errors.New("set-price rejected")

// ListedItems returns the operator's items currently placed on the market.
func (c *Client) ListedItems(ctx context.Context) ([]models.ListedItem, error) {
	body, err := c.get(ctx, c.client, "/api/v2/items", url.Values{"key": {c.apiKey}})
	if err != nil {
		return nil, fmt.Errorf("fetch listed items: %w", err)
	}

	var resp listedItemsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode listed items: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("failed to get items: %s", resp.Error)
	}

	items := make([]models.ListedItem, 0, len(resp.Items))
	for _, it := range resp.Items {
		items = append(items, models.ListedItem{
			ItemID:         string(it.ItemID),
			MarketHashName: it.MarketHashName,
			Price:          float64(it.Price),
			Currency:       it.Currency,
			Status:         string(it.Status),
		})
	}
	return items, nil
}

// SetPrice re-prices a listed item. The API takes prices in minor units.
func (c *Client) SetPrice(ctx context.Context, itemID string, price float64, currency string) error {
	params := url.Values{
		"key":     {c.apiKey},
		"item_id": {itemID},
		"price":   {strconv.FormatInt(MinorUnits(price), 10)},
		"cur":     {currency},
	}
	body, err := c.get(ctx, c.client, "/api/v2/set-price", params)
	if err != nil {
		return fmt.Errorf("set price for %s: %w", itemID, err)
	}

	var resp setPriceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("decode set-price for %s: %w", itemID, err)
	}
	if !resp.Success {
		return fmt.Errorf("%w: %s", ErrRepriceRejected, resp.Error)
	}
	return nil
}

// MinorUnits converts 123.45 to 12345.
func MinorUnits(price float64) int64 {
	return decimal.NewFromFloat(price).Shift(2).Round(0).IntPart()
}

package market

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// flexFloat accepts both 12.5 and "12.5"; market.csgo.com mixes the two.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %s: %w", string(b), err)
	}
	*f = flexFloat(v)
	return nil
}

// flexString accepts "1" and 1 alike.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*f = flexString(str)
		return nil
	}
	*f = flexString(s)
	return nil
}

// SalePoint is one historical sale: [unix_seconds, price].
type SalePoint struct {
	Timestamp int64
	Price     float64
}

func (p *SalePoint) UnmarshalJSON(b []byte) error {
	var pair []flexFloat
	if err := json.Unmarshal(b, &pair); err != nil {
		return fmt.Errorf("sale point: %w", err)
	}
	if len(pair) < 2 {
		return fmt.Errorf("sale point: expected [timestamp, price], got %s", string(b))
	}
	p.Timestamp = int64(pair[0])
	p.Price = float64(pair[1])
	return nil
}

// RawStats is the per-item payload of get-list-items-info.
type RawStats struct {
	Max     *float64    `json:"max,omitempty"`
	Min     *float64    `json:"min,omitempty"`
	Average *float64    `json:"average,omitempty"`
	History []SalePoint `json:"history"`
}

func (r *RawStats) UnmarshalJSON(b []byte) error {
	var wire struct {
		Max     *flexFloat  `json:"max"`
		Min     *flexFloat  `json:"min"`
		Average *flexFloat  `json:"average"`
		History []SalePoint `json:"history"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	r.Max = floatPtr(wire.Max)
	r.Min = floatPtr(wire.Min)
	r.Average = floatPtr(wire.Average)
	r.History = wire.History
	return nil
}

func floatPtr(f *flexFloat) *float64 {
	if f == nil {
		return nil
	}
	v := float64(*f)
	return &v
}

type exportIndexResponse struct {
	Currency string   `json:"currency"`
	Format   []string `json:"format"`
	Items    []string `json:"items"`
}

type pricesResponse struct {
	Success  bool   `json:"success"`
	Currency string `json:"currency"`
	Items    []struct {
		MarketHashName string    `json:"market_hash_name"`
		Price          flexFloat `json:"price"`
		Volume         flexFloat `json:"volume"`
	} `json:"items"`
}

type itemsInfoResponse struct {
	Success  bool                `json:"success"`
	Currency string              `json:"currency"`
	Data     map[string]RawStats `json:"data"`
	Error    string              `json:"error"`
}

type listedItemsResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Items   []struct {
		ItemID         flexString `json:"item_id"`
		MarketHashName string     `json:"market_hash_name"`
		Price          flexFloat  `json:"price"`
		Currency       string     `json:"currency"`
		Status         flexString `json:"status"`
	} `json:"items"`
}

type setPriceResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

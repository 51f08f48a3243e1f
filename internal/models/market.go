package models

// ItemDescriptor is one row of a Marketplace A export shard.
type ItemDescriptor struct {
	MarketHashName string `json:"market_hash_name"`
	Type           string `json:"type"`
	SourceFile     string `json:"source_file"`
}

// PricePoint is the current best offer and traded volume for one item.
type PricePoint struct {
	CurrentPrice float64 `json:"current_price"`
	Volume       int     `json:"volume"`
}

// PriceSnapshot maps market_hash_name to its current price.
type PriceSnapshot map[string]PricePoint

// ItemStats is the normalized statistic for one item before currency conversion.
type ItemStats struct {
	Name         string   `json:"name"`
	LastPrice    *float64 `json:"last_price"`
	Sales7d      int      `json:"sales_7d"`
	CurrentPrice *float64 `json:"current_price"`
	URL          string   `json:"url"`
}

// MarketItem turns converted stats into the persisted row.
func (s ItemStats) MarketItem() MarketItem {
	return MarketItem{
		ItemName:     s.Name,
		LastPrice:    s.LastPrice,
		CurrentPrice: s.CurrentPrice,
		Sales7d:      s.Sales7d,
		URL:          s.URL,
	}
}

// Listing is one priced offer group from lis-skins.
type Listing struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Count int     `json:"count"`
	URL   string  `json:"url"`
}

func (l Listing) LisSkinsItem() LisSkinsItem {
	return LisSkinsItem{Name: l.Name, Price: l.Price, Count: l.Count, URL: l.URL}
}

// ListedItem is one of the operator's own items on Marketplace A.
type ListedItem struct {
	ItemID         string  `json:"item_id"`
	MarketHashName string  `json:"market_hash_name"`
	Price          float64 `json:"price"`
	Currency       string  `json:"currency"`
	Status         string  `json:"status"`
}

// ListedStatusActive is the status Marketplace A reports for items on sale.
const ListedStatusActive = "1"

package models

import (
	"time"
)

// MarketItem is the latest converted market.csgo.com statistic for one item.
type MarketItem struct {
	ItemName     string   `json:"item_name" gorm:"column:item_name;primaryKey;size:255"`
	LastPrice    *float64 `json:"last_price" gorm:"column:last_price"`       // 7-day average, converted
	CurrentPrice *float64 `json:"current_price" gorm:"column:current_price"` // best offer right now
	Sales7d      int      `json:"sales_7d" gorm:"column:sales_7d;default:0"`
	URL          string   `json:"url" gorm:"column:url"`
}

func (MarketItem) TableName() string { return "market_items" }

// LisSkinsItem is the latest lis-skins.com offer for one item.
type LisSkinsItem struct {
	Name  string  `json:"name" gorm:"column:name;primaryKey;size:255"`
	Price float64 `json:"price" gorm:"column:price"`
	Count int     `json:"count" gorm:"column:count"`
	URL   string  `json:"url" gorm:"column:url"`
}

func (LisSkinsItem) TableName() string { return "lisskins_items" }

// Snapshot is a row of the externally maintained join of market and lis-skins prices.
// This service only reads it.
type Snapshot struct {
	FullName                     string   `json:"full_name" gorm:"column:full_name"`
	MarketPriceWithoutTax        *float64 `json:"market_price_without_tax" gorm:"column:market_price_without_tax"`
	MarketCurrentPriceWithoutTax *float64 `json:"market_current_price_without_tax" gorm:"column:market_current_price_without_tax"`
	LisSkinsPriceWithoutTax      *float64 `json:"lisskins_price_without_tax" gorm:"column:lisskins_price_without_tax"`
	NetProfit                    *float64 `json:"net_profit" gorm:"column:net_profit"`
	CurrentProfit                *float64 `json:"current_profit" gorm:"column:current_profit"`
	ROS                          *float64 `json:"ros" gorm:"column:ros"` // fraction, 0.12 == 12%
	Sales7d                      int      `json:"sales_7d" gorm:"column:sales_7d"`
	Rating                       float64  `json:"rating" gorm:"column:rating"`
	ItemName                     string   `json:"item_name" gorm:"column:item_name"`
	MarketURL                    string   `json:"market_url" gorm:"column:market_url"`
	LisSkinsURL                  string   `json:"lisskins_url" gorm:"column:lisskins_url"`
}

func (Snapshot) TableName() string { return "snapshot" }

// WatchedItem marks an item a user wants to follow.
type WatchedItem struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    int64     `json:"user_id" gorm:"column:user_id;not null;uniqueIndex:idx_watched_user_item"`
	FullName  string    `json:"full_name" gorm:"column:full_name;size:255;not null;uniqueIndex:idx_watched_user_item"`
	CreatedAt time.Time `json:"created_at"`
}

func (WatchedItem) TableName() string { return "watched_items" }

// RankedItem is one line of the top-10 answer.
type RankedItem struct {
	FullName           string   `json:"full_name" gorm:"column:full_name"`
	MarketPrice        *float64 `json:"market_price" gorm:"column:market_price"`
	MarketCurrentPrice *float64 `json:"market_current_price" gorm:"column:market_current_price"`
	LisSkinsPrice      *float64 `json:"lisskins_price" gorm:"column:lisskins_price"`
	NetProfit          *float64 `json:"net_profit" gorm:"column:net_profit"`
	CurrentProfit      *float64 `json:"current_profit" gorm:"column:current_profit"`
	ROS                *float64 `json:"ros" gorm:"column:ros"` // percent, rounded to 2 decimals
	Sales7d            int      `json:"sales_7d" gorm:"column:sales_7d"`
	Rating             float64  `json:"rating" gorm:"column:rating"`
	MarketURL          string   `json:"market_url" gorm:"column:market_url"`
	LisSkinsURL        string   `json:"lisskins_url" gorm:"column:lisskins_url"`
}

package database

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/2haed/cs-market/internal/config"
	"github.com/2haed/cs-market/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	upsertBatchSize = 200
	topLimit        = 10
)

// Store is the persistence layer of the pipeline and the ranking queries.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// TopFilter narrows the ranking query. Nil bounds and an empty or "both" item
// type are not applied.
type TopFilter struct {
	PriceMin *float64
	PriceMax *float64
	ItemType string
	Subtypes []string
}

// SaveRun upserts lis-skins listings and converted market stats in a single
// transaction. Nothing is written if any statement fails. When a name is listed
// more than once the last listing wins.
func (s *Store) SaveRun(ctx context.Context, listings []models.Listing, stats map[string]models.ItemStats) error {
	lisRows := make([]models.LisSkinsItem, 0, len(listings))
	seen := make(map[string]int, len(listings))
	for _, l := range listings {
		// postgres rejects a multi-row upsert that touches one key twice
		if i, ok := seen[l.Name]; ok {
			lisRows[i] = l.LisSkinsItem()
			continue
		}
		seen[l.Name] = len(lisRows)
		lisRows = append(lisRows, l.LisSkinsItem())
	}

	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)
	marketRows := make([]models.MarketItem, 0, len(names))
	for _, name := range names {
		marketRows = append(marketRows, stats[name].MarketItem())
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(lisRows) > 0 {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "name"}},
				DoUpdates: clause.AssignmentColumns([]string{"price", "count", "url"}),
			}).CreateInBatches(&lisRows, upsertBatchSize).Error
			if err != nil {
				return fmt.Errorf("upsert lisskins_items: %w", err)
			}
		}
		if len(marketRows) > 0 {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "item_name"}},
				DoUpdates: clause.AssignmentColumns([]string{"last_price", "current_price", "sales_7d", "url"}),
			}).CreateInBatches(&marketRows, upsertBatchSize).Error
			if err != nil {
				return fmt.Errorf("upsert market_items: %w", err)
			}
		}
		return nil
	})
}

// TopRated returns up to 10 snapshot rows with a positive rating, best first.
// ROS is reported in percent.
func (s *Store) TopRated(ctx context.Context, f TopFilter) ([]models.RankedItem, error) {
	q := s.db.WithContext(ctx).
		Model(&models.Snapshot{}).
		Select(`full_name,
			market_price_without_tax AS market_price,
			market_current_price_without_tax AS market_current_price,
			lisskins_price_without_tax AS lisskins_price,
			net_profit, current_profit, ros, sales_7d, rating,
			market_url, lisskins_url`).
		Where("rating > 0")

	if f.PriceMin != nil {
		q = q.Where("lisskins_price_without_tax >= ?", *f.PriceMin)
	}
	if f.PriceMax != nil {
		q = q.Where("lisskins_price_without_tax <= ?", *f.PriceMax)
	}
	if t := strings.ToLower(strings.TrimSpace(f.ItemType)); t != "" && t != config.TypeBoth {
		q = q.Where("LOWER(full_name) LIKE ?", likePattern(t))
	}
	if len(f.Subtypes) > 0 {
		conds := make([]string, 0, len(f.Subtypes))
		args := make([]interface{}, 0, len(f.Subtypes))
		for _, sub := range f.Subtypes {
			conds = append(conds, "LOWER(item_name) LIKE ?")
			args = append(args, likePattern(sub))
		}
		q = q.Where("("+strings.Join(conds, " OR ")+")", args...)
	}

	var rows []models.RankedItem
	if err := q.Order("rating DESC").Limit(topLimit).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("query top rated: %w", err)
	}
	for i := range rows {
		if rows[i].ROS != nil {
			pct, _ := decimal.NewFromFloat(*rows[i].ROS).Shift(2).Round(2).Float64()
			rows[i].ROS = &pct
		}
	}
	return rows, nil
}

// WatchItems registers every snapshot item matching one of the comma separated
// patterns in query. It returns the names that were not watched before and
// whether anything matched at all.
func (s *Store) WatchItems(ctx context.Context, userID int64, query string) ([]string, bool, error) {
	var conds []string
	var args []interface{}
	for _, p := range strings.Split(query, ",") {
		if p = strings.TrimSpace(p); p != "" {
			conds = append(conds, "LOWER(full_name) LIKE ?")
			args = append(args, likePattern(p))
		}
	}
	if len(conds) == 0 {
		return nil, false, nil
	}

	var found []string
	err := s.db.WithContext(ctx).
		Model(&models.Snapshot{}).
		Distinct("full_name").
		Where(strings.Join(conds, " OR "), args...).
		Order("full_name").
		Pluck("full_name", &found).Error
	if err != nil {
		return nil, false, fmt.Errorf("search snapshot: %w", err)
	}
	if len(found) == 0 {
		return nil, false, nil
	}

	added := make([]string, 0, len(found))
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, name := range found {
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&models.WatchedItem{UserID: userID, FullName: name})
			if res.Error != nil {
				return fmt.Errorf("watch %s: %w", name, res.Error)
			}
			if res.RowsAffected > 0 {
				added = append(added, name)
			}
		}
		return nil
	})
	if err != nil {
		return nil, true, err
	}
	return added, true, nil
}

// WatchedItems lists a user's watched item names in insertion order.
func (s *Store) WatchedItems(ctx context.Context, userID int64) ([]string, error) {
	var names []string
	err := s.db.WithContext(ctx).
		Model(&models.WatchedItem{}).
		Where("user_id = ?", userID).
		Order("id").
		Pluck("full_name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("list watched items: %w", err)
	}
	return names, nil
}

func likePattern(s string) string {
	return "%" + strings.ToLower(strings.TrimSpace(s)) + "%"
}

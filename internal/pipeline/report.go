package pipeline

import (
	"fmt"
	"time"
)

// RunReport summarizes one parsing run. Failure counters separate "nothing
// matched" from "a source failed".
type RunReport struct {
	ID            string        `json:"id"`
	ItemType      string        `json:"item_type"`
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration"`
	SchemaVersion string        `json:"schema_version"`

	Shards        int `json:"shards"`
	FailedShards  int `json:"failed_shards"`
	Descriptors   int `json:"descriptors"`
	Names         int `json:"names"`
	Batches       int `json:"batches"`
	FailedBatches int `json:"failed_batches"`
	Stats         int `json:"stats"`
	Listings      int `json:"listings"`

	Rate           float64 `json:"rate"`
	PricesFailed   bool    `json:"prices_failed"`
	ListingsFailed bool    `json:"listings_failed"`
}

// Degraded reports whether any source soft-failed during the run.
func (r *RunReport) Degraded() bool {
	return r.FailedShards > 0 || r.FailedBatches > 0 || r.PricesFailed || r.ListingsFailed
}

func (r *RunReport) String() string {
	s := fmt.Sprintf("Data saved for item type %s: %d market items, %d lis-skins listings", r.ItemType, r.Stats, r.Listings)
	if r.Degraded() {
		s += fmt.Sprintf(" (degraded: %d/%d shards, %d/%d batches failed", r.FailedShards, r.Shards, r.FailedBatches, r.Batches)
		if r.PricesFailed {
			s += ", no current prices"
		}
		if r.ListingsFailed {
			s += ", no lis-skins listings"
		}
		s += ")"
	}
	return s
}

package dialog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/2haed/cs-market/internal/config"
	"github.com/2haed/cs-market/internal/database"
	"github.com/2haed/cs-market/internal/models"
	"github.com/2haed/cs-market/internal/pipeline"
	"github.com/2haed/cs-market/internal/services/adjuster"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

type fakeParser struct {
	err   error
	types []string
}

func (f *fakeParser) ParseItems(ctx context.Context, itemType string) (*pipeline.RunReport, error) {
	f.types = append(f.types, itemType)
	if f.err != nil {
		return nil, f.err
	}
	if !config.ValidItemType(itemType) {
		return nil, config.ErrInvalidItemType
	}
	return &pipeline.RunReport{ItemType: itemType, Stats: 3, Listings: 2}, nil
}

type fakeAdjuster struct {
	outcomes []adjuster.Outcome
	err      error
}

func (f *fakeAdjuster) Adjust(ctx context.Context) ([]adjuster.Outcome, error) {
	return f.outcomes, f.err
}

type fakeRanking struct {
	rows    []models.RankedItem
	err     error
	filters []database.TopFilter

	added []string
	found bool
	query string
}

func (f *fakeRanking) TopRated(ctx context.Context, filter database.TopFilter) ([]models.RankedItem, error) {
	f.filters = append(f.filters, filter)
	return f.rows, f.err
}

func (f *fakeRanking) WatchItems(ctx context.Context, userID int64, query string) ([]string, bool, error) {
	f.query = query
	return f.added, f.found, f.err
}

type harness struct {
	engine   *Engine
	sessions *MemoryStore
	parser   *fakeParser
	adjuster *fakeAdjuster
	ranking  *fakeRanking
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		sessions: NewMemoryStore(15*time.Minute, 0),
		parser:   &fakeParser{},
		adjuster: &fakeAdjuster{},
		ranking:  &fakeRanking{},
	}
	t.Cleanup(func() { _ = h.sessions.Close() })
	h.engine = NewEngine(Deps{
		Sessions: h.sessions,
		Catalog:  config.DefaultCatalog(),
		Parser:   h.parser,
		Adjuster: h.adjuster,
		Ranking:  h.ranking,
	})
	return h
}

func (h *harness) say(t *testing.T, userID int64, text string) Reply {
	t.Helper()
	r, err := h.engine.Handle(context.Background(), userID, text)
	require.NoError(t, err)
	return r
}

func (h *harness) step(t *testing.T, userID int64) Step {
	t.Helper()
	s, err := h.sessions.Get(context.Background(), userID)
	require.NoError(t, err)
	if s == nil {
		return StepIdle
	}
	return s.Step
}

func TestTopDialog_GloveWithSubtypes(t *testing.T) {
	h := newHarness(t)
	h.ranking.rows = []models.RankedItem{{FullName: "Sport Gloves | Vice (Minimal Wear)", Rating: 9, ROS: ptr(12.35), LisSkinsPrice: ptr(30.0)}}

	r := h.say(t, 1, "/top")
	assert.Equal(t, typeOptions, r.Options)
	assert.Equal(t, StepChooseType, h.step(t, 1))

	r = h.say(t, 1, "Glove")
	assert.Equal(t, StepSubtypes, h.step(t, 1))
	assert.Contains(t, r.Options, "8. [ ] sport gloves")

	r = h.say(t, 1, "sport gloves")
	assert.Contains(t, r.Options, "8. [x] sport gloves")
	h.say(t, 1, "1")
	r = h.say(t, 1, "1")
	assert.Contains(t, r.Text, "sport gloves", "toggling twice removes the choice")
	assert.NotContains(t, r.Text, "bloodhound")

	h.say(t, 1, "done")
	assert.Equal(t, StepMinPrice, h.step(t, 1))

	r = h.say(t, 1, "ten")
	assert.Contains(t, r.Text, "Please enter a number")
	assert.Equal(t, StepMinPrice, h.step(t, 1), "invalid input keeps the step")

	h.say(t, 1, "10,5")
	assert.Equal(t, StepMaxPrice, h.step(t, 1))

	r = h.say(t, 1, "50")
	assert.Equal(t, StepIdle, h.step(t, 1))
	require.Len(t, r.Items, 1)
	assert.Contains(t, r.Text, "Sport Gloves | Vice (Minimal Wear)")
	assert.Contains(t, r.Text, "12.35 %")

	require.Len(t, h.ranking.filters, 1)
	f := h.ranking.filters[0]
	assert.Equal(t, "glove", f.ItemType)
	assert.Equal(t, []string{"sport gloves"}, f.Subtypes)
	assert.Equal(t, 10.5, *f.PriceMin)
	assert.Equal(t, 50.0, *f.PriceMax)
}

func TestTopDialog_BothSkipsSubtypesAndBounds(t *testing.T) {
	h := newHarness(t)

	h.say(t, 2, "/top")
	h.say(t, 2, "both")
	assert.Equal(t, StepMinPrice, h.step(t, 2))
	h.say(t, 2, ".")
	r := h.say(t, 2, ".")

	assert.Equal(t, "No data for the selected parameters.", r.Text)
	assert.Empty(t, r.Error)
	require.Len(t, h.ranking.filters, 1)
	assert.Nil(t, h.ranking.filters[0].PriceMin)
	assert.Nil(t, h.ranking.filters[0].PriceMax)
	assert.Empty(t, h.ranking.filters[0].Subtypes)
}

func TestTopDialog_FailureIsDistinctFromNoData(t *testing.T) {
	h := newHarness(t)
	h.ranking.err = errors.New("connection refused")

	h.say(t, 3, "/top")
	h.say(t, 3, "knife")
	h.say(t, 3, "done")
	h.say(t, 3, "1")
	r := h.say(t, 3, "2")

	assert.NotEmpty(t, r.Error)
	assert.Contains(t, r.Text, "Failed")
}

func TestChooseType_InvalidReprompts(t *testing.T) {
	h := newHarness(t)
	h.say(t, 4, "/top")

	r := h.say(t, 4, "rifle")
	assert.Contains(t, r.Text, "Unknown item type")
	assert.Equal(t, StepChooseType, h.step(t, 4))
}

func TestSessionsAreIsolatedPerUser(t *testing.T) {
	h := newHarness(t)
	h.say(t, 5, "/top")
	h.say(t, 5, "both")

	r := h.say(t, 6, "hello")
	assert.Equal(t, menu(), r)
	assert.Equal(t, StepMinPrice, h.step(t, 5))
}

func TestCancel(t *testing.T) {
	h := newHarness(t)
	h.say(t, 7, "/top")
	h.say(t, 7, "/cancel")
	assert.Equal(t, StepIdle, h.step(t, 7))
}

func TestParseCommand(t *testing.T) {
	h := newHarness(t)

	r := h.say(t, 1, "/parse")
	assert.Equal(t, []string{"/parse knife", "/parse glove", "/parse both"}, r.Options)

	r = h.say(t, 1, "/parse Knife")
	assert.Empty(t, r.Error)
	assert.Contains(t, r.Text, "knife")
	assert.Equal(t, []string{"knife"}, h.parser.types)

	r = h.say(t, 1, "/parse rifle")
	assert.Contains(t, r.Text, "Invalid item type")
	assert.NotEmpty(t, r.Error)

	h.parser.err = pipeline.ErrRunInProgress
	r = h.say(t, 1, "/parse both")
	assert.Contains(t, r.Text, "already in progress")

	h.parser.err = errors.New("save run: connection refused")
	r = h.say(t, 1, "/parse both")
	assert.Contains(t, r.Text, "failed")
	assert.NotEmpty(t, r.Error)
}

func TestAdjustCommand(t *testing.T) {
	h := newHarness(t)

	h.adjuster.err = adjuster.ErrNothingToAdjust
	assert.Equal(t, "Nothing to adjust.", h.say(t, 1, "/adjust").Text)

	h.adjuster.err = nil
	h.adjuster.outcomes = []adjuster.Outcome{{Name: "Karambit", OldPrice: 100, NewPrice: 99.99, Currency: "RUB", Repriced: true, Accepted: true}}
	r := h.say(t, 1, "/adjust")
	assert.Contains(t, r.Text, "Karambit: 100.00 RUB -> 99.99 RUB (ok)")

	h.adjuster.err = errors.New("bad key")
	r = h.say(t, 1, "/adjust")
	assert.NotEmpty(t, r.Error)
}

func TestWatchDialog(t *testing.T) {
	h := newHarness(t)
	h.ranking.found = true
	h.ranking.added = []string{"Karambit | Doppler (Factory New)"}

	h.say(t, 9, "/watch")
	assert.Equal(t, StepWatch, h.step(t, 9))
	r := h.say(t, 9, "karambit | doppler")
	assert.Equal(t, StepIdle, h.step(t, 9))
	assert.Equal(t, "karambit | doppler", h.ranking.query)
	assert.Contains(t, r.Text, "Karambit | Doppler (Factory New)")

	h.ranking.found = false
	h.ranking.added = nil
	r = h.say(t, 9, "/watch bowie")
	assert.Equal(t, "No items found for your query.", r.Text)

	h.ranking.found = true
	r = h.say(t, 9, "/watch karambit")
	assert.Equal(t, "All matching items are already watched.", r.Text)
}

func TestParsePrice(t *testing.T) {
	v, ok := parsePrice("12,5")
	require.True(t, ok)
	assert.Equal(t, 12.5, *v)

	v, ok = parsePrice(".")
	assert.True(t, ok)
	assert.Nil(t, v)

	_, ok = parsePrice("abc")
	assert.False(t, ok)
	_, ok = parsePrice("NaN")
	assert.False(t, ok)
}

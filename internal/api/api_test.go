package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/2haed/cs-market/internal/config"
	"github.com/2haed/cs-market/internal/database"
	"github.com/2haed/cs-market/internal/dialog"
	"github.com/2haed/cs-market/internal/metrics"
	"github.com/2haed/cs-market/internal/models"
	"github.com/2haed/cs-market/internal/pipeline"
	"github.com/2haed/cs-market/internal/services/adjuster"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type fakeParser struct {
	report *pipeline.RunReport
	err    error
	got    string
}

func (f *fakeParser) ParseItems(ctx context.Context, itemType string) (*pipeline.RunReport, error) {
	f.got = itemType
	return f.report, f.err
}

type fakeAdjuster struct {
	outcomes []adjuster.Outcome
	err      error
}

func (f *fakeAdjuster) Adjust(ctx context.Context) ([]adjuster.Outcome, error) {
	return f.outcomes, f.err
}

type fakeStore struct {
	rows    []models.RankedItem
	err     error
	filter  database.TopFilter
	watched map[int64][]string
}

func (f *fakeStore) TopRated(ctx context.Context, filter database.TopFilter) ([]models.RankedItem, error) {
	f.filter = filter
	return f.rows, f.err
}

func (f *fakeStore) WatchItems(ctx context.Context, userID int64, query string) ([]string, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	if query == "nothing" {
		return nil, false, nil
	}
	if f.watched == nil {
		f.watched = map[int64][]string{}
	}
	f.watched[userID] = append(f.watched[userID], query)
	return []string{query}, true, nil
}

func (f *fakeStore) WatchedItems(ctx context.Context, userID int64) ([]string, error) {
	return f.watched[userID], f.err
}

type harness struct {
	router   *gin.Engine
	parser   *fakeParser
	adjuster *fakeAdjuster
	store    *fakeStore
	metrics  *metrics.Metrics
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := &harness{
		parser:   &fakeParser{},
		adjuster: &fakeAdjuster{},
		store:    &fakeStore{},
		metrics:  metrics.New(),
	}
	reg := prometheus.NewRegistry()
	require.NoError(t, h.metrics.Register(reg))

	sessions := dialog.NewMemoryStore(time.Minute, time.Minute)
	t.Cleanup(func() { _ = sessions.Close() })
	engine := dialog.NewEngine(dialog.Deps{
		Sessions: sessions,
		Parser:   h.parser,
		Adjuster: h.adjuster,
		Ranking:  h.store,
	})

	h.router = gin.New()
	SetupRoutes(h.router.Group("/api/v1"), Deps{
		Parser:   h.parser,
		Adjuster: h.adjuster,
		Store:    h.store,
		Dialog:   engine,
		Metrics:  h.metrics,
		Gatherer: reg,
	})
	return h
}

func (h *harness) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func ptr[T any](v T) *T { return &v }

func TestParseItems(t *testing.T) {
	h := newHarness(t)
	h.parser.report = &pipeline.RunReport{ItemType: "knife", Stats: 3, Listings: 2}

	w := h.do(http.MethodPost, "/api/v1/parse/knife", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "knife", h.parser.got)
	assert.Contains(t, decode(t, w)["msg"], "Data saved for item type knife")
}

func TestParseItems_ErrorStatuses(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid type", fmt.Errorf("%w: %q", config.ErrInvalidItemType, "sword"), http.StatusBadRequest},
		{"busy", pipeline.ErrRunInProgress, http.StatusConflict},
		{"failed", errors.New("save run: connection refused"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.parser.err = tc.err

			w := h.do(http.MethodPost, "/api/v1/parse/sword", nil)
			assert.Equal(t, tc.want, w.Code)
			assert.NotEmpty(t, decode(t, w)["error"])
		})
	}
}

func TestAdjustPrices(t *testing.T) {
	h := newHarness(t)
	h.adjuster.outcomes = []adjuster.Outcome{{Name: "Karambit | Doppler", OldPrice: 100, NewPrice: 99.99, Repriced: true, Accepted: true}}

	w := h.do(http.MethodPost, "/api/v1/adjust-prices", nil)
	require.Equal(t, http.StatusOK, w.Code)
	outcomes := decode(t, w)["outcomes"].([]any)
	assert.Len(t, outcomes, 1)
}

func TestAdjustPrices_NothingAndFailure(t *testing.T) {
	h := newHarness(t)
	h.adjuster.err = adjuster.ErrNothingToAdjust
	w := h.do(http.MethodPost, "/api/v1/adjust-prices", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nothing to adjust", decode(t, w)["msg"])

	h.adjuster.err = errors.New("fetch listed items: HTTP 502")
	w = h.do(http.MethodPost, "/api/v1/adjust-prices", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestTopRated_Filters(t *testing.T) {
	h := newHarness(t)
	h.store.rows = []models.RankedItem{{FullName: "Sport Gloves | Vice (Minimal Wear)", Rating: 3.2, ROS: ptr(12.35)}}

	w := h.do(http.MethodGet, "/api/v1/top?type=glove&price_min=1000&price_max=2500,5&subtypes=sport%20gloves,%20driver%20gloves", nil)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "glove", h.store.filter.ItemType)
	require.NotNil(t, h.store.filter.PriceMin)
	assert.Equal(t, 1000.0, *h.store.filter.PriceMin)
	assert.Equal(t, 2500.5, *h.store.filter.PriceMax)
	assert.Equal(t, []string{"sport gloves", "driver gloves"}, h.store.filter.Subtypes)
	assert.Len(t, decode(t, w)["items"], 1)
}

func TestTopRated_DefaultsAndErrors(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodGet, "/api/v1/top", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, config.TypeBoth, h.store.filter.ItemType)
	assert.Nil(t, h.store.filter.PriceMin)
	body := decode(t, w)
	assert.Equal(t, "no data", body["message"])
	assert.Equal(t, []any{}, body["items"])

	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/api/v1/top?price_min=abc", nil).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/api/v1/top?type=sword", nil).Code)

	h.store.err = errors.New("relation does not exist")
	assert.Equal(t, http.StatusInternalServerError, h.do(http.MethodGet, "/api/v1/top", nil).Code)
}

func TestExportTop(t *testing.T) {
	h := newHarness(t)
	h.store.rows = []models.RankedItem{{FullName: "Karambit | Doppler (Factory New)", Rating: 1.5, Sales7d: 4}}

	w := h.do(http.MethodGet, "/api/v1/top/export.xlsx?type=knife", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "top.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Top")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Karambit | Doppler (Factory New)", rows[1][0])
}

func TestWatch(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodPost, "/api/v1/watch", gin.H{"user_id": 7, "query": "Karambit"})
	require.Equal(t, http.StatusOK, w.Code)

	w = h.do(http.MethodPost, "/api/v1/watch", gin.H{"user_id": 7, "query": "nothing"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.do(http.MethodPost, "/api/v1/watch", gin.H{"query": "Karambit"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodGet, "/api/v1/watch/7", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{"Karambit"}, decode(t, w)["items"])

	w = h.do(http.MethodGet, "/api/v1/watch/8", nil)
	assert.Equal(t, []any{}, decode(t, w)["items"])

	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/api/v1/watch/abc", nil).Code)
}

func TestChat(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodPost, "/api/v1/chat/42", gin.H{"text": "/top"})
	require.Equal(t, http.StatusOK, w.Code)
	var reply dialog.Reply
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reply))
	assert.Equal(t, []string{"knife", "glove", "both"}, reply.Options)

	w = h.do(http.MethodPost, "/api/v1/chat/42", gin.H{"text": "sword"})
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reply))
	assert.Equal(t, []string{"knife", "glove", "both"}, reply.Options)
}

func TestChatSocket(t *testing.T) {
	h := newHarness(t)
	srv := httptest.NewServer(h.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/chat/42/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(chatMessage{Text: "/start"}))
	var reply dialog.Reply
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "Choose an action:", reply.Text)

	require.NoError(t, conn.WriteJSON(chatMessage{Text: "/top"}))
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, []string{"knife", "glove", "both"}, reply.Options)
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = h.do(http.MethodGet, "/api/v1/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "csmarket_http_requests_total")
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/health", "200")))
}

func TestHealth_DatabaseDown(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	SetupRoutes(r.Group("/api/v1"), Deps{
		Health: func(ctx context.Context) error { return errors.New("dial tcp: connection refused") },
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

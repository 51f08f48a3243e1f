package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/2haed/cs-market/internal/config"
	"github.com/2haed/cs-market/internal/database"
	"github.com/2haed/cs-market/internal/dialog"
	"github.com/2haed/cs-market/internal/metrics"
	"github.com/2haed/cs-market/internal/models"
	"github.com/2haed/cs-market/internal/pipeline"
	"github.com/2haed/cs-market/internal/report"
	"github.com/2haed/cs-market/internal/services/adjuster"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Store is the read side used by the HTTP handlers.
type Store interface {
	dialog.Ranking
	WatchedItems(ctx context.Context, userID int64) ([]string, error)
}

type Deps struct {
	Parser   dialog.Parser
	Adjuster dialog.PriceAdjuster
	Store    Store
	Dialog   *dialog.Engine
	Catalog  *config.Catalog
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	// Health reports whether the database is reachable. Nil means always healthy.
	Health func(ctx context.Context) error
}

type APIHandler struct {
	deps Deps
}

func SetupRoutes(r *gin.RouterGroup, deps Deps) *APIHandler {
	if deps.Catalog == nil {
		deps.Catalog = config.DefaultCatalog()
	}
	handler := &APIHandler{deps: deps}

	if deps.Metrics != nil {
		r.Use(Instrument(deps.Metrics))
	}

	r.GET("/health", handler.Health)
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler(deps.Gatherer)))
	}

	// Parsing and repricing jobs
	jobs := r.Group("")
	{
		jobs.POST("/parse/:type", handler.ParseItems)
		jobs.POST("/adjust-prices", handler.AdjustPrices)
	}

	top := r.Group("/top")
	{
		top.GET("", handler.TopRated)
		top.GET("/export.xlsx", handler.ExportTop)
	}

	watch := r.Group("/watch")
	{
		watch.POST("", handler.WatchItems)
		watch.GET("/:user_id", handler.WatchedItems)
	}

	chat := r.Group("/chat")
	{
		chat.POST("/:user_id", handler.Chat)
		chat.GET("/:user_id/ws", handler.ChatSocket)
	}

	return handler
}

func (h *APIHandler) Health(c *gin.Context) {
	if h.deps.Health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.deps.Health(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *APIHandler) ParseItems(c *gin.Context) {
	itemType := c.Param("type")
	rep, err := h.deps.Parser.ParseItems(c.Request.Context(), itemType)
	switch {
	case errors.Is(err, config.ErrInvalidItemType):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, pipeline.ErrRunInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": "job already running"})
		return
	case err != nil:
		log.Printf("[API] parse %s failed: %v", itemType, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "report": rep})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "msg": rep.String(), "report": rep})
}

func (h *APIHandler) AdjustPrices(c *gin.Context) {
	outcomes, err := h.deps.Adjuster.Adjust(c.Request.Context())
	if errors.Is(err, adjuster.ErrNothingToAdjust) {
		c.JSON(http.StatusOK, gin.H{"code": 200, "msg": "nothing to adjust", "outcomes": []adjuster.Outcome{}})
		return
	}
	if err != nil {
		log.Printf("[API] adjust prices failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "outcomes": outcomes})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "msg": "done", "outcomes": outcomes})
}

func (h *APIHandler) TopRated(c *gin.Context) {
	filter, err := h.topFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rows, err := h.deps.Store.TopRated(c.Request.Context(), filter)
	if err != nil {
		log.Printf("[API] top query failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load top items"})
		return
	}
	if len(rows) == 0 {
		c.JSON(http.StatusOK, gin.H{"items": []models.RankedItem{}, "message": "no data"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": rows})
}

func (h *APIHandler) ExportTop(c *gin.Context) {
	filter, err := h.topFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rows, err := h.deps.Store.TopRated(c.Request.Context(), filter)
	if err != nil {
		log.Printf("[API] top export failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load top items"})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="top.xlsx"`)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Status(http.StatusOK)
	if err := report.WriteTopXLSX(c.Writer, rows); err != nil {
		log.Printf("[API] write xlsx: %v", err)
	}
}

func (h *APIHandler) topFilter(c *gin.Context) (database.TopFilter, error) {
	var f database.TopFilter
	var err error
	if f.PriceMin, err = queryFloat(c, "price_min"); err != nil {
		return f, err
	}
	if f.PriceMax, err = queryFloat(c, "price_max"); err != nil {
		return f, err
	}

	f.ItemType = strings.ToLower(c.DefaultQuery("type", config.TypeBoth))
	if _, _, err := h.deps.Catalog.Filter(f.ItemType); err != nil {
		return f, err
	}
	if raw := c.Query("subtypes"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				f.Subtypes = append(f.Subtypes, s)
			}
		}
	}
	return f, nil
}

func queryFloat(c *gin.Context, key string) (*float64, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
	if err != nil {
		return nil, errors.New("invalid " + key)
	}
	return &v, nil
}

func (h *APIHandler) WatchItems(c *gin.Context) {
	var req struct {
		UserID int64  `json:"user_id" binding:"required"`
		Query  string `json:"query" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	added, found, err := h.deps.Store.WatchItems(c.Request.Context(), req.UserID, req.Query)
	if err != nil {
		log.Printf("[API] watch for user %d failed: %v", req.UserID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add items"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "no matching items"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "added": added})
}

func (h *APIHandler) WatchedItems(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}
	items, err := h.deps.Store.WatchedItems(c.Request.Context(), userID)
	if err != nil {
		log.Printf("[API] watched items for user %d failed: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load watch list"})
		return
	}
	if items == nil {
		items = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *APIHandler) Chat(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	reply, err := h.deps.Dialog.Handle(c.Request.Context(), userID, req.Text)
	if err != nil {
		log.Printf("[API] chat for user %d failed: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session unavailable"})
		return
	}
	c.JSON(http.StatusOK, reply)
}

func userIDParam(c *gin.Context) (int64, bool) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
		return 0, false
	}
	return userID, true
}

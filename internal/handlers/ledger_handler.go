package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"owner_ledger/internal/ledger"
	"owner_ledger/internal/models"
	"owner_ledger/internal/redis"
	"owner_ledger/internal/repository"
	"owner_ledger/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DraftLister lists rows kept after a failed save, from this and earlier
// server sessions. *redis.Client satisfies it.
type DraftLister interface {
	ListDrafts(ctx context.Context) ([]redis.Draft, error)
	// Session is the session whose draft keys match the current rows.
	Session() string
}

// LedgerHandler feeds HTTP requests into the table controller as cell
// edits and structure changes.
type LedgerHandler struct {
	// mu serializes mutating requests. The controller drops edits that
	// arrive while it is writing cells itself, so they must not overlap.
	mu sync.Mutex

	ctrl    *ledger.TableController
	service services.LedgerService
	drafts  DraftLister
	log     *zap.Logger
}

func NewLedgerHandler(ctrl *ledger.TableController, service services.LedgerService, drafts DraftLister, log *zap.Logger) *LedgerHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &LedgerHandler{ctrl: ctrl, service: service, drafts: drafts, log: log}
}

// RegisterRoutes mounts the ledger endpoints on router.
func (h *LedgerHandler) RegisterRoutes(router gin.IRouter) {
	router.GET("/health", h.Health)

	api := router.Group("/api")
	{
		api.GET("/ledger/rows", h.ListRows)
		api.POST("/ledger/reload", h.Reload)
		api.POST("/ledger/rows", h.AddRow)
		api.DELETE("/ledger/rows/:row", h.RemoveRow)
		api.PUT("/ledger/rows/:row/cells/:field", h.EditCell)
		api.POST("/ledger/rows/:row/save", h.SaveRow)
		api.GET("/ledger/sums", h.Sums)
		api.GET("/ledger/drafts", h.ListDrafts)

		api.GET("/lookups/:kind", h.ListLookups)
	}
}

func (h *LedgerHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "kind": h.ctrl.Kind().String(), "rows": h.ctrl.Len()})
}

func (h *LedgerHandler) ListRows(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rows": h.ctrl.Snapshot(), "count": h.ctrl.Len()})
}

type reloadRequest struct {
	StoreName   string `json:"store_name"`
	OrderStatus string `json:"order_status"`
	From        string `json:"from"`
	To          string `json:"to"`
}

func (h *LedgerHandler) Reload(c *gin.Context) {
	var req reloadRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
			return
		}
	}

	filter := repository.OrderFilter{StoreName: req.StoreName}
	if req.OrderStatus != "" {
		status, err := models.ParseOrderStatus(req.OrderStatus)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		filter.OrderStatus = status
	}
	var err error
	if filter.From, err = parseDay(req.From); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid from date, use YYYY-MM-DD"})
		return
	}
	if filter.To, err = parseDay(req.To); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid to date, use YYYY-MM-DD"})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	orders, err := h.service.ListOrders(c.Request.Context(), filter)
	if err != nil {
		h.log.Error("failed to list orders", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load orders"})
		return
	}
	h.ctrl.Load(orders)

	c.JSON(http.StatusOK, gin.H{"rows": h.ctrl.Snapshot()})
}

func (h *LedgerHandler) AddRow(c *gin.Context) {
	var req struct {
		Position *int `json:"position"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
			return
		}
	}
	position := -1
	if req.Position != nil {
		position = *req.Position
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	row, err := h.ctrl.AddRow(position)
	if err != nil {
		h.writeError(c, err)
		return
	}
	cells, _ := h.ctrl.Row(row)
	c.JSON(http.StatusCreated, gin.H{"row": row, "cells": cells.Map()})
}

func (h *LedgerHandler) RemoveRow(c *gin.Context) {
	row, ok := rowParam(c)
	if !ok {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.ctrl.RemoveRow(c.Request.Context(), row); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"row": row, "status": "removed"})
}

type editRequest struct {
	Text  string           `json:"text"`
	Value *decimal.Decimal `json:"value"`
}

func (h *LedgerHandler) EditCell(c *gin.Context) {
	row, ok := rowParam(c)
	if !ok {
		return
	}
	field, err := ledger.ParseField(c.Param("field"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	var value any
	if req.Value != nil {
		value = *req.Value
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	res, err := h.ctrl.OnCellEdited(c.Request.Context(), row, field, req.Text, value)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.writeEdit(c, res)
}

func (h *LedgerHandler) SaveRow(c *gin.Context) {
	row, ok := rowParam(c)
	if !ok {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	res, err := h.ctrl.Save(c.Request.Context(), row)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.writeEdit(c, res)
}

func (h *LedgerHandler) Sums(c *gin.Context) {
	sums := make(map[string]string)
	for f, total := range h.ctrl.Sums() {
		sums[f.String()] = total.StringFixed(2)
	}
	c.JSON(http.StatusOK, gin.H{"sums": sums})
}

func (h *LedgerHandler) ListDrafts(c *gin.Context) {
	if h.drafts == nil {
		c.JSON(http.StatusOK, gin.H{"drafts": []redis.Draft{}})
		return
	}
	drafts, err := h.drafts.ListDrafts(c.Request.Context())
	if err != nil {
		h.log.Error("failed to list drafts", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list drafts"})
		return
	}
	if drafts == nil {
		drafts = []redis.Draft{}
	}
	c.JSON(http.StatusOK, gin.H{"session": h.drafts.Session(), "drafts": drafts})
}

func (h *LedgerHandler) ListLookups(c *gin.Context) {
	kind, err := models.ParseLookupKind(c.Param("kind"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	list, err := h.service.Lookups(c.Request.Context(), kind)
	if err != nil {
		h.log.Error("failed to list lookups", zap.String("kind", string(kind)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list lookups"})
		return
	}
	if list == nil {
		list = []models.Lookup{}
	}
	c.JSON(http.StatusOK, gin.H{"kind": kind, "lookups": list})
}

func (h *LedgerHandler) writeEdit(c *gin.Context, res ledger.EditResult) {
	cells, _ := h.ctrl.Row(res.Row)
	body := gin.H{
		"row":    res.Row,
		"queued": res.Queued,
		"cells":  cells.Map(),
	}
	if !res.Queued {
		body["outcome"] = res.Outcome.String()
		body["id"] = res.ID
	}
	c.JSON(http.StatusOK, body)
}

func (h *LedgerHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ledger.ErrReadOnlyField), errors.Is(err, ledger.ErrUnknownField):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrRowOutOfRange):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.log.Error("ledger request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func rowParam(c *gin.Context) (int, bool) {
	row, err := strconv.Atoi(c.Param("row"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid row number"})
		return 0, false
	}
	return row, true
}

func parseDay(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(ledger.DateLayout, s, time.Local)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

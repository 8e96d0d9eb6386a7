package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"bond-reversion-lab/internal/advisor"
	"bond-reversion-lab/internal/domain"
	"bond-reversion-lab/internal/storage"
)

// Buyer places advised BUY orders.
type Buyer interface {
	PlaceBuy(ctx context.Context, instrumentID string, lots int64, clientKey string) (*domain.Order, *advisor.Advice, error)
}

// Canceller cancels tracked orders.
type Canceller interface {
	Cancel(ctx context.Context, id string) (*domain.Order, error)
}

type OrderHandler struct {
	Orders    storage.OrderStore
	Buyer     Buyer
	Canceller Canceller
}

type orderView struct {
	ID            string          `json:"id"`
	ExchangeID    string          `json:"exchange_id,omitempty"`
	InstrumentID  string          `json:"instrument_id"`
	Direction     string          `json:"direction"`
	Status        string          `json:"status"`
	RequestedLots int64           `json:"requested_lots"`
	ExecutedLots  int64           `json:"executed_lots"`
	Price         decimal.Decimal `json:"price"`
	AvgExecPrice  decimal.Decimal `json:"avg_exec_price"`
	ParentOrderID string          `json:"parent_order_id,omitempty"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	SubmittedAt   *time.Time      `json:"submitted_at,omitempty"`
	ExecutedAt    *time.Time      `json:"executed_at,omitempty"`
	CancelledAt   *time.Time      `json:"cancelled_at,omitempty"`
}

func newOrderView(o *domain.Order) orderView {
	return orderView{
		ID:            o.ID,
		ExchangeID:    o.ExchangeID,
		InstrumentID:  o.InstrumentID,
		Direction:     string(o.Direction),
		Status:        string(o.Status),
		RequestedLots: o.RequestedLots,
		ExecutedLots:  o.ExecutedLots,
		Price:         o.Price,
		AvgExecPrice:  o.AvgExecPrice,
		ParentOrderID: o.ParentOrderID,
		ErrorMessage:  o.ErrorMessage,
		CreatedAt:     o.CreatedAt,
		SubmittedAt:   o.SubmittedAt,
		ExecutedAt:    o.ExecutedAt,
		CancelledAt:   o.CancelledAt,
	}
}

type placeBuyRequest struct {
	InstrumentID string `json:"instrument_id" binding:"required"`
	Lots         int64  `json:"lots" binding:"required,gt=0"`
	ClientKey    string `json:"client_key"`
}

func (h *OrderHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/orders")
	group.GET("", h.list)
	group.GET("/:id", h.get)
	group.POST("", h.placeBuy)
	group.POST("/:id/cancel", h.cancel)
}

func (h *OrderHandler) list(c *gin.Context) {
	limit := 100
	if val := c.Query("limit"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			limit = i
		}
	}
	status := strings.ToUpper(strings.TrimSpace(c.Query("status")))

	orders, err := h.Orders.List(c.Request.Context(), 0)
	if err != nil {
		fail(c, err)
		return
	}
	items := make([]orderView, 0, len(orders))
	for _, o := range orders {
		if status != "" && string(o.Status) != status {
			continue
		}
		if limit > 0 && len(items) == limit {
			break
		}
		items = append(items, newOrderView(o))
	}
	Ok(c, items, map[string]any{"count": len(items)})
}

func (h *OrderHandler) get(c *gin.Context) {
	o, err := h.Orders.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	view := newOrderView(o)
	meta := map[string]any{}
	if o.Direction == domain.DirectionBuy {
		if sell, err := h.Orders.FindByParentID(c.Request.Context(), o.ID); err == nil {
			meta["paired_sell_id"] = sell.ID
		}
	}
	Ok(c, view, meta)
}

func (h *OrderHandler) placeBuy(c *gin.Context) {
	var req placeBuyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if key := c.GetHeader("Idempotency-Key"); req.ClientKey == "" && key != "" {
		req.ClientKey = key
	}

	order, advice, err := h.Buyer.PlaceBuy(c.Request.Context(), req.InstrumentID, req.Lots, req.ClientKey)
	if err != nil {
		if order != nil {
			Error(c, errorStatus(err), err.Error(), map[string]any{"order": newOrderView(order)})
			return
		}
		fail(c, err)
		return
	}
	meta := map[string]any{}
	if advice != nil {
		meta["sell_target"] = advice.Target.SellPrice
	}
	Ok(c, newOrderView(order), meta)
}

func (h *OrderHandler) cancel(c *gin.Context) {
	o, err := h.Canceller.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, newOrderView(o), nil)
}

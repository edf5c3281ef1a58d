package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/nimasrn/paint-rewards/internal/model"
	xhttp "github.com/nimasrn/paint-rewards/pkg/http"
)

type OrderService interface {
	CreateOrder(ctx context.Context, dealerID int64, items []model.OrderItemRequest) (*model.Order, error)
	GetOrder(ctx context.Context, id int64) (*model.Order, error)
	VerifyOrder(ctx context.Context, orderID, actorID int64) (*model.Order, error)
	RetrySync(ctx context.Context, orderID, actorID int64) (*model.Order, error)
}

type OrderHandler struct {
	svc OrderService
}

func RegisterOrderRoutes(g *router.Group, h *OrderHandler) {
	g.POST("/orders", h.Create)
	g.GET("/orders/{id}", h.Get)
	g.POST("/orders/{id}/verify", h.Verify)
	g.POST("/orders/{id}/sync", h.RetrySync)
}

func NewOrderHandler(svc OrderService) *OrderHandler {
	return &OrderHandler{svc: svc}
}

type orderItemRequest struct {
	ItemID   int64   `json:"item_id" validate:"required,gt=0"`
	Quantity int     `json:"quantity" validate:"required,gt=0"`
	Rate     float64 `json:"rate" validate:"gte=0"`
}

type createOrderRequest struct {
	Items []orderItemRequest `json:"items" validate:"required,min=1,dive"`
}

func (h *OrderHandler) Create(ctx *xhttp.RequestCtx) {
	a, ok := actor(ctx)
	if !ok {
		return
	}
	var req createOrderRequest
	if !bind(ctx, &req) {
		return
	}

	items := make([]model.OrderItemRequest, len(req.Items))
	for i, it := range req.Items {
		items[i] = model.OrderItemRequest{ItemID: it.ItemID, Quantity: it.Quantity, Rate: it.Rate}
	}

	order, err := h.svc.CreateOrder(ctx, a.AccountID, items)
	if err != nil {
		writeAppError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, order)
}

func (h *OrderHandler) Get(ctx *xhttp.RequestCtx) {
	if _, ok := actor(ctx); !ok {
		return
	}
	id, ok := pathInt64(ctx, "id")
	if !ok {
		return
	}

	order, err := h.svc.GetOrder(ctx, id)
	if err != nil {
		writeAppError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, order)
}

func (h *OrderHandler) Verify(ctx *xhttp.RequestCtx) {
	h.act(ctx, h.svc.VerifyOrder)
}

func (h *OrderHandler) RetrySync(ctx *xhttp.RequestCtx) {
	h.act(ctx, h.svc.RetrySync)
}

func (h *OrderHandler) act(ctx *xhttp.RequestCtx, fn func(ctx context.Context, orderID, actorID int64) (*model.Order, error)) {
	a, ok := actor(ctx)
	if !ok {
		return
	}
	id, ok := pathInt64(ctx, "id")
	if !ok {
		return
	}

	order, err := fn(ctx, id, a.AccountID)
	if err != nil {
		writeAppError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, order)
}

package handlers

import (
	"context"
	"strings"

	"github.com/fasthttp/router"
	"github.com/nimasrn/paint-rewards/internal/model"
	xhttp "github.com/nimasrn/paint-rewards/pkg/http"
)

type LedgerService interface {
	List(ctx context.Context, f model.LedgerFilter) ([]*model.LedgerEntry, int64, error)
}

type LedgerHandler struct {
	svc LedgerService
}

func RegisterLedgerRoutes(g *router.Group, h *LedgerHandler) {
	g.GET("/ledger", h.List)
}

func NewLedgerHandler(svc LedgerService) *LedgerHandler {
	return &LedgerHandler{svc: svc}
}

// List returns the caller's own entries.
func (h *LedgerHandler) List(ctx *xhttp.RequestCtx) {
	a, ok := actor(ctx)
	if !ok {
		return
	}

	f := model.LedgerFilter{
		AccountID: a.AccountID,
		Limit:     queryInt(ctx, "limit"),
		Offset:    queryInt(ctx, "offset"),
		Desc:      strings.EqualFold(query(ctx, "order"), "desc"),
	}
	if v := query(ctx, "kind"); v != "" {
		kind := model.LedgerKind(v)
		if kind != model.LedgerKindPoints && kind != model.LedgerKindCash {
			writeError(ctx, xhttp.StatusBadRequest, "kind must be points or cash")
			return
		}
		f.Kind = &kind
	}
	if v := query(ctx, "from"); v != "" {
		t, err := parseTime(v)
		if err != nil {
			writeError(ctx, xhttp.StatusBadRequest, "invalid from")
			return
		}
		f.From = &t
	}
	if v := query(ctx, "to"); v != "" {
		t, err := parseTime(v)
		if err != nil {
			writeError(ctx, xhttp.StatusBadRequest, "invalid to")
			return
		}
		f.To = &t
	}

	items, total, err := h.svc.List(ctx, f)
	if err != nil {
		writeAppError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, listResponse[*model.LedgerEntry]{Items: items, Total: total})
}

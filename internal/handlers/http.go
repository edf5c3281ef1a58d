package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/nimasrn/paint-rewards/internal/apperr"
	xhttp "github.com/nimasrn/paint-rewards/pkg/http"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

type listResponse[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
}

// bind decodes and validates the body, answering 400 itself on failure.
func bind(ctx *xhttp.RequestCtx, dst any) bool {
	if err := json.Unmarshal(ctx.PostBody(), dst); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) || len(fields) == 0 {
		return err.Error()
	}
	f := fields[0]
	if f.Param() != "" {
		return fmt.Sprintf("%s failed on %s=%s", f.Field(), f.Tag(), f.Param())
	}
	return fmt.Sprintf("%s failed on %s", f.Field(), f.Tag())
}

// actor returns the authenticated caller or answers 401.
func actor(ctx *xhttp.RequestCtx) (xhttp.Actor, bool) {
	a, ok := xhttp.ActorFrom(ctx)
	if !ok {
		writeJSON(ctx, xhttp.StatusUnauthorized, errorResponse{Error: "authentication required", Kind: "unauthorized"})
	}
	return a, ok
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, errorResponse{Error: msg, Kind: string(apperr.KindValidation)})
}

// writeAppError maps an error from the services to its status and body.
// System faults are logged once by the service that produced them.
func writeAppError(ctx *xhttp.RequestCtx, err error) {
	kind := apperr.KindOf(err)
	writeJSON(ctx, kind.HTTPStatus(), errorResponse{Error: apperr.Message(err), Kind: string(kind)})
}

func pathInt64(ctx *xhttp.RequestCtx, name string) (int64, bool) {
	raw := fmt.Sprint(ctx.UserValue(name))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(ctx, xhttp.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

func queryInt(ctx *xhttp.RequestCtx, key string) int {
	n, _ := strconv.Atoi(query(ctx, key))
	return n
}

func parseTime(s string) (time.Time, error) {
	// RFC3339 or YYYY-MM-DD
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

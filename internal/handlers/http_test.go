package handlers

import (
	"errors"
	"testing"

	"github.com/nimasrn/paint-rewards/internal/apperr"
	"github.com/nimasrn/paint-rewards/pkg/logger"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWriteAppError_DoesNotLog(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	t.Cleanup(logger.Replace(zap.New(core)))

	ctx := setupTestContext("POST", "/api/v1/transfers", nil)
	writeAppError(ctx, apperr.Internal("internal error", errors.New("db down")))
	assert.Equal(t, 500, ctx.Response.StatusCode())
	assert.Equal(t, "internal", decodeError(t, ctx).Kind)

	ctx = setupTestContext("POST", "/api/v1/transfers", nil)
	writeAppError(ctx, apperr.Conflict("transfer code collision"))
	assert.Equal(t, 409, ctx.Response.StatusCode())

	assert.Zero(t, logs.Len())
}

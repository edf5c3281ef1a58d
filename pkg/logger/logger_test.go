package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestConfigure(t *testing.T) {
	t.Cleanup(func() { _ = Configure("", "") })

	require.NoError(t, Configure("production", "warn"))
	assert.False(t, GetLogger().log.Desugar().Core().Enabled(zapcore.InfoLevel))
	assert.True(t, GetLogger().log.Desugar().Core().Enabled(zapcore.WarnLevel))

	require.NoError(t, Configure("dev", ""))
	assert.True(t, GetLogger().log.Desugar().Core().Enabled(zapcore.DebugLevel))

	before := GetLogger()
	assert.Error(t, Configure("dev", "loud"))
	assert.Same(t, before, GetLogger())
}

func TestReplace(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	restore := Replace(zap.New(core))

	Error("payout failed", "transfer_id", "T1")
	Debug("ignored")
	restore()
	Info("after restore")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "payout failed", entry.Message)
	assert.Equal(t, "T1", entry.ContextMap()["transfer_id"])
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SUPER_USER_MOBILE", "9000000000")

	require.NoError(t, Load(""))
	c := Get()

	assert.Equal(t, "9000000000", c.SuperUserMobile)
	assert.Equal(t, "Asia/Kolkata", c.AppTimezone)
	assert.Equal(t, 30*time.Minute, c.PayoutReconcileInterval)
	assert.Equal(t, 2, c.PayoutReconcileMaxAttempts)
	assert.Equal(t, 10*time.Second, c.ExternalCallTimeout)
	assert.Equal(t, "erp_order_sync", c.ErpQueueName)
}

func TestLoad_MissingFile(t *testing.T) {
	err := Load("/nonexistent/.env")
	assert.Error(t, err)
}

func TestLocation(t *testing.T) {
	c := &Config{AppTimezone: "Asia/Kolkata"}
	loc, err := c.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Kolkata", loc.String())

	c.AppTimezone = "Mars/Olympus"
	_, err = c.Location()
	assert.Error(t, err)
}

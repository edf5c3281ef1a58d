package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerEntry_JSONSignedAmount(t *testing.T) {
	code := "D001_101626_7"
	entry := LedgerEntry{ID: 1, Amount: -1000, Balance: 500, Side: SideDebit, UniqueCode: &code}

	raw, err := json.Marshal(entry)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "-1000", out["amount"])
	assert.Equal(t, float64(500), out["balance"])
	assert.Equal(t, code, out["unique_code"])

	entry.Amount = 50
	assert.Equal(t, "+50", entry.SignedAmount())
}

func TestBuildScanURL(t *testing.T) {
	assert.Equal(t, "https://x.example/r?uid=ABC123", BuildScanURL("https://x.example/r", "ABC123"))
	assert.Equal(t, "ABC123", BuildScanURL("", "ABC123"))
}

func TestBatchCreateRequest_Validate(t *testing.T) {
	ok := BatchCreateRequest{Name: "b", Quantity: 3, RedeemablePoints: 50}
	assert.NoError(t, ok.Validate())

	bad := ok
	bad.Quantity = 0
	assert.Error(t, bad.Validate())

	bad = ok
	bad.Quantity = MaxBatchQuantity + 1
	assert.Error(t, bad.Validate())

	bad = ok
	bad.RedeemablePoints = 0
	assert.Error(t, bad.Validate())

	bad = ok
	bad.Value = -1
	assert.Error(t, bad.Validate())
}

func TestBatch_Expired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	assert.False(t, (&Batch{}).Expired(now))
	assert.True(t, (&Batch{ExpiresAt: &past}).Expired(now))
	assert.False(t, (&Batch{ExpiresAt: &future}).Expired(now))
}

func TestPayoutStatus(t *testing.T) {
	assert.True(t, PayoutStatusSuccess.Terminal())
	assert.False(t, PayoutStatusReceived.Terminal())
	assert.True(t, PayoutStatusFailed.Refundable())
	assert.False(t, PayoutStatusSuccess.Refundable())
}

func TestValidateOrderItems(t *testing.T) {
	assert.Error(t, ValidateOrderItems(nil))
	assert.Error(t, ValidateOrderItems([]OrderItemRequest{{ItemID: 1, Quantity: 0}}))
	assert.NoError(t, ValidateOrderItems([]OrderItemRequest{{ItemID: 1, Quantity: 2, Rate: 10.5}}))
}

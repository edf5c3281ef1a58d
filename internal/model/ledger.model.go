package model

import (
	"encoding/json"
	"strconv"
	"time"
)

type LedgerKind string

const (
	LedgerKindPoints LedgerKind = "points"
	LedgerKindCash   LedgerKind = "cash"
)

type LedgerSide string

const (
	SideCredit LedgerSide = "credit"
	SideDebit  LedgerSide = "debit"
)

type Narration string

const (
	NarrationQRScan       Narration = "QR_SCAN"
	NarrationQRScanReview Narration = "QR_SCAN_REVIEW"
	NarrationTransferOut  Narration = "TRANSFER_OUT"
	NarrationTransferIn   Narration = "TRANSFER_IN"
	NarrationPayoutDebit  Narration = "PAYOUT_DEBIT"
	NarrationPayoutRefund Narration = "PAYOUT_REFUND"
)

// LedgerEntry is an immutable audit record. Amount is signed, Balance is the
// account balance right after the mutation.
type LedgerEntry struct {
	ID          int64      `json:"id"`
	AccountID   int64      `json:"account_id"`
	Kind        LedgerKind `json:"kind"`
	Narration   Narration  `json:"narration"`
	Description string     `json:"description"`
	Amount      int64      `json:"-"`
	Balance     int64      `json:"balance"`
	Side        LedgerSide `json:"side"`
	UniqueCode  *string    `json:"unique_code,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// SignedAmount renders the amount with an explicit sign, e.g. "+50" or "-1000".
func (e *LedgerEntry) SignedAmount() string {
	if e.Amount < 0 {
		return strconv.FormatInt(e.Amount, 10)
	}
	return "+" + strconv.FormatInt(e.Amount, 10)
}

func (e LedgerEntry) MarshalJSON() ([]byte, error) {
	type alias LedgerEntry
	return json.Marshal(struct {
		alias
		Amount string `json:"amount"`
	}{alias: alias(e), Amount: e.SignedAmount()})
}

type LedgerFilter struct {
	AccountID int64
	Kind      *LedgerKind
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
	Desc      bool
}

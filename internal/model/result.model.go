package model

// RedemptionResult is returned by a successful scan. Bypass is set when the
// review identity re-ran the bookkeeping on an already claimed channel.
type RedemptionResult struct {
	Coupon        *Coupon `json:"coupon"`
	Channel       Channel `json:"channel"`
	Credited      int64   `json:"credited"`
	Balance       int64   `json:"balance"`
	LedgerEntryID int64   `json:"ledger_entry_id"`
	Bypass        bool    `json:"bypass,omitempty"`
}

type TransferResult struct {
	From             *Account       `json:"from"`
	To               *Account       `json:"to"`
	Amount           int64          `json:"amount"`
	UniqueCode       *string        `json:"unique_code,omitempty"`
	SenderBalance    int64          `json:"sender_balance"`
	RecipientBalance int64          `json:"recipient_balance"`
	Entries          []*LedgerEntry `json:"entries"`
}

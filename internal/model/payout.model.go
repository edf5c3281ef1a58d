package model

import "time"

type PayoutStatus string

const (
	PayoutStatusPending  PayoutStatus = "PENDING"
	PayoutStatusReceived PayoutStatus = "RECEIVED"
	PayoutStatusSuccess  PayoutStatus = "SUCCESS"
	PayoutStatusRejected PayoutStatus = "REJECTED"
	PayoutStatusFailed   PayoutStatus = "FAILED"
)

// Terminal statuses are sticky.
func (s PayoutStatus) Terminal() bool {
	return s == PayoutStatusSuccess || s == PayoutStatusRejected || s == PayoutStatusFailed
}

// Refundable reports whether reaching s returns the cash to the account.
func (s PayoutStatus) Refundable() bool {
	return s == PayoutStatusRejected || s == PayoutStatusFailed
}

func (s PayoutStatus) Valid() bool {
	switch s {
	case PayoutStatusPending, PayoutStatusReceived, PayoutStatusSuccess, PayoutStatusRejected, PayoutStatusFailed:
		return true
	}
	return false
}

var NonTerminalPayoutStatuses = []PayoutStatus{PayoutStatusPending, PayoutStatusReceived}

type PayoutTransaction struct {
	ID                int64        `json:"id"`
	TransferID        string       `json:"transfer_id"`
	AccountID         int64        `json:"account_id"`
	Amount            int64        `json:"amount"`
	Status            PayoutStatus `json:"status"`
	StatusDescription string       `json:"status_description,omitempty"`
	ProviderReference string       `json:"provider_reference,omitempty"`
	ReconcileAttempts int          `json:"reconcile_attempts"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// PayoutInitiation is what the provider needs to start a transfer.
type PayoutInitiation struct {
	TransferID  string
	Amount      int64
	Beneficiary string
	Remarks     string
}

// ProviderStatus is the provider's view of a transfer. Status and SubStatus
// are passed through verbatim.
type ProviderStatus struct {
	TransferID  string
	Status      string
	SubStatus   string
	Reference   string
	Description string
}

const (
	ProviderStatusSuccess  = "SUCCESS"
	ProviderStatusRejected = "REJECTED"
	ProviderSubStatusDone  = "COMPLETED"
	ProviderStatusReceived = "RECEIVED"
	ProviderStatusPending  = "PENDING"
	ProviderStatusFailed   = "FAILED"
)

// Resolve maps the provider's answer to the status to apply; ok is false when
// the transfer has not reached a decision yet.
func (s ProviderStatus) Resolve() (PayoutStatus, bool) {
	switch {
	case s.Status == ProviderStatusSuccess && s.SubStatus == ProviderSubStatusDone:
		return PayoutStatusSuccess, true
	case s.Status == ProviderStatusRejected:
		return PayoutStatusRejected, true
	}
	return "", false
}

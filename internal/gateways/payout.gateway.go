package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/nimasrn/paint-rewards/internal/model"
	"github.com/nimasrn/paint-rewards/pkg/logger"
	"github.com/valyala/fasthttp"
)

const (
	headerClientID     = "X-Client-Id"
	headerClientSecret = "X-Client-Secret"
)

type PayoutConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
	Dial         fasthttp.DialFunc
}

// PayoutRequest is the body of POST /v1/payouts.
type PayoutRequest struct {
	TransferID  string `json:"transfer_id"`
	Amount      int64  `json:"amount"`
	Beneficiary string `json:"beneficiary"`
	Remarks     string `json:"remarks,omitempty"`
}

// PayoutResponse is returned by both initiation and status lookups.
type PayoutResponse struct {
	TransferID        string `json:"transfer_id"`
	Status            string `json:"status"`
	SubStatus         string `json:"sub_status"`
	ReferenceID       string `json:"reference_id"`
	StatusDescription string `json:"status_description"`
}

func (r PayoutResponse) toProviderStatus() *model.ProviderStatus {
	return &model.ProviderStatus{
		TransferID:  r.TransferID,
		Status:      r.Status,
		SubStatus:   r.SubStatus,
		Reference:   r.ReferenceID,
		Description: r.StatusDescription,
	}
}

// PayoutClient talks to the bank payout provider.
type PayoutClient struct {
	endpoint *endpoint
	headers  map[string]string
}

func NewPayoutClient(cfg PayoutConfig) *PayoutClient {
	return &PayoutClient{
		endpoint: newEndpoint(EndpointConfig{
			Name:    "payout-provider",
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
			Dial:    cfg.Dial,
		}),
		headers: map[string]string{
			headerClientID:     cfg.ClientID,
			headerClientSecret: cfg.ClientSecret,
		},
	}
}

func (c *PayoutClient) Initiate(ctx context.Context, req model.PayoutInitiation) (*model.ProviderStatus, error) {
	body, err := json.Marshal(PayoutRequest{
		TransferID:  req.TransferID,
		Amount:      req.Amount,
		Beneficiary: req.Beneficiary,
		Remarks:     req.Remarks,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payout request: %w", err)
	}

	respBody, err := c.endpoint.do(ctx, fasthttp.MethodPost, "/v1/payouts", body, c.headers)
	if err != nil {
		return nil, err
	}

	status, err := decodePayout(respBody)
	if err != nil {
		return nil, err
	}
	if status.TransferID == "" {
		status.TransferID = req.TransferID
	}

	logger.Info("payout initiated", "transfer_id", req.TransferID, "status", status.Status, "sub_status", status.SubStatus)
	return status, nil
}

func (c *PayoutClient) Status(ctx context.Context, transferID string) (*model.ProviderStatus, error) {
	respBody, err := c.endpoint.do(ctx, fasthttp.MethodGet, "/v1/payouts/"+url.PathEscape(transferID), nil, c.headers)
	if err != nil {
		return nil, err
	}

	status, err := decodePayout(respBody)
	if err != nil {
		return nil, err
	}
	if status.TransferID == "" {
		status.TransferID = transferID
	}
	return status, nil
}

func (c *PayoutClient) Stats() EndpointStats {
	return c.endpoint.stats()
}

func decodePayout(body []byte) (*model.ProviderStatus, error) {
	var resp PayoutResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payout response: %w", err)
	}
	return resp.toProviderStatus(), nil
}

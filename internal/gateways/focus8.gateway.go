package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/nimasrn/paint-rewards/internal/apperr"
	"github.com/nimasrn/paint-rewards/internal/model"
	"github.com/nimasrn/paint-rewards/pkg/logger"
	"github.com/valyala/fasthttp"
)

const (
	focus8LoginPath   = "/Focus8API/Login"
	focus8AccountPath = "/Focus8API/List/Masters/Core__Account"
	focus8VoucherPath = "/Focus8API/Transactions/Vouchers/Sales%20Invoice"
	focus8SessionKey  = "fSessionId"
)

type Focus8Config struct {
	BaseURL   string
	Username  string
	Password  string
	CompanyID string
	Timeout   time.Duration
	Dial      fasthttp.DialFunc
}

// focus8Envelope wraps every Focus8 answer; Result is 1 on success.
type focus8Envelope struct {
	Data    []json.RawMessage `json:"data"`
	Result  int               `json:"result"`
	Message string            `json:"message"`
}

func (e focus8Envelope) invalidSession() bool {
	return strings.Contains(strings.ToLower(e.Message), "invalid session")
}

type focus8Login struct {
	Username  string `json:"Username"`
	Password  string `json:"password"`
	CompanyID string `json:"CompanyId"`
}

type focus8Request struct {
	Data []any `json:"data"`
}

// Focus8Client pushes sales vouchers into the Focus8 ERP and resolves
// customer accounts from its masters. The session id is shared by all
// calls and renewed once when the server reports it as invalid.
type Focus8Client struct {
	endpoint *endpoint
	cfg      Focus8Config

	mu      sync.Mutex
	session string
}

func NewFocus8Client(cfg Focus8Config) *Focus8Client {
	return &Focus8Client{
		endpoint: newEndpoint(EndpointConfig{
			Name:    "focus8",
			BaseURL: strings.TrimRight(cfg.BaseURL, "/"),
			Timeout: cfg.Timeout,
			Dial:    cfg.Dial,
		}),
		cfg: cfg,
	}
}

func (c *Focus8Client) login(ctx context.Context) (string, error) {
	body, err := json.Marshal(focus8Request{Data: []any{focus8Login{
		Username:  c.cfg.Username,
		Password:  c.cfg.Password,
		CompanyID: c.cfg.CompanyID,
	}}})
	if err != nil {
		return "", err
	}

	env, err := c.call(ctx, fasthttp.MethodPost, focus8LoginPath, body, nil)
	if err != nil {
		return "", err
	}
	if env.Result != 1 || len(env.Data) == 0 {
		return "", apperr.ExternalService("Focus8 login failed", fmt.Errorf("result %d: %s", env.Result, env.Message))
	}

	var data struct {
		SessionID string `json:"fSessionId"`
	}
	if err := json.Unmarshal(env.Data[0], &data); err != nil || data.SessionID == "" {
		return "", apperr.ExternalService("Focus8 login returned no session", err)
	}

	logger.Info("focus8 session established", "company_id", c.cfg.CompanyID)
	return data.SessionID, nil
}

func (c *Focus8Client) sessionID(ctx context.Context, renew bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != "" && !renew {
		return c.session, nil
	}
	id, err := c.login(ctx)
	if err != nil {
		return "", err
	}
	c.session = id
	return id, nil
}

// authorized runs one call with the current session, logging in again and
// retrying once if Focus8 rejects the session.
func (c *Focus8Client) authorized(ctx context.Context, method, path string, body []byte) (*focus8Envelope, error) {
	session, err := c.sessionID(ctx, false)
	if err != nil {
		return nil, err
	}

	env, err := c.call(ctx, method, path, body, map[string]string{focus8SessionKey: session})
	if err != nil {
		return nil, err
	}
	if !env.invalidSession() {
		return env, nil
	}

	logger.Warn("focus8 session rejected, logging in again")
	if session, err = c.sessionID(ctx, true); err != nil {
		return nil, err
	}
	return c.call(ctx, method, path, body, map[string]string{focus8SessionKey: session})
}

func (c *Focus8Client) call(ctx context.Context, method, path string, body []byte, headers map[string]string) (*focus8Envelope, error) {
	respBody, err := c.endpoint.do(ctx, method, path, body, headers)
	if err != nil {
		return nil, apperr.ExternalService("Focus8 request failed", err)
	}

	var env focus8Envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, apperr.ExternalService("Focus8 returned an unreadable response", err)
	}
	return &env, nil
}

// LookupAccountID finds the customer account master by code. A non-success
// result is logged and reported as not found.
func (c *Focus8Client) LookupAccountID(ctx context.Context, code string) (int64, error) {
	where := url.QueryEscape(fmt.Sprintf("sCode eq '%s'", strings.ReplaceAll(code, "'", "''")))
	env, err := c.authorized(ctx, fasthttp.MethodGet, focus8AccountPath+"?where="+where, nil)
	if err != nil {
		return 0, err
	}
	if env.Result != 1 {
		logger.Warn("focus8 account lookup unsuccessful", "code", code, "result", env.Result, "message", env.Message)
		return 0, nil
	}
	if len(env.Data) == 0 {
		return 0, nil
	}

	var master struct {
		ID int64 `json:"iMasterId"`
	}
	if err := json.Unmarshal(env.Data[0], &master); err != nil {
		return 0, apperr.ExternalService("Focus8 returned an unreadable account", err)
	}
	return master.ID, nil
}

// PushSalesVoucher posts the voucher and returns the voucher number Focus8
// assigned to it.
func (c *Focus8Client) PushSalesVoucher(ctx context.Context, v *model.SalesVoucher) (string, error) {
	body, err := json.Marshal(focus8Request{Data: []any{v}})
	if err != nil {
		return "", fmt.Errorf("failed to marshal sales voucher: %w", err)
	}

	env, err := c.authorized(ctx, fasthttp.MethodPost, focus8VoucherPath, body)
	if err != nil {
		return "", err
	}
	if env.Result != 1 {
		return "", apperr.ExternalService("Focus8 rejected the sales voucher", fmt.Errorf("result %d: %s", env.Result, env.Message))
	}

	var voucherNo string
	if len(env.Data) > 0 {
		var data struct {
			VoucherNo string `json:"VoucherNo"`
		}
		if err := json.Unmarshal(env.Data[0], &data); err == nil {
			voucherNo = data.VoucherNo
		}
	}

	logger.Info("focus8 sales voucher posted", "voucher_no", voucherNo, "customer", v.Header.CustomerAC)
	return voucherNo, nil
}

func (c *Focus8Client) Stats() EndpointStats {
	return c.endpoint.stats()
}

package gateway

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nimasrn/paint-rewards/pkg/logger"
	"github.com/valyala/fasthttp"
)

var ErrCircuitOpen = errors.New("endpoint circuit is open")

// StatusError is returned for non-2xx answers.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d, body: %s", e.Code, e.Body)
}

type EndpointMetrics struct {
	TotalRequests    atomic.Int64
	SuccessfulReqs   atomic.Int64
	FailedReqs       atomic.Int64
	TotalLatencyMs   atomic.Int64
	ConsecutiveFails atomic.Int32

	mu             sync.RWMutex
	latencyHistory []int64
	maxHistorySize int
}

func NewEndpointMetrics() *EndpointMetrics {
	return &EndpointMetrics{
		latencyHistory: make([]int64, 0, 100),
		maxHistorySize: 100,
	}
}

func (m *EndpointMetrics) RecordSuccess(latencyMs int64) {
	m.TotalRequests.Add(1)
	m.SuccessfulReqs.Add(1)
	m.TotalLatencyMs.Add(latencyMs)
	m.ConsecutiveFails.Store(0)

	m.mu.Lock()
	if len(m.latencyHistory) >= m.maxHistorySize {
		m.latencyHistory = m.latencyHistory[1:]
	}
	m.latencyHistory = append(m.latencyHistory, latencyMs)
	m.mu.Unlock()
}

func (m *EndpointMetrics) RecordFailure() {
	m.TotalRequests.Add(1)
	m.FailedReqs.Add(1)
	m.ConsecutiveFails.Add(1)
}

func (m *EndpointMetrics) SuccessRate() float64 {
	total := m.TotalRequests.Load()
	if total == 0 {
		return 1.0
	}
	return float64(m.SuccessfulReqs.Load()) / float64(total)
}

func (m *EndpointMetrics) P95LatencyMs() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.latencyHistory) == 0 {
		return 0
	}

	sorted := make([]int64, len(m.latencyHistory))
	copy(sorted, m.latencyHistory)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := int(float64(len(sorted)) * 0.95)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// EndpointConfig is shared by the outbound clients.
type EndpointConfig struct {
	Name                    string
	BaseURL                 string
	Timeout                 time.Duration
	MaxConns                int
	CircuitBreakerThreshold int
	CircuitBreakerTimeout   time.Duration
	// Dial overrides the transport, used by in-process tests.
	Dial fasthttp.DialFunc
}

// endpoint wraps one external base URL with a fasthttp client, latency
// metrics and a consecutive-failure circuit breaker.
type endpoint struct {
	config           EndpointConfig
	client           *fasthttp.Client
	metrics          *EndpointMetrics
	circuitOpenUntil atomic.Int64
}

func newEndpoint(cfg EndpointConfig) *endpoint {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = 64
	}
	if cfg.CircuitBreakerThreshold <= 0 {
		cfg.CircuitBreakerThreshold = 5
	}
	if cfg.CircuitBreakerTimeout <= 0 {
		cfg.CircuitBreakerTimeout = 30 * time.Second
	}

	return &endpoint{
		config: cfg,
		client: &fasthttp.Client{
			Name:                cfg.Name,
			MaxConnsPerHost:     cfg.MaxConns,
			ReadTimeout:         cfg.Timeout,
			WriteTimeout:        cfg.Timeout,
			MaxIdleConnDuration: 60 * time.Second,
			Dial:                cfg.Dial,
		},
		metrics: NewEndpointMetrics(),
	}
}

func (e *endpoint) available() bool {
	return time.Now().UnixNano() >= e.circuitOpenUntil.Load()
}

// do performs one request bounded by ctx's deadline (or the configured
// timeout) and returns a copy of the body.
func (e *endpoint) do(ctx context.Context, method, path string, body []byte, headers map[string]string) ([]byte, error) {
	if !e.available() {
		return nil, ErrCircuitOpen
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(e.config.BaseURL + path)
	req.Header.SetMethod(method)
	req.Header.SetContentType("application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if body != nil {
		req.SetBody(body)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(e.config.Timeout)
	}

	start := time.Now()
	err := e.client.DoDeadline(req, resp, deadline)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		e.failed(err)
		return nil, fmt.Errorf("%s request failed: %w", e.config.Name, err)
	}

	code := resp.StatusCode()
	if code < 200 || code >= 300 {
		if code >= 500 {
			e.failed(fmt.Errorf("status %d", code))
		}
		return nil, &StatusError{Code: code, Body: string(resp.Body())}
	}

	e.metrics.RecordSuccess(latency)
	out := make([]byte, len(resp.Body()))
	copy(out, resp.Body())
	return out, nil
}

func (e *endpoint) failed(err error) {
	e.metrics.RecordFailure()
	fails := e.metrics.ConsecutiveFails.Load()
	if fails >= int32(e.config.CircuitBreakerThreshold) {
		e.circuitOpenUntil.Store(time.Now().Add(e.config.CircuitBreakerTimeout).UnixNano())
		e.metrics.ConsecutiveFails.Store(0)
		logger.Warn("circuit breaker opened", "endpoint", e.config.Name, "consecutive_fails", fails, "timeout", e.config.CircuitBreakerTimeout, "error", err)
	}
}

type EndpointStats struct {
	Name         string  `json:"name"`
	Available    bool    `json:"available"`
	Total        int64   `json:"total"`
	Failed       int64   `json:"failed"`
	SuccessRate  float64 `json:"success_rate"`
	P95LatencyMs int64   `json:"p95_latency_ms"`
}

func (e *endpoint) stats() EndpointStats {
	return EndpointStats{
		Name:         e.config.Name,
		Available:    e.available(),
		Total:        e.metrics.TotalRequests.Load(),
		Failed:       e.metrics.FailedReqs.Load(),
		SuccessRate:  e.metrics.SuccessRate(),
		P95LatencyMs: e.metrics.P95LatencyMs(),
	}
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"

	"github.com/nimasrn/paint-rewards/internal/model"
	"github.com/nimasrn/paint-rewards/internal/services"
)

const webhookSignatureHeader = "X-Webhook-Signature"

// PayoutRequest mirrors what the rewards backend posts to /v1/payouts.
type PayoutRequest struct {
	TransferID  string `json:"transfer_id" binding:"required"`
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	Beneficiary string `json:"beneficiary" binding:"required"`
	Remarks     string `json:"remarks"`
}

// PayoutStatus is both the lookup response and the webhook body.
type PayoutStatus struct {
	TransferID        string    `json:"transfer_id"`
	Status            string    `json:"status"`
	SubStatus         string    `json:"sub_status,omitempty"`
	ReferenceID       string    `json:"reference_id"`
	StatusDescription string    `json:"status_description,omitempty"`
	Amount            int64     `json:"amount"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Simulator plays the bank payout provider: it accepts transfers, settles
// them after a random delay and optionally calls back the webhook.
type Simulator struct {
	mu          sync.Mutex
	successRate float64
	minDelay    time.Duration
	maxDelay    time.Duration
	webhookURL  string
	secret      string
	payouts     map[string]*PayoutStatus
	rng         *rand.Rand
	client      *fasthttp.Client
}

func NewSimulator(successRate float64, minDelay, maxDelay time.Duration, webhookURL, secret string) *Simulator {
	return &Simulator{
		successRate: successRate,
		minDelay:    minDelay,
		maxDelay:    maxDelay,
		webhookURL:  webhookURL,
		secret:      secret,
		payouts:     make(map[string]*PayoutStatus),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		client:      &fasthttp.Client{Name: "payoutsim"},
	}
}

// accept registers a transfer; a repeated transfer id returns the stored state.
func (s *Simulator) accept(req PayoutRequest) (PayoutStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.payouts[req.TransferID]; ok {
		return *p, false
	}
	p := &PayoutStatus{
		TransferID:  req.TransferID,
		Status:      model.ProviderStatusReceived,
		ReferenceID: "REF-" + uuid.New().String()[:12],
		Amount:      req.Amount,
		UpdatedAt:   time.Now(),
	}
	s.payouts[req.TransferID] = p
	return *p, true
}

func (s *Simulator) lookup(id string) (PayoutStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payouts[id]
	if !ok {
		return PayoutStatus{}, false
	}
	return *p, true
}

// settle moves a RECEIVED transfer to its final state.
func (s *Simulator) settle(id string) (PayoutStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payouts[id]
	if !ok || p.Status != model.ProviderStatusReceived {
		return PayoutStatus{}, false
	}
	if s.rng.Float64() < s.successRate {
		p.Status = model.ProviderStatusSuccess
		p.SubStatus = model.ProviderSubStatusDone
		p.StatusDescription = "Transfer credited to beneficiary"
	} else {
		p.Status = model.ProviderStatusRejected
		p.StatusDescription = s.randomRejection()
	}
	p.UpdatedAt = time.Now()
	return *p, true
}

func (s *Simulator) schedule(id string) {
	time.AfterFunc(s.randomDelay(), func() {
		p, ok := s.settle(id)
		if !ok {
			return
		}
		log.Info().
			Str("transfer_id", p.TransferID).
			Str("status", p.Status).
			Msg("payout settled")
		if s.webhookURL != "" {
			if err := s.notify(p); err != nil {
				log.Warn().Err(err).Str("transfer_id", p.TransferID).Msg("webhook delivery failed")
			}
		}
	})
}

func (s *Simulator) notify(p PayoutStatus) error {
	body, err := json.Marshal(p)
	if err != nil {
		return err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(s.webhookURL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	if s.secret != "" {
		req.Header.Set(webhookSignatureHeader, services.SignWebhook(s.secret, body))
	}
	req.SetBody(body)

	if err := s.client.DoTimeout(req, resp, 5*time.Second); err != nil {
		return err
	}
	if resp.StatusCode() >= 300 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode())
	}
	return nil
}

func (s *Simulator) randomDelay() time.Duration {
	delta := s.maxDelay - s.minDelay
	if delta <= 0 {
		return s.minDelay
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.minDelay + time.Duration(s.rng.Int63n(int64(delta)))
}

func (s *Simulator) randomRejection() string {
	reasons := []string{
		"Beneficiary account closed",
		"Invalid IFSC code",
		"Beneficiary bank offline",
		"Account name mismatch",
	}
	return reasons[s.rng.Intn(len(reasons))]
}

type Handler struct {
	sim *Simulator
}

func NewHandler(sim *Simulator) *Handler {
	return &Handler{sim: sim}
}

func (h *Handler) Initiate(c *gin.Context) {
	if c.GetHeader("X-Client-Id") == "" || c.GetHeader("X-Client-Secret") == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing client credentials"})
		return
	}

	var req PayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	p, created := h.sim.accept(req)
	if created {
		log.Info().
			Str("transfer_id", req.TransferID).
			Int64("amount", req.Amount).
			Msg("payout accepted")
		h.sim.schedule(req.TransferID)
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) Status(c *gin.Context) {
	p, ok := h.sim.lookup(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "transfer not found"})
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdateConfig(c *gin.Context) {
	var config struct {
		SuccessRate *float64 `json:"success_rate"`
	}
	if err := c.ShouldBindJSON(&config); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	h.sim.mu.Lock()
	if config.SuccessRate != nil && *config.SuccessRate >= 0 && *config.SuccessRate <= 1.0 {
		h.sim.successRate = *config.SuccessRate
		log.Info().Float64("rate", *config.SuccessRate).Msg("updated success rate")
	}
	rate := h.sim.successRate
	h.sim.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"success_rate": rate})
}

func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("request processed")
	})

	v1 := router.Group("/v1")
	{
		v1.POST("/payouts", handler.Initiate)
		v1.GET("/payouts/:id", handler.Status)
		v1.PUT("/config", handler.UpdateConfig)
	}
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	return router
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	port := getEnv("PORT", "8082")
	successRate := getEnvFloat("SUCCESS_RATE", 0.9)
	minDelay := getEnvDuration("MIN_DELAY", 2*time.Second)
	maxDelay := getEnvDuration("MAX_DELAY", 10*time.Second)
	webhookURL := os.Getenv("WEBHOOK_URL")
	secret := os.Getenv("PAYOUT_WEBHOOK_SECRET")

	log.Info().
		Str("port", port).
		Float64("success_rate", successRate).
		Dur("min_delay", minDelay).
		Dur("max_delay", maxDelay).
		Str("webhook_url", webhookURL).
		Msg("starting payout provider simulator")

	sim := NewSimulator(successRate, minDelay, maxDelay, webhookURL, secret)
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      SetupRouter(NewHandler(sim)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("server exited")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

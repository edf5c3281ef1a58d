package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nimasrn/paint-rewards/internal/config"
	gateway "github.com/nimasrn/paint-rewards/internal/gateways"
	"github.com/nimasrn/paint-rewards/internal/handlers"
	"github.com/nimasrn/paint-rewards/internal/model"
	"github.com/nimasrn/paint-rewards/internal/queue"
	"github.com/nimasrn/paint-rewards/internal/repository"
	"github.com/nimasrn/paint-rewards/internal/services"
	xhttp "github.com/nimasrn/paint-rewards/pkg/http"
	"github.com/nimasrn/paint-rewards/pkg/logger"
	"github.com/nimasrn/paint-rewards/pkg/pg"
	"github.com/nimasrn/paint-rewards/pkg/prom"
	"github.com/nimasrn/paint-rewards/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}
	cfg := config.Get()
	if err := logger.Configure(cfg.AppEnv, cfg.LogLevel); err != nil {
		logger.Warn("invalid log level, keeping default", "level", cfg.LogLevel, "error", err)
	}
	defer logger.Sync()
	logger.Info("starting api", "version", version, "commit", commit, "date", date)

	if cfg.JWTSecret == "" {
		logger.Error("JWT_SECRET is required")
		return
	}
	loc, err := cfg.Location()
	if err != nil {
		logger.Error("invalid timezone", "error", err)
		return
	}

	s := xhttp.NewServer(xhttp.DefaultServerOption.WithLimits(
		cfg.HttpServerReadTimeout, cfg.HttpServerWriteTimeout,
		cfg.HttpServerReadBufferSize, cfg.HttpServerWriteBufferSize,
	))
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(cfg.ExternalCallTimeout + 5*time.Second))
	s.Use(xhttp.RequestIDMiddleware)
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)
	s.Use(xhttp.AuthMiddleware(xhttp.NewJWTVerifier(cfg.JWTSecret), "/health", "/payouts/webhook"))

	db, err := pg.CreateReadWrite(pg.Config{
		User:     cfg.PostgresReadUser,
		Host:     cfg.PostgresReadHost,
		Port:     cfg.PostgresReadPort,
		Password: cfg.PostgresReadPassword,
		Database: cfg.PostgresReadDatabase,
	}, pg.Config{
		User:     cfg.PostgresWriteUser,
		Host:     cfg.PostgresWriteHost,
		Port:     cfg.PostgresWritePort,
		Password: cfg.PostgresWritePassword,
		Database: cfg.PostgresWriteDatabase,
	}, cfg.AppEnv == "dev")
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", cfg.RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{cfg.RedisAddr},
		ClientName: cfg.AppName + "-api",
		DB:         cfg.RedisDatabase,
		Username:   cfg.RedisUsername,
		Password:   cfg.RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	erpQueue, err := queue.NewQueue(redisAdap, queue.QueueConfig{
		Name:          cfg.ErpQueueName,
		ConsumerGroup: cfg.QueueConsumerGroup,
		MaxLen:        cfg.QueueMaxLen,
	})
	if err != nil {
		logger.Error("failed creating erp sync queue", "error", err)
		return
	}

	// repositories
	accountRepo := repository.NewAccountRepository(db)
	couponRepo := repository.NewCouponRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	counterRepo := repository.NewDailyCounterRepository(db)
	payoutRepo := repository.NewPayoutRepository(db)
	orderRepo := repository.NewOrderRepository(db)

	payoutClient := gateway.NewPayoutClient(gateway.PayoutConfig{
		BaseURL:      cfg.PayoutProviderUrl,
		ClientID:     cfg.PayoutClientID,
		ClientSecret: cfg.PayoutClientSecret,
		Timeout:      cfg.ExternalCallTimeout,
	})
	focus8Client := gateway.NewFocus8Client(gateway.Focus8Config{
		BaseURL:   cfg.Focus8Url,
		Username:  cfg.Focus8Username,
		Password:  cfg.Focus8Password,
		CompanyID: cfg.Focus8CompanyID,
		Timeout:   cfg.ExternalCallTimeout,
	})

	// services
	redemptionService := services.NewRedemptionService(db, accountRepo, couponRepo, ledgerRepo, cfg.RedemptionBypassMobile)
	transferService := services.NewTransferService(db, accountRepo, ledgerRepo, counterRepo, model.SuperUserRef{Mobile: cfg.SuperUserMobile}, loc)
	ledgerService := services.NewLedgerService(ledgerRepo)
	batchService := services.NewBatchService(accountRepo, couponRepo, cfg.CouponBaseUrl)
	payoutService := services.NewPayoutService(db, accountRepo, ledgerRepo, payoutRepo, payoutClient, cfg.ExternalCallTimeout).
		WithWebhookSecret(cfg.PayoutWebhookSecret).
		WithWebhookMarker(redisAdap)
	orderService := services.NewOrderService(accountRepo, orderRepo, erpQueue, focus8Client, cfg.ExternalCallTimeout)

	// v1 handlers
	g := s.Router.Group("/api/v1")
	handlers.RegisterRedemptionRoutes(g, handlers.NewRedemptionHandler(redemptionService))
	handlers.RegisterTransferRoutes(g, handlers.NewTransferHandler(transferService))
	handlers.RegisterLedgerRoutes(g, handlers.NewLedgerHandler(ledgerService))
	handlers.RegisterBatchRoutes(g, handlers.NewBatchHandler(batchService))
	handlers.RegisterPayoutRoutes(g, handlers.NewPayoutHandler(payoutService))
	handlers.RegisterOrderRoutes(g, handlers.NewOrderHandler(orderService))
	handlers.RegisterHealthRoutes(g, handlers.NewHealthHandler(map[string]handlers.HealthCheck{
		"postgres": db.Ping,
		"redis": func(ctx context.Context) error {
			return redisAdap.Client().Ping(ctx).Err()
		},
	}))

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	if err := prom.Create(hostname, cfg.AppEnv, cfg.PromNamespace); err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}
	if cfg.AppDebugMetricsAddr != "" {
		go prom.ListenAndServer(cfg.AppDebugMetricsAddr, cfg.AppDebugMetricsURI)
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		serve := s.ListenAndServe
		if cfg.HttpPrefork {
			serve = s.PreforkListenAndServe
		}
		if err := serve(cfg.HttpListenAddr); err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	<-c
	s.Shutdown()
	if err := erpQueue.Stop(time.Second); err != nil {
		logger.Warn("failed to stop erp queue", "error", err)
	}
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}

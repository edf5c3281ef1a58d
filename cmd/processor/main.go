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
	"github.com/nimasrn/paint-rewards/internal/processor"
	"github.com/nimasrn/paint-rewards/internal/queue"
	"github.com/nimasrn/paint-rewards/internal/repository"
	"github.com/nimasrn/paint-rewards/internal/services"
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
	logger.Info("starting processor", "version", version, "commit", commit, "date", date)

	readConf := pg.Config{
		User:     cfg.PostgresReadUser,
		Host:     cfg.PostgresReadHost,
		Port:     cfg.PostgresReadPort,
		Password: cfg.PostgresReadPassword,
		Database: cfg.PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     cfg.PostgresWriteUser,
		Host:     cfg.PostgresWriteHost,
		Port:     cfg.PostgresWritePort,
		Password: cfg.PostgresWritePassword,
		Database: cfg.PostgresWriteDatabase,
	}

	pgDebug := false
	if cfg.AppEnv == "dev" {
		pgDebug = true
	}
	db, err := pg.CreateReadWrite(readConf, writeConf, pgDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", cfg.RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{cfg.RedisAddr},
		ClientName: cfg.AppName + "-processor",
		DB:         cfg.RedisDatabase,
		Username:   cfg.RedisUsername,
		Password:   cfg.RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	queueConf := queue.QueueConfig{
		Name:              cfg.ErpQueueName,
		ConsumerGroup:     cfg.QueueConsumerGroup,
		ConsumerName:      cfg.QueueConsumerName,
		MaxRetries:        cfg.QueueMaxRetries,
		VisibilityTimeout: cfg.QueueVisibilityTimeout,
		PollInterval:      cfg.QueuePollInterval,
		BatchSize:         cfg.QueueBatchSize,
		MaxLen:            cfg.QueueMaxLen,
		EnableDLQ:         cfg.QueueEnableDLQ,
	}
	// manual retries from the worker side are published back onto the same stream
	publisher, err := queue.NewQueue(redisAdap, queueConf)
	if err != nil {
		logger.Error("failed creating erp sync publisher", "error", err)
		return
	}

	accountRepo := repository.NewAccountRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	payoutRepo := repository.NewPayoutRepository(db)
	orderRepo := repository.NewOrderRepository(db)

	focus8Client := gateway.NewFocus8Client(gateway.Focus8Config{
		BaseURL:   cfg.Focus8Url,
		Username:  cfg.Focus8Username,
		Password:  cfg.Focus8Password,
		CompanyID: cfg.Focus8CompanyID,
		Timeout:   cfg.ExternalCallTimeout,
	})
	orderService := services.NewOrderService(accountRepo, orderRepo, publisher, focus8Client, cfg.ExternalCallTimeout)

	idempotencyService := processor.NewIdempotencyService(redisAdap, processor.DefaultIdempotencyConfig())
	service, err := processor.NewProcessorService(redisAdap, processor.ServiceConfig{
		Queue:     queueConf,
		Consumers: 1,
		Workers:   cfg.WorkerCount,
	})
	if err != nil {
		logger.Error("failed to create the processor", "error", err)
		return
	}
	service.RegisterProcessor(processor.NewErpSyncProcessor(orderService, idempotencyService))

	var hostname string
	hostname, err = os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	err = prom.Create(hostname, cfg.AppEnv, cfg.PromNamespace)
	if err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}

	go func() {
		prom.ListenAndServer(":9100", "/metrics")
	}()

	if err := service.Start(); err != nil {
		logger.Error("failed to start processor", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.PayoutReconcileEnabled {
		payoutClient := gateway.NewPayoutClient(gateway.PayoutConfig{
			BaseURL:      cfg.PayoutProviderUrl,
			ClientID:     cfg.PayoutClientID,
			ClientSecret: cfg.PayoutClientSecret,
			Timeout:      cfg.ExternalCallTimeout,
		})
		payoutService := services.NewPayoutService(db, accountRepo, ledgerRepo, payoutRepo, payoutClient, cfg.ExternalCallTimeout)
		reconciler := processor.NewPayoutReconciler(payoutService, redisAdap, processor.ReconcilerConfig{
			Interval:    cfg.PayoutReconcileInterval,
			MaxAttempts: cfg.PayoutReconcileMaxAttempts,
		})
		go reconciler.Run(ctx)
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	cancel()
	service.Stop()
	if err := publisher.Stop(time.Second); err != nil {
		logger.Warn("failed to stop erp sync publisher", "error", err)
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

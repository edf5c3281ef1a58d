package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nimasrn/paint-rewards/internal/queue"
	"github.com/nimasrn/paint-rewards/pkg/logger"
	"github.com/nimasrn/paint-rewards/pkg/prom"
	"github.com/nimasrn/paint-rewards/pkg/redis"
	"github.com/nimasrn/paint-rewards/pkg/worker"
)

const (
	HealthInterval  = 30 * time.Second
	MetricsInterval = 30 * time.Second
	ShutdownTimeout = time.Minute
)

// Processor handles one kind of queued job.
type Processor interface {
	Process(ctx context.Context, message *queue.Message) error
	GetType() string
}

type ServiceConfig struct {
	Queue queue.QueueConfig
	// Consumers is the number of stream consumers feeding the worker pool.
	Consumers         int
	Workers           int
	ProcessingTimeout time.Duration
}

// ProcessorService reads jobs from the queue and runs them on a worker pool.
type ProcessorService struct {
	adapter   redis.RedisAdapter
	config    ServiceConfig
	processor Processor
	queues    []*queue.Queue
	metrics   *ServiceMetrics
	worker    *worker.Pool[*job]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewProcessorService(adapter redis.RedisAdapter, config ServiceConfig) (*ProcessorService, error) {
	if adapter == nil {
		return nil, errors.New("redis adapter is required")
	}
	if config.Consumers <= 0 {
		config.Consumers = 1
	}
	if config.Workers <= 0 {
		config.Workers = 4
	}
	if config.ProcessingTimeout <= 0 {
		config.ProcessingTimeout = time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &ProcessorService{
		adapter: adapter,
		config:  config,
		metrics: NewServiceMetrics(),
		ctx:     ctx,
		cancel:  cancel,
		worker:  worker.NewPool[*job](config.Workers*2, config.Workers),
	}, nil
}

func (s *ProcessorService) RegisterProcessor(p Processor) {
	s.processor = p
	logger.Info("registered processor", "type", p.GetType())
}

func (s *ProcessorService) Metrics() *ServiceMetrics {
	return s.metrics
}

func (s *ProcessorService) Start() error {
	if s.processor == nil {
		return errors.New("no processor registered")
	}

	s.worker.SetHandler(s.workerHandler)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.worker.Run(s.ctx); err != nil && !errors.Is(err, worker.ErrWorkersStopped) {
			logger.Error("worker manager stopped", "error", err)
		}
	}()

	for i := 0; i < s.config.Consumers; i++ {
		cfg := s.config.Queue
		cfg.ConsumerName = fmt.Sprintf("%s-%d", cfg.ConsumerName, i)

		q, err := queue.NewQueue(s.adapter, cfg)
		if err != nil {
			return fmt.Errorf("failed to create queue consumer %d: %w", i, err)
		}
		if err := q.Consume(s.messageHandler); err != nil {
			return fmt.Errorf("failed to start consumer %d: %w", i, err)
		}
		s.queues = append(s.queues, q)
	}

	s.wg.Add(2)
	go s.every(MetricsInterval, s.reportMetrics)
	go s.every(HealthInterval, s.performHealthCheck)

	logger.Info("processor service started",
		"type", s.processor.GetType(),
		"queue", s.config.Queue.Name,
		"consumers", len(s.queues),
		"workers", s.config.Workers)
	return nil
}

func (s *ProcessorService) every(interval time.Duration, fn func()) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			fn()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *ProcessorService) reportMetrics() {
	m := s.metrics.Snapshot()
	logger.Info("processor metrics",
		"processed", m.Processed,
		"failed", m.Failed,
		"rate_per_second", m.RatePerSecond,
		"avg_duration_ms", m.AvgDuration.Milliseconds(),
		"uptime", m.Uptime.Round(time.Second))

	if len(s.queues) == 0 {
		return
	}
	if qs, err := s.queues[0].GetStats(s.ctx); err == nil {
		logger.Info("queue stats", "queue", s.config.Queue.Name, "total", qs.TotalMessages, "pending", qs.PendingMessages)
		prom.SetERPQueue(qs.TotalMessages, qs.PendingMessages)
	}
}

func (s *ProcessorService) performHealthCheck() {
	if err := s.adapter.Client().Ping(s.ctx).Err(); err != nil {
		logger.Error("health check failed: redis unreachable", "error", err)
		return
	}

	if len(s.queues) > 0 {
		stats, err := s.queues[0].GetStats(s.ctx)
		if err != nil {
			logger.Warn("health check: queue stats unavailable", "error", err)
			return
		}
		if stats.PendingMessages > 1000 {
			logger.Warn("health check: erp sync backlog is high", "pending", stats.PendingMessages)
		}
	}
	logger.Debug("health check ok")
}

func (s *ProcessorService) Stop() {
	logger.Info("shutting down processor service")
	s.cancel()

	var wg sync.WaitGroup
	for i, q := range s.queues {
		wg.Add(1)
		go func(index int, q *queue.Queue) {
			defer wg.Done()
			if err := q.Stop(ShutdownTimeout); err != nil {
				logger.Error("error stopping queue consumer", "consumer", index, "error", err)
			}
		}(i, q)
	}
	wg.Wait()

	s.worker.Stop()
	s.wg.Wait()
	s.reportMetrics()

	logger.Info("processor service stopped")
}

type job struct {
	ctx    context.Context
	msg    *queue.Message
	result chan error
}

// messageHandler hands the message to the pool and waits for its outcome
// so the queue can ack or leave it pending.
func (s *ProcessorService) messageHandler(ctx context.Context, msg *queue.Message) error {
	jobCtx, cancel := context.WithTimeout(ctx, s.config.ProcessingTimeout)
	defer cancel()

	j := &job{ctx: jobCtx, msg: msg, result: make(chan error, 1)}
	if err := s.worker.Submit(jobCtx, j); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}

	select {
	case err := <-j.result:
		return err
	case <-jobCtx.Done():
		return fmt.Errorf("timeout waiting for worker: %w", jobCtx.Err())
	}
}

func (s *ProcessorService) workerHandler(workerIndex int, j *job) {
	defer func() {
		if v := recover(); v != nil {
			s.metrics.RecordFailure()
			logger.Error("processor panicked", "worker", workerIndex, "message_id", j.msg.ID, "panic", v)
			j.result <- fmt.Errorf("processor panicked: %v", v)
		}
	}()
	if j.ctx.Err() != nil {
		logger.Warn("job expired before processing started", "worker", workerIndex, "message_id", j.msg.ID)
		return
	}

	start := time.Now()
	err := s.processor.Process(j.ctx, j.msg)
	if err != nil {
		s.metrics.RecordFailure()
		logger.Error("failed to process job", "worker", workerIndex, "message_id", j.msg.ID, "error", err)
	} else {
		s.metrics.RecordSuccess(time.Since(start))
	}

	// buffered, never blocks
	j.result <- err
}

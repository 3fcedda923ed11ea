package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nimasrn/cashback-ledger/internal/queue"
	"github.com/nimasrn/cashback-ledger/pkg/logger"
	"github.com/nimasrn/cashback-ledger/pkg/redis"
	"github.com/nimasrn/cashback-ledger/pkg/worker"
)

const ProcessingTimeout = time.Second * 5
const HealthInterval = time.Second * 30
const MetricsInterval = time.Second * 30
const ShutdownTimeout = time.Minute

// HighLagThreshold is the pending count above which the health check warns.
const HighLagThreshold = 10_000

type ServiceConfig struct {
	Queue     queue.QueueConfig
	Consumers int
	Workers   int
}

// ProcessorService consumes reconciliation jobs from the stream and hands
// them to a worker pool. Each job is dispatched by its "type" metadata.
type ProcessorService struct {
	adapter    redis.RedisAdapter
	config     ServiceConfig
	queues     []*queue.Queue
	processors map[string]Processor
	metrics    *ServiceMetrics
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	worker     *worker.WorkerManager
}

type Processor interface {
	Process(ctx context.Context, message *queue.Message) error
	GetType() string
}

func NewProcessorService(adapter redis.RedisAdapter, cfg ServiceConfig) *ProcessorService {
	if cfg.Consumers <= 0 {
		cfg.Consumers = 1
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &ProcessorService{
		adapter:    adapter,
		config:     cfg,
		queues:     make([]*queue.Queue, 0, cfg.Consumers),
		processors: make(map[string]Processor),
		metrics:    NewServiceMetrics(),
		ctx:        ctx,
		cancel:     cancel,
		worker:     worker.NewWorkerManager(cfg.Workers*16, cfg.Workers, nil),
	}
}

func (s *ProcessorService) RegisterProcessor(processor Processor) {
	s.processors[processor.GetType()] = processor
	logger.Info("registered processor", "type", processor.GetType())
}

func (s *ProcessorService) Start() error {
	logger.Info("starting processor service...")

	s.worker.SetWorker(s.workerHandler)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.worker.Start(s.ctx); err != nil {
			logger.Info("worker manager stopped", "reason", err)
		}
	}()

	for i := 0; i < s.config.Consumers; i++ {
		queueConfig := s.config.Queue
		queueConfig.ConsumerName = fmt.Sprintf("%s-instance-%d", queueConfig.ConsumerName, i)

		q, err := queue.NewQueue(s.ctx, s.adapter, queueConfig)
		if err != nil {
			return fmt.Errorf("failed to create queue %d: %w", i, err)
		}

		if err := q.Consume(s.messageHandler); err != nil {
			return fmt.Errorf("failed to start consumer %d: %w", i, err)
		}

		s.queues = append(s.queues, q)
		logger.Debug("started consumer instance", "instance", i)
	}

	s.wg.Add(2)
	go s.metricsReporter()
	go s.healthChecker()

	logger.Info("processor service started", "consumers", len(s.queues), "workers", s.worker.Size())
	return nil
}

func (s *ProcessorService) metricsReporter() {
	defer s.wg.Done()

	ticker := time.NewTicker(MetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.reportMetrics()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *ProcessorService) reportMetrics() {
	stats := s.metrics.Snapshot()

	logger.Info("service metrics",
		"total_processed", stats.Processed,
		"total_failed", stats.Failed,
		"rate_per_second", stats.RatePerSecond,
		"avg_duration_ms", stats.AvgDuration.Milliseconds(),
		"uptime_seconds", stats.Uptime.Seconds(),
		"backlog", s.worker.GetUnreadCount())

	if len(s.queues) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if qStats, err := s.queues[0].GetStats(ctx); err == nil {
		logger.Info("queue stats",
			"queue", s.queues[0].Name(),
			"total", qStats.TotalMessages,
			"pending", qStats.PendingMessages,
			"dead_letters", qStats.DeadLetters)
	}
}

func (s *ProcessorService) healthChecker() {
	defer s.wg.Done()

	ticker := time.NewTicker(HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.performHealthCheck(s.ctx)
		case <-s.ctx.Done():
			return
		}
	}
}

// performHealthCheck pings Redis and reports stream lag. All consumers share
// one stream so its stats are read once.
func (s *ProcessorService) performHealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*2)
	defer cancel()

	if err := s.adapter.Ping(ctx); err != nil {
		logger.Error("health check failed: redis unreachable", "error", err)
		return err
	}
	if len(s.queues) == 0 {
		return nil
	}

	stats, err := s.queues[0].GetStats(ctx)
	if err != nil {
		logger.Warn("health check: queue stats unavailable", "error", err)
		return err
	}
	if stats.PendingMessages > HighLagThreshold {
		logger.Warn("health check: queue has high lag", "pending_messages", stats.PendingMessages)
	}
	if stats.DeadLetters > 0 {
		logger.Warn("health check: dead lettered settlement jobs need manual reconciliation", "dead_letters", stats.DeadLetters)
	}

	logger.Debug("health check ok")
	return nil
}

func (s *ProcessorService) Stop() {
	logger.Info("shutting down processor service...")

	s.cancel()

	timeout := ShutdownTimeout
	stopChan := make(chan struct{}, len(s.queues))

	for i, q := range s.queues {
		go func(index int, q *queue.Queue) {
			if err := q.Stop(timeout); err != nil {
				logger.Error("error stopping queue", "queue", index, "error", err)
			}
			stopChan <- struct{}{}
		}(i, q)
	}

	for range s.queues {
		select {
		case <-stopChan:
		case <-time.After(timeout + 5*time.Second):
			logger.Warn("timeout waiting for queues to stop")
		}
	}

	s.worker.Exit()
	s.wg.Wait()
	s.reportMetrics()

	logger.Info("processor service stopped")
}

type jobResult struct {
	msg        *queue.Message
	resultChan chan error
	ctx        context.Context
}

// messageHandler hands msg to the worker pool and waits for its result, so
// the queue acknowledges only what a worker finished.
func (s *ProcessorService) messageHandler(ctx context.Context, msg *queue.Message) error {
	resultChan := make(chan error, 1)

	msgCtx, cancel := context.WithTimeout(ctx, ProcessingTimeout+time.Second)
	defer cancel()

	job := &jobResult{
		msg:        msg,
		resultChan: resultChan,
		ctx:        msgCtx,
	}

	if err := s.worker.Enqueue(msgCtx, job); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}

	select {
	case err := <-resultChan:
		return err
	case <-msgCtx.Done():
		return fmt.Errorf("timeout waiting for worker to process message: %w", msgCtx.Err())
	}
}

func (s *ProcessorService) workerHandler(workerIndex int, job interface{}) {
	jobRes, ok := job.(*jobResult)
	if !ok {
		logger.Error("invalid job type in worker", "worker", workerIndex)
		return
	}

	select {
	case <-jobRes.ctx.Done():
		logger.Warn("job context cancelled before processing started", "worker", workerIndex)
		return
	default:
	}

	resultErr := s.dispatch(jobRes.ctx, workerIndex, jobRes.msg)

	// resultChan is buffered, the handler may already have timed out
	jobRes.resultChan <- resultErr
}

func (s *ProcessorService) dispatch(ctx context.Context, workerIndex int, msg *queue.Message) error {
	start := time.Now()

	jobType := msg.Metadata["type"]
	processor, ok := s.processors[jobType]
	if !ok {
		// retrying cannot help an unknown type
		logger.Error("no processor for job type", "worker", workerIndex, "type", jobType, "message_id", msg.ID)
		s.metrics.RecordFailure()
		return nil
	}

	if err := processor.Process(ctx, msg); err != nil {
		s.metrics.RecordFailure()
		logger.Error("failed to process message", "worker", workerIndex, "type", jobType, "error", err)
		return err
	}

	s.metrics.RecordSuccess(time.Since(start))
	return nil
}

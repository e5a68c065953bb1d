package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pingpanda/pingpanda/internal/metrics"
	"github.com/pingpanda/pingpanda/internal/model"
	"github.com/pingpanda/pingpanda/internal/repository"
)

const (
	// ReportStreamKey carries delivery outcomes from the delivery service.
	ReportStreamKey = "stream:delivery_reports"

	// DeadLetterStreamKey holds reports that could not be parsed.
	DeadLetterStreamKey = "stream:delivery_reports:dlq"

	// ConsumerGroup is the Redis consumer group name.
	ConsumerGroup = "delivery_status_workers"

	// DefaultBatchSize is the max reports per read.
	DefaultBatchSize = 100

	// DefaultBlockTimeout is how long to block waiting for messages.
	DefaultBlockTimeout = 5 * time.Second

	// DefaultMaxRetries is the max attempts for one report on store errors.
	DefaultMaxRetries = 3

	// DefaultClaimInterval is how often to scan pending messages.
	DefaultClaimInterval = 10 * time.Second

	// DefaultClaimIdle is the idle time before reclaiming pending messages.
	DefaultClaimIdle = 30 * time.Second

	// DefaultMetricsInterval is how often to refresh queue depth metrics.
	DefaultMetricsInterval = 5 * time.Second
)

// StatusStore applies delivery outcomes.
type StatusStore interface {
	UpdateDeliveryStatus(ctx context.Context, eventID string, status model.DeliveryStatus) error
}

// Report is one delivery outcome.
type Report struct {
	EventID string
	Status  model.DeliveryStatus
	Error   string
}

// Worker consumes delivery reports and moves events out of pending.
type Worker struct {
	redis           *redis.Client
	store           StatusStore
	logger          *slog.Logger
	metrics         metrics.Recorder
	consumerID      string
	batchSize       int
	blockTimeout    time.Duration
	maxRetries      int
	retryBase       time.Duration
	claimInterval   time.Duration
	claimIdle       time.Duration
	metricsInterval time.Duration
	claimStartID    string
	lastClaim       time.Time
	lastMetrics     time.Time

	started  bool
	draining bool
	cancel   context.CancelFunc
	done     chan struct{}
	mu       sync.Mutex
}

// NewWorker creates a delivery report worker.
func NewWorker(client *redis.Client, store StatusStore, logger *slog.Logger, consumerID string, recorder metrics.Recorder) *Worker {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Worker{
		redis:           client,
		store:           store,
		logger:          logger.With("component", "notify.worker", "consumer_id", consumerID),
		metrics:         recorder,
		consumerID:      consumerID,
		batchSize:       DefaultBatchSize,
		blockTimeout:    DefaultBlockTimeout,
		maxRetries:      DefaultMaxRetries,
		retryBase:       time.Second,
		claimInterval:   DefaultClaimInterval,
		claimIdle:       DefaultClaimIdle,
		metricsInterval: DefaultMetricsInterval,
		claimStartID:    "0-0",
	}
}

// Run starts the worker loop. Blocks until context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return errors.New("worker already started")
	}
	w.started = true
	w.done = make(chan struct{})
	ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	defer close(w.done)

	if err := w.ensureConsumerGroup(ctx); err != nil {
		return fmt.Errorf("ensure consumer group: %w", err)
	}

	w.logger.Info("delivery worker started")

	for {
		w.mu.Lock()
		draining := w.draining
		w.mu.Unlock()

		if draining {
			w.logger.Info("delivery worker draining, stopping")
			return nil
		}

		select {
		case <-ctx.Done():
			w.logger.Info("delivery worker stopping")
			return ctx.Err()
		default:
			if err := w.processOnce(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				w.logger.Error("process error", "error", err)
				time.Sleep(1 * time.Second)
			}
		}
	}
}

// Shutdown stops the worker after the in-flight batch.
// It matches server.ShutdownFunc.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return nil
	}
	w.draining = true
	cancel := w.cancel
	done := w.done
	w.mu.Unlock()

	w.logger.Info("delivery worker shutdown initiated")

	if cancel != nil {
		cancel()
	}

	if done != nil {
		select {
		case <-done:
			w.logger.Info("delivery worker shutdown complete")
			return nil
		case <-ctx.Done():
			w.logger.Warn("delivery worker shutdown timed out")
			return ctx.Err()
		}
	}
	return nil
}

func (w *Worker) ensureConsumerGroup(ctx context.Context) error {
	err := w.redis.XGroupCreateMkStream(ctx, ReportStreamKey, ConsumerGroup, "0").Err()
	if err != nil && !isConsumerGroupExistsError(err) {
		return err
	}
	return nil
}

// processOnce reads and applies a single batch.
func (w *Worker) processOnce(ctx context.Context) error {
	w.maybeUpdateQueueDepth(ctx)

	claimed, err := w.maybeClaimPending(ctx)
	if err != nil {
		w.logger.Warn("failed to claim pending messages", "error", err)
	}

	messages := claimed
	if len(messages) == 0 {
		messages, err = w.readBatch(ctx)
		if err != nil {
			return err
		}
	}

	var acks []string
	var firstErr error
	for _, msg := range messages {
		report, err := parseReport(msg)
		if err != nil {
			w.deadLetterMessage(ctx, msg, err.Error())
			acks = append(acks, msg.ID)
			continue
		}
		if err := w.applyWithRetry(ctx, report); err != nil {
			// Left unacknowledged; reclaimed after claimIdle.
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		acks = append(acks, msg.ID)
	}

	if err := w.ackMessages(ctx, acks); err != nil {
		return err
	}
	return firstErr
}

// applyWithRetry applies one report. Unknown events and reports for events
// that already left pending are dropped without error.
func (w *Worker) applyWithRetry(ctx context.Context, report Report) error {
	var lastErr error
	for attempt := 1; attempt <= w.maxRetries; attempt++ {
		err := w.store.UpdateDeliveryStatus(ctx, report.EventID, report.Status)
		switch {
		case err == nil:
			w.logger.Info("delivery status applied",
				"event_id", report.EventID,
				"status", report.Status,
				"delivery_error", report.Error,
			)
			w.metrics.IncDeliveryReportProcessed("applied")
			return nil
		case errors.Is(err, repository.ErrEventNotFound), errors.Is(err, repository.ErrInvalidTransition):
			w.logger.Warn("delivery report dropped",
				"event_id", report.EventID,
				"status", report.Status,
				"reason", err,
			)
			w.metrics.IncDeliveryReportProcessed("skipped")
			return nil
		}

		lastErr = err
		if attempt == w.maxRetries {
			break
		}
		backoff := retryDelay(w.retryBase, attempt)
		w.logger.Warn("delivery status update failed, retrying",
			"event_id", report.EventID,
			"attempt", attempt,
			"backoff_seconds", backoff.Seconds(),
			"error", err,
		)
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	w.metrics.IncDeliveryReportProcessed("failed")
	return fmt.Errorf("update delivery status %s: %w", report.EventID, lastErr)
}

// parseReport reads the flat stream fields event_id, status and error.
func parseReport(msg redis.XMessage) (Report, error) {
	eventID, _ := msg.Values["event_id"].(string)
	if strings.TrimSpace(eventID) == "" {
		return Report{}, errors.New("event_id missing")
	}
	raw, _ := msg.Values["status"].(string)
	status := model.DeliveryStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !status.IsTerminal() {
		return Report{}, fmt.Errorf("unsupported status %q", raw)
	}
	detail, _ := msg.Values["error"].(string)
	return Report{EventID: eventID, Status: status, Error: detail}, nil
}

func (w *Worker) maybeClaimPending(ctx context.Context) ([]redis.XMessage, error) {
	if w.claimInterval <= 0 || w.claimIdle <= 0 {
		return nil, nil
	}
	if !w.lastClaim.IsZero() && time.Since(w.lastClaim) < w.claimInterval {
		return nil, nil
	}

	w.lastClaim = time.Now()
	messages, start, err := w.redis.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   ReportStreamKey,
		Group:    ConsumerGroup,
		Consumer: w.consumerID,
		MinIdle:  w.claimIdle,
		Start:    w.claimStartID,
		Count:    int64(w.batchSize),
	}).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("xautoclaim: %w", err)
	}
	if start != "" {
		w.claimStartID = start
	}
	return messages, nil
}

func (w *Worker) maybeUpdateQueueDepth(ctx context.Context) {
	if w.metricsInterval <= 0 {
		return
	}
	if !w.lastMetrics.IsZero() && time.Since(w.lastMetrics) < w.metricsInterval {
		return
	}
	w.lastMetrics = time.Now()

	groups, err := w.redis.XInfoGroups(ctx, ReportStreamKey).Result()
	if err != nil && err != redis.Nil {
		w.logger.Warn("failed to read stream group info", "error", err)
		return
	}
	for _, group := range groups {
		if group.Name == ConsumerGroup {
			w.metrics.SetDeliveryQueueDepth(group.Pending + group.Lag)
			return
		}
	}
}

// SetBatchSize overrides the default batch size.
func (w *Worker) SetBatchSize(size int) {
	if size > 0 {
		w.batchSize = size
	}
}

// SetBlockTimeout overrides the default blocking timeout.
func (w *Worker) SetBlockTimeout(timeout time.Duration) {
	if timeout > 0 {
		w.blockTimeout = timeout
	}
}

// SetClaimIdle overrides the default pending idle threshold.
func (w *Worker) SetClaimIdle(idle time.Duration) {
	if idle > 0 {
		w.claimIdle = idle
	}
}

// SetRetryBase overrides the base of the exponential retry backoff.
func (w *Worker) SetRetryBase(base time.Duration) {
	if base > 0 {
		w.retryBase = base
	}
}

func (w *Worker) readBatch(ctx context.Context) ([]redis.XMessage, error) {
	streams, err := w.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    ConsumerGroup,
		Consumer: w.consumerID,
		Streams:  []string{ReportStreamKey, ">"},
		Count:    int64(w.batchSize),
		Block:    w.blockTimeout,
	}).Result()

	if err == redis.Nil || len(streams) == 0 {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xreadgroup: %w", err)
	}

	return streams[0].Messages, nil
}

func (w *Worker) deadLetterMessage(ctx context.Context, msg redis.XMessage, detail string) {
	w.logger.Warn("dead-lettering malformed delivery report",
		"message_id", msg.ID,
		"detail", detail,
	)

	values := map[string]interface{}{
		"original_id":      msg.ID,
		"original_stream":  ReportStreamKey,
		"detail":           detail,
		"dead_lettered_at": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range msg.Values {
		values["orig_"+k] = v
	}

	if err := w.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: DeadLetterStreamKey,
		MaxLen: 10000,
		Approx: true,
		ID:     "*",
		Values: values,
	}).Err(); err != nil {
		w.logger.Error("failed to write to dead-letter queue",
			"message_id", msg.ID,
			"error", err,
		)
	}

	w.metrics.IncDeliveryReportProcessed("dead_lettered")
}

func (w *Worker) ackMessages(ctx context.Context, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return nil
	}

	if err := w.redis.XAck(ctx, ReportStreamKey, ConsumerGroup, messageIDs...).Err(); err != nil {
		return fmt.Errorf("xack: %w", err)
	}
	return nil
}

func isConsumerGroupExistsError(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}

package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Varun5711/talentlens/internal/logger"
	"github.com/Varun5711/talentlens/internal/metrics"
	"github.com/redis/go-redis/v9"
)

// Sink persists a batch of decoded events. A returned error leaves the
// batch pending in the consumer group; Run reads it again from the pending
// list before taking new entries.
type Sink interface {
	WriteEvents(ctx context.Context, events []*Event) error
}

type ConsumerConfig struct {
	Stream       string
	Group        string
	Name         string
	BatchSize    int
	BlockTime    time.Duration
	PollInterval time.Duration
	// ClaimIdle is how long an entry must sit unacknowledged with another
	// consumer before this one takes it over. Zero disables claiming.
	ClaimIdle time.Duration
}

// Consumer reads the audit stream through a consumer group and hands
// batches to a Sink.
type Consumer struct {
	client  *redis.Client
	sink    Sink
	cfg     ConsumerConfig
	log     *logger.Logger
	metrics *metrics.Metrics
}

func NewConsumer(client *redis.Client, sink Sink, cfg ConsumerConfig) *Consumer {
	return &Consumer{
		client: client,
		sink:   sink,
		cfg:    cfg,
		log:    logger.New("audit-consumer"),
	}
}

func (c *Consumer) WithLogger(l *logger.Logger) *Consumer {
	c.log = l
	return c
}

func (c *Consumer) WithMetrics(m *metrics.Metrics) *Consumer {
	c.metrics = m
	return c
}

func (c *Consumer) EnsureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

// Pending reports how many entries the group has delivered but not acknowledged.
func (c *Consumer) Pending(ctx context.Context) (int64, error) {
	summary, err := c.client.XPending(ctx, c.cfg.Stream, c.cfg.Group).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read pending summary: %w", err)
	}
	return summary.Count, nil
}

// Run blocks until ctx is cancelled. It starts by draining this consumer's
// pending list, and goes back to it after every failed read or write.
func (c *Consumer) Run(ctx context.Context) {
	if n, err := c.Reclaim(ctx); err != nil {
		c.log.Warn("Failed to reclaim stale entries: %v", err)
	} else if n > 0 {
		c.log.Info("Reclaimed %d stale entries", n)
	}

	backlog := true
	for ctx.Err() == nil {
		n, err := c.Poll(ctx, backlog)
		switch {
		case err != nil:
			c.log.Error("%v", err)
			backlog = true
			sleep(ctx, c.cfg.PollInterval)
		case backlog && n == 0:
			backlog = false
		}
	}
}

// Reclaim moves entries idle for at least ClaimIdle from other consumers in
// the group onto this one, so a crashed worker's batch is not stranded.
func (c *Consumer) Reclaim(ctx context.Context) (int, error) {
	if c.cfg.ClaimIdle <= 0 {
		return 0, nil
	}

	claimed := 0
	start := "0-0"
	for {
		ids, next, err := c.client.XAutoClaimJustID(ctx, &redis.XAutoClaimArgs{
			Stream:   c.cfg.Stream,
			Group:    c.cfg.Group,
			Consumer: c.cfg.Name,
			MinIdle:  c.cfg.ClaimIdle,
			Start:    start,
			Count:    int64(c.batchSize()),
		}).Result()
		if err != nil {
			return claimed, fmt.Errorf("failed to claim pending entries: %w", err)
		}
		claimed += len(ids)
		if next == "0-0" || next == "" {
			return claimed, nil
		}
		start = next
	}
}

// Poll reads one batch and acknowledges what was handled. With backlog set
// it reads this consumer's pending list from the start instead of waiting
// for new entries. It returns the number of entries read.
func (c *Consumer) Poll(ctx context.Context, backlog bool) (int, error) {
	args := &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Name,
		Streams:  []string{c.cfg.Stream, ">"},
		Count:    int64(c.batchSize()),
		Block:    c.cfg.BlockTime,
	}
	if backlog {
		args.Streams[1] = "0"
		args.Block = -1
	}

	streams, err := c.client.XReadGroup(ctx, args).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || ctx.Err() != nil {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read from stream: %w", err)
	}

	var (
		read     int
		writeErr error
	)
	for _, stream := range streams {
		read += len(stream.Messages)
		ack, err := c.handle(ctx, stream.Messages)
		if err != nil {
			c.metrics.AuditConsumed("retried", len(stream.Messages)-len(ack))
			writeErr = fmt.Errorf("failed to write %d events: %w", len(stream.Messages)-len(ack), err)
		}
		if len(ack) == 0 {
			continue
		}
		if err := c.client.XAck(ctx, c.cfg.Stream, c.cfg.Group, ack...).Err(); err != nil {
			c.log.Error("Failed to acknowledge messages: %v", err)
		}
	}
	return read, writeErr
}

func (c *Consumer) batchSize() int {
	if c.cfg.BatchSize < 1 {
		return 100
	}
	return c.cfg.BatchSize
}

// handle decodes a batch and writes it. It returns the message ids safe to
// acknowledge: malformed messages always, the rest only after a successful
// write.
func (c *Consumer) handle(ctx context.Context, messages []redis.XMessage) ([]string, error) {
	var (
		events   = make([]*Event, 0, len(messages))
		valid    = make([]string, 0, len(messages))
		poisoned []string
	)

	for _, msg := range messages {
		event, err := EventFromValues(msg.Values)
		if err != nil {
			c.log.Warn("Dropping malformed message %s: %v", msg.ID, err)
			c.metrics.AuditConsumed("dropped", 1)
			poisoned = append(poisoned, msg.ID)
			continue
		}
		events = append(events, event)
		valid = append(valid, msg.ID)
	}

	if len(events) == 0 {
		return poisoned, nil
	}

	if err := c.sink.WriteEvents(ctx, events); err != nil {
		return poisoned, err
	}

	c.metrics.AuditConsumed("written", len(events))
	c.log.Debug("Wrote %d audit events", len(events))
	return append(poisoned, valid...), nil
}

func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// Package stream feeds submission jobs from a Redis stream into the detector.
//
// Jobs are read through a consumer group. Entries left pending by a crashed
// consumer are claimed again once idle, failed jobs are retried with backoff
// and finally moved to a dead-letter stream, and the source stream is trimmed
// to a retention window.
package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/RishiKendai/aegis-dupe/internal/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Submitter adds one submission; false means it was skipped
type Submitter interface {
	AddSubmission(ctx context.Context, path, id string) bool
}

var errSubmissionSkipped = errors.New("submission skipped")

const (
	readCount    = 10
	readBlock    = time.Second
	pendingBatch = 100
	minIdleTime  = time.Minute
)

type Consumer struct {
	client        redis.Cmdable
	streamKey     string
	consumerGroup string
	consumerName  string
	submitter     Submitter
	retryHandler  *RetryHandler

	retentionDuration   time.Duration
	pelRecoveryInterval time.Duration
	cleanupInterval     time.Duration
	lastPELCheck        time.Time
}

func NewConsumer(
	client redis.Cmdable,
	streamKey string,
	consumerGroup string,
	consumerName string,
	submitter Submitter,
	retryHandler *RetryHandler,
	retentionDuration time.Duration,
) *Consumer {
	return &Consumer{
		client:              client,
		streamKey:           streamKey,
		consumerGroup:       consumerGroup,
		consumerName:        consumerName,
		submitter:           submitter,
		retryHandler:        retryHandler,
		retentionDuration:   retentionDuration,
		pelRecoveryInterval: 30 * time.Second,
		cleanupInterval:     time.Hour,
	}
}

// Start consumes until ctx is cancelled
func (c *Consumer) Start(ctx context.Context) error {
	if err := c.createConsumerGroup(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to create consumer group")
	}

	// entries a previous run read but never acknowledged
	if err := c.recoverPEL(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to recover pending submissions on startup")
	}
	c.lastPELCheck = time.Now()

	go c.runCleanupPeriodically(ctx)

	log.Info().
		Str("stream", c.streamKey).
		Str("group", c.consumerGroup).
		Str("consumer", c.consumerName).
		Dur("retention", c.retentionDuration).
		Msg("Submission consumer started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := c.consume(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error().Err(err).Msg("Error consuming submissions")
			time.Sleep(time.Second)
		}
	}
}

func (c *Consumer) createConsumerGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.streamKey, c.consumerGroup, "$").Err()
	if err != nil {
		if strings.Contains(err.Error(), "BUSYGROUP") {
			log.Debug().Str("group", c.consumerGroup).Msg("Consumer group already exists")
			return nil
		}
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	log.Info().Str("group", c.consumerGroup).Str("stream", c.streamKey).Msg("Created consumer group")
	return nil
}

// recoverPEL claims pending entries idle for at least minIdleTime and
// processes them
func (c *Consumer) recoverPEL(ctx context.Context) error {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: c.streamKey,
		Group:  c.consumerGroup,
		Start:  "-",
		End:    "+",
		Count:  pendingBatch,
	}).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get pending messages: %w", err)
	}

	ids := claimable(pending, minIdleTime)
	if len(ids) == 0 {
		return nil
	}

	claimed, err := c.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   c.streamKey,
		Group:    c.consumerGroup,
		Consumer: c.consumerName,
		MinIdle:  minIdleTime,
		Messages: ids,
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to claim messages: %w", err)
	}

	log.Info().Int("pending", len(pending)).Int("claimed", len(claimed)).Msg("Claimed idle pending submissions")
	for _, msg := range claimed {
		if err := c.processMessage(ctx, msg); err != nil {
			log.Error().Err(err).Str("message_id", msg.ID).Msg("Failed to process claimed submission")
		}
	}
	return nil
}

func claimable(pending []redis.XPendingExt, idle time.Duration) []string {
	ids := make([]string, 0, len(pending))
	for _, p := range pending {
		if p.Idle >= idle {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

func (c *Consumer) consume(ctx context.Context) error {
	if time.Since(c.lastPELCheck) > c.pelRecoveryInterval {
		if err := c.recoverPEL(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to recover pending submissions")
		}
		c.lastPELCheck = time.Now()
	}

	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.consumerGroup,
		Consumer: c.consumerName,
		Streams:  []string{c.streamKey, ">"},
		Count:    readCount,
		Block:    readBlock,
	}).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read from stream: %w", err)
	}

	for _, s := range streams {
		if s.Stream != c.streamKey {
			continue
		}
		for _, msg := range s.Messages {
			if err := c.processMessage(ctx, msg); err != nil {
				log.Error().Err(err).Str("message_id", msg.ID).Msg("Failed to process submission")
			}
		}
	}
	return nil
}

// processMessage adds the submission a message describes. Malformed messages
// are acknowledged and dropped; failed ones are acknowledged after the retry
// handler moved them to the dead-letter stream.
func (c *Consumer) processMessage(ctx context.Context, msg redis.XMessage) error {
	streamMsg := &StreamMessage{ID: msg.ID, Fields: flattenFields(msg.Values)}

	job, err := ParseSubmission(streamMsg)
	if err != nil {
		log.Error().Err(err).Str("message_id", msg.ID).Msg("Failed to parse submission job")
		metrics.StreamMessages.WithLabelValues("malformed").Inc()
		_ = c.acknowledge(ctx, msg.ID)
		return err
	}

	err = c.retryHandler.RetryWithBackoff(ctx, func() error {
		if !c.submitter.AddSubmission(ctx, job.Path, job.SubmissionID) {
			return fmt.Errorf("%w: %s", errSubmissionSkipped, job.SubmissionID)
		}
		return nil
	}, msg.ID, msg.Values)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		// left pending for the next run
		return err
	}

	if ackErr := c.acknowledge(ctx, msg.ID); ackErr != nil {
		return ackErr
	}
	if err != nil {
		return err
	}
	metrics.StreamMessages.WithLabelValues("processed").Inc()
	return nil
}

// cleanupOldMessages trims entries older than the retention window
func (c *Consumer) cleanupOldMessages(ctx context.Context) error {
	cutoff := time.Now().Add(-c.retentionDuration)
	trimmed, err := c.client.XTrimMinID(ctx, c.streamKey, minStreamID(cutoff)).Result()
	if err != nil {
		return fmt.Errorf("failed to trim stream: %w", err)
	}
	if trimmed > 0 {
		log.Debug().
			Int64("trimmed", trimmed).
			Str("cutoff_time", cutoff.Format(time.RFC3339)).
			Msg("Trimmed old submissions from stream")
	}
	return nil
}

// minStreamID is the smallest stream id created at or after t
func minStreamID(t time.Time) string {
	return fmt.Sprintf("%d-0", t.UnixMilli())
}

func (c *Consumer) runCleanupPeriodically(ctx context.Context) {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	if err := c.cleanupOldMessages(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to run initial stream cleanup")
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.cleanupOldMessages(ctx); err != nil {
				log.Error().Err(err).Msg("Failed to trim stream")
			}
		}
	}
}

func (c *Consumer) acknowledge(ctx context.Context, messageID string) error {
	if err := c.client.XAck(ctx, c.streamKey, c.consumerGroup, messageID).Err(); err != nil {
		log.Error().Err(err).Str("message_id", messageID).Msg("Failed to acknowledge message")
		return err
	}
	log.Debug().Str("message_id", messageID).Msg("Message acknowledged")
	return nil
}

package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/RishiKendai/aegis-dupe/internal/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 500 * time.Millisecond
	defaultMaxDelay    = 10 * time.Second
)

// RetryHandler retries a message with exponential backoff and pushes it to
// the dead-letter list once every attempt failed
type RetryHandler struct {
	client      redis.Cmdable
	dlqKey      string
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

func NewRetryHandler(client redis.Cmdable, dlqKey string) *RetryHandler {
	return &RetryHandler{
		client:      client,
		dlqKey:      dlqKey,
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		maxDelay:    defaultMaxDelay,
	}
}

// backoff returns the wait before attempt n (n >= 1)
func (r *RetryHandler) backoff(n int) time.Duration {
	delay := r.baseDelay << (n - 1)
	if delay <= 0 || delay > r.maxDelay {
		return r.maxDelay
	}
	return delay
}

// RetryWithBackoff runs fn until it succeeds or the attempts run out. The
// last error is returned after the message went to the dead-letter list.
func (r *RetryHandler) RetryWithBackoff(ctx context.Context, fn func() error, messageID string, fields map[string]interface{}) error {
	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if attempt > 1 {
			metrics.StreamMessages.WithLabelValues("retried").Inc()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.backoff(attempt - 1)):
			}
		}

		if lastErr = fn(); lastErr == nil {
			return nil
		}
		log.Warn().
			Err(lastErr).
			Str("message_id", messageID).
			Int("attempt", attempt).
			Int("max_attempts", r.maxAttempts).
			Msg("Message processing failed")
	}

	if err := r.sendToDeadLetter(ctx, messageID, fields, lastErr); err != nil {
		log.Error().Err(err).Str("message_id", messageID).Msg("Failed to move message to dead-letter queue")
	}
	return fmt.Errorf("giving up after %d attempts: %w", r.maxAttempts, lastErr)
}

func (r *RetryHandler) sendToDeadLetter(ctx context.Context, messageID string, fields map[string]interface{}, cause error) error {
	values := make(map[string]interface{}, len(fields)+3)
	for k, v := range fields {
		values[k] = v
	}
	values["original_id"] = messageID
	values["error"] = cause.Error()
	values["failed_at"] = time.Now().UTC().Format(time.RFC3339)

	if err := r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.dlqKey,
		Values: values,
	}).Err(); err != nil {
		return fmt.Errorf("failed to add to dead-letter stream: %w", err)
	}

	metrics.StreamMessages.WithLabelValues("dead_lettered").Inc()
	log.Warn().Str("message_id", messageID).Str("dlq", r.dlqKey).Msg("Message moved to dead-letter queue")
	return nil
}

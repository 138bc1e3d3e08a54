package plagiarism

import (
	"context"
	"fmt"
	"time"

	"github.com/RishiKendai/aegis-dupe/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const statusTTL = 12 * time.Hour

func statusKey(scanID string) string {
	return "dupe_scan_status:" + scanID
}

// UpdateStatus records the current step of a scan
func UpdateStatus(ctx context.Context, redisClient redis.Cmdable, scanID string, step models.Step) error {
	validSteps := map[models.Step]bool{
		models.StepIdle:       true,
		models.StepInitiated:  true,
		models.StepStarted:    true,
		models.StepIndexing:   true,
		models.StepClustering: true,
		models.StepCompleted:  true,
		models.StepFailed:     true,
	}
	if !validSteps[step] {
		return fmt.Errorf("unknown step: %s", step)
	}

	rkey := statusKey(scanID)

	err := redisClient.Set(ctx, rkey, string(step), statusTTL).Err()
	if err != nil {
		log.Error().Err(err).
			Str("step", string(step)).
			Str("scanId", scanID).
			Str("redisKey", rkey).
			Msg("Failed to update status in Redis")
		return fmt.Errorf("failed to update status in Redis: %w", err)
	}

	log.Trace().
		Str("step", string(step)).
		Str("scanId", scanID).
		Msg("Status updated in Redis")

	return nil
}

// GetStatus returns the last recorded step of a scan, idle when none exists
func GetStatus(ctx context.Context, redisClient redis.Cmdable, scanID string) (models.Step, error) {
	step, err := redisClient.Get(ctx, statusKey(scanID)).Result()
	if err == redis.Nil {
		return models.StepIdle, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read status from Redis: %w", err)
	}
	return models.Step(step), nil
}

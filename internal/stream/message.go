package stream

import (
	"errors"
	"fmt"
	"strings"

	"github.com/RishiKendai/aegis-dupe/internal/models"
)

var ErrMalformedMessage = errors.New("malformed stream message")

// StreamMessage is a stream entry with its fields flattened to strings
type StreamMessage struct {
	ID     string
	Fields map[string]string
}

// ParseSubmission reads a submission job from msg. Both path and
// submissionId are required.
func ParseSubmission(msg *StreamMessage) (*models.SubmissionJob, error) {
	path := strings.TrimSpace(msg.Fields["path"])
	if path == "" {
		return nil, fmt.Errorf("%w: missing path", ErrMalformedMessage)
	}
	id := strings.TrimSpace(msg.Fields["submissionId"])
	if id == "" {
		return nil, fmt.Errorf("%w: missing submissionId", ErrMalformedMessage)
	}
	return &models.SubmissionJob{SubmissionID: id, Path: path}, nil
}

func flattenFields(values map[string]interface{}) map[string]string {
	fields := make(map[string]string, len(values))
	for key, val := range values {
		if value, ok := val.(string); ok {
			fields[key] = value
		}
	}
	return fields
}

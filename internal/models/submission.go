package models

import (
	"time"
)

// Metadata describes one tokenized source file
type Metadata struct {
	FileName     string    `bson:"file_name" json:"file_name"`
	FilePath     string    `bson:"file_path" json:"file_path"`
	FileSize     int64     `bson:"file_size" json:"file_size"`
	CreatedTime  time.Time `bson:"created_time" json:"created_time"`
	ModifiedTime time.Time `bson:"modified_time" json:"modified_time"`
	Language     string    `bson:"language" json:"language"`
	TokenCount   int       `bson:"token_count" json:"token_count"`
	Error        string    `bson:"error,omitempty" json:"error,omitempty"`
}

// Submission is the record stored in the submission index
type Submission struct {
	ID       string   `bson:"id" json:"id"`
	Tokens   []string `bson:"tokens" json:"tokens"`
	Metadata Metadata `bson:"metadata" json:"metadata"`
}

// SubmissionJob is a submission request read from the Redis stream
type SubmissionJob struct {
	SubmissionID string `json:"submissionId"`
	Path         string `json:"path"`
}

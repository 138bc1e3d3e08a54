package models

import (
	"time"
)

type Step string

const (
	StepIdle       Step = "idle"
	StepInitiated  Step = "initiated"
	StepStarted    Step = "started"
	StepIndexing   Step = "indexing"
	StepClustering Step = "clustering"
	StepCompleted  Step = "completed"
	StepFailed     Step = "failed"
)

// ClusterRecord is one group of near-duplicate submissions
type ClusterRecord struct {
	ClusterID     int        `bson:"cluster_id" json:"cluster_id"`
	Submissions   []string   `bson:"submissions" json:"submissions"`
	Metadata      []Metadata `bson:"metadata" json:"metadata"`
	MaxSimilarity float64    `bson:"max_similarity" json:"max_similarity"`
	Risk          string     `bson:"risk" json:"risk"` // clean, suspicious, highly suspicious, near copy
}

// SimilarityMatrix is a dense read view of the similarity graph
type SimilarityMatrix struct {
	IDs    []string    `bson:"ids" json:"ids"`
	Matrix [][]float64 `bson:"matrix" json:"matrix"`
}

// SimilarPair is one edge of the similarity graph
type SimilarPair struct {
	A     string  `bson:"a" json:"a"`
	B     string  `bson:"b" json:"b"`
	Score float64 `bson:"score" json:"score"`
}

// ScanReport is persisted after each directory scan
type ScanReport struct {
	ScanID       string          `bson:"scanId" json:"scanId"`
	Directory    string          `bson:"directory" json:"directory"`
	Status       string          `bson:"status" json:"status"` // pending, completed, failed
	Processed    int             `bson:"processed" json:"processed"`
	Clusters     []ClusterRecord `bson:"clusters" json:"clusters"`
	TopPairs     []SimilarPair   `bson:"top_pairs" json:"top_pairs"`
	FlaggedCount int             `bson:"flagged_count" json:"flagged_count"`
	CreatedAt    time.Time       `bson:"createdAt" json:"createdAt"`
}

// SubmitRequest represents a request to add one submission
type SubmitRequest struct {
	Path         string `json:"path" binding:"required"`
	SubmissionID string `json:"submissionId" binding:"required"`
}

// ScanRequest represents a request to scan a directory
type ScanRequest struct {
	Directory string `json:"directory" binding:"required"`
}

// ScanResponse represents the response from the scan endpoint
type ScanResponse struct {
	Step   Step   `json:"step"`
	ScanID string `json:"scanId"`
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

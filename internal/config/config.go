package config

import (
	"fmt"
	"time"

	"github.com/RishiKendai/aegis-dupe/internal/configs/env"
	"github.com/RishiKendai/aegis-dupe/internal/plagiarism"
)

// Config holds all configuration for the application
type Config struct {
	// Detection
	SimilarityThreshold float64
	IndexOrder          int
	MatchMinSimilarity  float64
	MatchWorkers        int
	ClusterEps          float64
	ClusterMinSamples   int
	CacheClearEvery     int
	IndexSnapshotPath   string

	// Scans
	MaxConcurrentScans int
	ScanTimeout        time.Duration

	// Tokenizer service; empty selects the built-in tokenizer
	TokenizerURL    string
	TokenizerAPIKey string

	// MongoDB; empty URI disables report and snapshot storage
	MongoURI    string
	MongoDBName string

	// Redis; empty host disables the stream consumer and scan status
	RedisHost               string
	RedisPassword           string
	RedisStreamKey          string
	RedisConsumerGroup      string
	RedisDeadLetterKey      string
	StreamRetentionDuration time.Duration

	// Directory watcher; empty disables it
	WatchDir string

	// Rate Limiting
	RateLimitRPS float64

	// Logging
	LogLevel string

	// Server
	ServerPort  string
	MetricsPort string
}

func Load() (*Config, error) {
	cfg := &Config{}
	defaults := plagiarism.DefaultOptions()

	// Detection
	cfg.SimilarityThreshold = env.GetEnvFloat("SIMILARITY_THRESHOLD", defaults.Threshold)
	cfg.IndexOrder = env.GetEnvInt("INDEX_ORDER", defaults.IndexOrder)
	cfg.MatchMinSimilarity = env.GetEnvFloat("MATCH_MIN_SIMILARITY", defaults.MatchMinSimilarity)
	cfg.MatchWorkers = env.GetEnvInt("MATCH_WORKERS", defaults.Workers)
	cfg.ClusterEps = env.GetEnvFloat("CLUSTER_EPS", defaults.ClusterEps)
	cfg.ClusterMinSamples = env.GetEnvInt("CLUSTER_MIN_SAMPLES", defaults.ClusterMinSamples)
	cfg.CacheClearEvery = env.GetEnvInt("CACHE_CLEAR_EVERY", defaults.CacheClearEvery)
	cfg.IndexSnapshotPath = env.GetEnv("INDEX_SNAPSHOT_PATH", "")

	// Scans
	cfg.MaxConcurrentScans = env.GetEnvInt("MAX_CONCURRENT_SCANS", 1)
	cfg.ScanTimeout = env.GetEnvDuration("SCAN_TIMEOUT", 30*time.Minute)

	// Tokenizer service
	cfg.TokenizerURL = env.GetEnv("TOKENIZER_URL", "")
	cfg.TokenizerAPIKey = env.GetEnv("TOKENIZER_API_KEY", "")

	// MongoDB
	cfg.MongoURI = env.GetEnv("MONGO_URI", "")
	cfg.MongoDBName = env.GetEnv("MONGO_DB_NAME", "aegis_dupe")

	// Redis
	cfg.RedisHost = env.GetEnv("REDIS_HOST", "")
	cfg.RedisPassword = env.GetEnv("REDIS_PASSWORD", "")
	cfg.RedisStreamKey = env.GetEnv("REDIS_STREAM_KEY", "dupe:submissions")
	cfg.RedisConsumerGroup = env.GetEnv("REDIS_CONSUMER_GROUP", "dupe:group")
	cfg.RedisDeadLetterKey = env.GetEnv("REDIS_DEAD_LETTER_KEY", "dupe:dlq")
	retentionHours := env.GetEnvInt("STREAM_RETENTION_DURATION", 24)
	cfg.StreamRetentionDuration = time.Duration(retentionHours) * time.Hour

	// Directory watcher
	cfg.WatchDir = env.GetEnv("WATCH_DIR", "")

	// Rate Limiting
	cfg.RateLimitRPS = env.GetEnvFloat("RATE_LIMIT_RPS", 10.0)

	// Logging
	cfg.LogLevel = env.GetEnv("LOG_LEVEL", "info")

	// Server
	cfg.ServerPort = env.GetEnv("SERVER_PORT", "8080")
	cfg.MetricsPort = env.GetEnv("METRICS_PORT", "2112")

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("SIMILARITY_THRESHOLD must be within [0, 1]")
	}
	if c.MatchMinSimilarity < 0 || c.MatchMinSimilarity > 1 {
		return fmt.Errorf("MATCH_MIN_SIMILARITY must be within [0, 1]")
	}
	if c.IndexOrder < 3 {
		return fmt.Errorf("INDEX_ORDER must be at least 3")
	}
	if c.MatchWorkers <= 0 {
		return fmt.Errorf("MATCH_WORKERS must be greater than 0")
	}
	if c.ClusterEps <= 0 || c.ClusterEps > 1 {
		return fmt.Errorf("CLUSTER_EPS must be within (0, 1]")
	}
	if c.ClusterMinSamples <= 0 {
		return fmt.Errorf("CLUSTER_MIN_SAMPLES must be greater than 0")
	}
	if c.MaxConcurrentScans <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_SCANS must be greater than 0")
	}
	if c.ScanTimeout <= 0 {
		return fmt.Errorf("SCAN_TIMEOUT must be greater than 0")
	}
	if c.CacheClearEvery < 0 {
		return fmt.Errorf("CACHE_CLEAR_EVERY must not be negative")
	}
	if c.MongoURI != "" && c.MongoDBName == "" {
		return fmt.Errorf("MONGO_DB_NAME is required when MONGO_URI is set")
	}
	if c.RedisHost != "" && c.StreamRetentionDuration <= 0 {
		return fmt.Errorf("STREAM_RETENTION_DURATION must be greater than 0")
	}
	if c.RateLimitRPS <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be greater than 0")
	}
	return nil
}

// DetectorOptions maps the detection settings onto detector options
func (c *Config) DetectorOptions() plagiarism.Options {
	return plagiarism.Options{
		Threshold:          c.SimilarityThreshold,
		IndexOrder:         c.IndexOrder,
		MatchMinSimilarity: c.MatchMinSimilarity,
		Workers:            c.MatchWorkers,
		ClusterEps:         c.ClusterEps,
		ClusterMinSamples:  c.ClusterMinSamples,
		CacheClearEvery:    c.CacheClearEvery,
	}
}

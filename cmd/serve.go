package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RishiKendai/aegis-dupe/internal/api"
	mongoInfra "github.com/RishiKendai/aegis-dupe/internal/infra/mongo"
	redisInfra "github.com/RishiKendai/aegis-dupe/internal/infra/redis"
	"github.com/RishiKendai/aegis-dupe/internal/metrics"
	"github.com/RishiKendai/aegis-dupe/internal/plagiarism"
	"github.com/RishiKendai/aegis-dupe/internal/repository"
	"github.com/RishiKendai/aegis-dupe/internal/stream"
	"github.com/RishiKendai/aegis-dupe/internal/watcher"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Runs the HTTP API, the submission stream consumer and the directory watcher",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve()
		},
	}
}

func serve() error {
	log.Info().Msg("Starting aegis-dupe server")
	metrics.InitPrometheus()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	detector := newDetector()
	deps := api.Dependencies{Detector: detector}

	var reportStore plagiarism.ReportStore
	var snapshots *repository.SnapshotsRepository
	if cfg.MongoURI != "" {
		mongoClient, err := mongoInfra.NewClient(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return err
		}
		defer mongoClient.Close(context.Background())

		mongoRepo := repository.NewMongoRepository(mongoClient)
		if err := mongoRepo.EnsureIndexes(ctx); err != nil {
			log.Warn().Err(err).Msg("Report lookups will run without indexes")
		}
		reports := repository.NewReportsRepository(mongoRepo)
		snapshots = repository.NewSnapshotsRepository(mongoRepo)
		reportStore = reports
		deps.Reports = reports
		deps.Snapshots = snapshots
	} else {
		log.Warn().Msg("MONGO_URI not set, scan reports and index snapshots are not stored")
	}

	var redisClient *redisInfra.Client
	var redisCmd redis.Cmdable
	if cfg.RedisHost != "" {
		var err error
		redisClient, err = redisInfra.NewClient(ctx, cfg.RedisHost, cfg.RedisPassword, 0)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		redisCmd = redisClient.Client
		deps.Redis = redisCmd
	} else {
		log.Warn().Msg("REDIS_HOST not set, stream consumer and scan status are disabled")
	}

	restoreSnapshot(ctx, detector, snapshots)
	deps.Scanner = plagiarism.NewScanner(detector, reportStore, redisCmd)

	g, gctx := errgroup.WithContext(ctx)

	router := api.SetupRoutes(cfg, deps)
	g.Go(func() error {
		return api.Serve(gctx, api.NewServer(router, cfg.ServerPort), "api", shutdownTimeout)
	})

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics.Handler())
	g.Go(func() error {
		return api.Serve(gctx, api.NewServer(metricsMux, cfg.MetricsPort), "metrics", 5*time.Second)
	})

	if redisClient != nil {
		consumer := stream.NewConsumer(
			redisClient.Client,
			cfg.RedisStreamKey,
			cfg.RedisConsumerGroup,
			consumerName(),
			detector,
			stream.NewRetryHandler(redisClient.Client, cfg.RedisDeadLetterKey),
			cfg.StreamRetentionDuration,
		)
		g.Go(func() error {
			return ignoreCanceled(consumer.Start(gctx))
		})
	}

	if cfg.WatchDir != "" {
		w, err := watcher.New(cfg.WatchDir, detector, watcher.DefaultDebounce)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return ignoreCanceled(w.Run(gctx))
		})
	}

	err := g.Wait()
	log.Info().Msg("Shutting down gracefully")

	if cfg.IndexSnapshotPath != "" {
		if saveErr := detector.SaveSnapshot(cfg.IndexSnapshotPath); saveErr != nil {
			log.Error().Err(saveErr).Msg("Failed to save snapshot on shutdown")
		} else {
			log.Info().Str("path", cfg.IndexSnapshotPath).Msg("Snapshot saved")
		}
	}

	log.Info().Msg("Shutdown complete")
	return err
}

// restoreSnapshot loads the file snapshot when one exists and falls back to
// the stored one. Failures only cost the warm start.
func restoreSnapshot(ctx context.Context, detector *plagiarism.Detector, snapshots *repository.SnapshotsRepository) {
	if path := cfg.IndexSnapshotPath; path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := detector.LoadSnapshot(ctx, path); err != nil {
				log.Error().Err(err).Str("path", path).Msg("Failed to load snapshot")
			} else {
				return
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Str("path", path).Msg("Cannot read snapshot")
		}
	}

	if snapshots == nil {
		return
	}
	snap, err := snapshots.LatestIndexSnapshot(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch stored index snapshot")
		return
	}
	if snap == nil {
		return
	}
	if err := detector.RestoreIndex(ctx, snap.Root); err != nil {
		log.Error().Err(err).Msg("Failed to restore stored index snapshot")
		return
	}
	log.Info().Int("submissions", snap.Submissions).Time("createdAt", snap.CreatedAt).Msg("Restored stored index snapshot")
}

func consumerName() string {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}
	return fmt.Sprintf("consumer-%s-%d-%s", hostname, os.Getpid(), uuid.New().String()[:8])
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

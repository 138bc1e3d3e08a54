package main

import (
	"fmt"
	"os"

	"github.com/RishiKendai/aegis-dupe/internal/config"
	"github.com/RishiKendai/aegis-dupe/internal/configs/env"
	"github.com/RishiKendai/aegis-dupe/internal/logger"
	"github.com/RishiKendai/aegis-dupe/internal/plagiarism"
	"github.com/RishiKendai/aegis-dupe/internal/preprocess"
	"github.com/RishiKendai/aegis-dupe/internal/tokenizer"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "aegis-dupe",
		Short: "Detects near-duplicate source code submissions",
		Long: `aegis-dupe indexes source files, scores every new submission against the
stored ones and groups near-duplicates into clusters.`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}
)

func main() {
	rootCmd.AddCommand(newServeCmd(), newScanCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads the environment and configuration before any command runs
func setup(cmd *cobra.Command, _ []string) error {
	if err := env.LoadEnv(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file loaded, using system environment variables")
	}

	loaded, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cfg = loaded

	if cmd.Name() == "scan" {
		// stdout carries the report
		logger.InitWithWriter(cfg.LogLevel, os.Stderr)
	} else {
		logger.Init(cfg.LogLevel)
	}
	log.Debug().Str("command", cmd.Name()).Msg("Configuration loaded")
	return nil
}

// newTokenizer selects the remote tokenizer service when one is configured
func newTokenizer() plagiarism.Tokenizer {
	if cfg.TokenizerURL != "" {
		log.Info().Str("url", cfg.TokenizerURL).Msg("Using remote tokenizer")
		return preprocess.NewRemoteTokenizer(preprocess.NewClient(cfg.TokenizerURL, cfg.TokenizerAPIKey))
	}
	return tokenizer.NewCodeParser()
}

func newDetector() *plagiarism.Detector {
	return plagiarism.NewDetector(newTokenizer(), cfg.DetectorOptions())
}

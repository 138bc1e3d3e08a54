package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/RishiKendai/aegis-dupe/internal/plagiarism"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newScanCmd() *cobra.Command {
	var (
		output   string
		saveTo   string
		topPairs int
	)
	cmd := &cobra.Command{
		Use:   "scan [directory]",
		Short: "Scans a directory once and prints the report as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			detector := newDetector()
			scanner := plagiarism.NewScanner(detector, nil, nil).WithTopPairs(topPairs)
			report, err := scanner.Run(ctx, uuid.NewString(), args[0])
			if err != nil {
				return err
			}

			if saveTo != "" {
				if err := detector.SaveSnapshot(saveTo); err != nil {
					return err
				}
				log.Info().Str("path", saveTo).Msg("Snapshot saved")
			}

			out := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer f.Close()
				out = f
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the report to this file instead of stdout")
	cmd.Flags().StringVar(&saveTo, "save", "", "save the index and graph snapshot to this path")
	cmd.Flags().IntVar(&topPairs, "top", 10, "number of most similar pairs in the report, 0 for all")
	return cmd
}

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"photosync/internal/assets"
	"photosync/internal/config"
	"photosync/internal/engine"
	"photosync/internal/events"
	"photosync/internal/logging"
	"photosync/internal/network"
	"photosync/internal/transport"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one upload cycle and wait for it to finish",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *assets.Store) error {
				logger, err := logging.NewFromConfig(cfg)
				if err != nil {
					return fmt.Errorf("init logger: %w", err)
				}

				checker := network.NewHTTPChecker(cfg)
				uploader := transport.NewHTTPTransport(cfg)
				eng := engine.New(cfg, store, uploader, checker, nil, nil, logger)

				out := cmd.OutOrStdout()
				if !quiet {
					bus := eng.Bus()
					bus.Subscribe(events.AssetUploaded, func(ev events.Event) {
						fmt.Fprintf(out, "Uploaded asset #%d in %s\n", ev.AssetID, ev.Duration.Round(time.Millisecond))
					})
					bus.Subscribe(events.AssetRetrying, func(ev events.Event) {
						fmt.Fprintf(out, "Retrying asset #%d (attempt %d) in %s: %s\n", ev.AssetID, ev.Attempt, ev.NextRetryIn.Round(time.Second), ev.Error)
					})
					bus.Subscribe(events.AssetFailed, func(ev events.Event) {
						if ev.FinalError {
							fmt.Fprintf(out, "Gave up on asset #%d: %s\n", ev.AssetID, ev.Error)
						}
					})
				}

				eng.RetryAllPending(cmd.Context())

				metrics := eng.Metrics(cmd.Context())
				fmt.Fprintf(out, "Sync complete: %d uploaded, %d failed, %d still queued\n",
					metrics.Completed, metrics.Failed, metrics.TotalQueued)
				if metrics.AverageUploadTime > 0 {
					fmt.Fprintf(out, "Average upload time: %s\n", metrics.AverageUploadTime.Round(time.Millisecond))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress per-asset progress output")
	return cmd
}

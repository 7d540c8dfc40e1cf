package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"photosync/internal/assets"
	"photosync/internal/config"
	"photosync/internal/network"
	"photosync/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show environment readiness and connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *assets.Store) error {
				out := cmd.OutOrStdout()

				results := preflight.RunAll(cmd.Context(), cfg)
				rows := make([][]string, 0, len(results))
				allPassed := true
				for _, result := range results {
					label := "ok"
					if !result.Passed {
						label = "FAIL"
						allPassed = false
					}
					rows = append(rows, []string{result.Name, label, result.Detail})
				}
				fmt.Fprintln(out, renderTable([]string{"Check", "Status", "Detail"}, rows))

				state, err := network.NewHTTPChecker(cfg).State(cmd.Context())
				switch {
				case err != nil:
					fmt.Fprintf(out, "Network: check failed (%v)\n", err)
				case state.Online:
					fmt.Fprintf(out, "Network: online via %s\n", state.Type)
				default:
					fmt.Fprintln(out, "Network: offline")
				}

				health, err := store.Health(cmd.Context())
				if err != nil {
					return fmt.Errorf("queue health: %w", err)
				}
				fmt.Fprintf(out, "Queue: %d pending, %d uploading, %d uploaded, %d failed\n",
					health.Pending, health.Uploading, health.Uploaded, health.Failed)

				if !allPassed {
					return fmt.Errorf("one or more readiness checks failed")
				}
				return nil
			})
		},
	}
}

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"photosync/internal/assets"
	"photosync/internal/config"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the upload queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueResetCommand(ctx))
	queueCmd.AddCommand(newQueueDeleteCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued assets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *assets.Store) error {
				var statuses []assets.Status
				if trimmed := strings.TrimSpace(statusFilter); trimmed != "" {
					status, err := parseStatus(trimmed)
					if err != nil {
						return err
					}
					statuses = append(statuses, status)
				}

				items, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return fmt.Errorf("list assets: %w", err)
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}

				rows := buildAssetRows(items)
				headers := []string{"ID", "File", "Status", "Retries", "Size", "Created", "Server ID"}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, 0, 3, 4))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&statusFilter, "status", "s", "", "Filter by status (pending, uploading, uploaded, failed)")
	return cmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue counts per lifecycle state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *assets.Store) error {
				health, err := store.Health(cmd.Context())
				if err != nil {
					return fmt.Errorf("queue health: %w", err)
				}

				rows := [][]string{
					{formatStatusLabel(string(assets.StatusPending)), strconv.Itoa(health.Pending)},
					{formatStatusLabel(string(assets.StatusUploading)), strconv.Itoa(health.Uploading)},
					{formatStatusLabel(string(assets.StatusUploaded)), strconv.Itoa(health.Uploaded)},
					{formatStatusLabel(string(assets.StatusFailed)), strconv.Itoa(health.Failed)},
					{"Total", strconv.Itoa(health.Total)},
				}

				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderTable([]string{"Status", "Count"}, rows, 1))
				if settled := health.Uploaded + health.Failed; settled > 0 {
					rate := float64(health.Failed) / float64(settled) * 100
					fmt.Fprintf(out, "Error rate: %.1f%% (%d of %d settled)\n", rate, health.Failed, settled)
				}
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry",
		Short: "Return all failed assets to the upload pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *assets.Store) error {
				count, err := store.ResetFailed(cmd.Context())
				if err != nil {
					return fmt.Errorf("reset failed assets: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d failed asset(s)\n", count)
				return nil
			})
		},
	}
}

func newQueueResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <id>",
		Short: "Reset one asset to pending with a fresh retry budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid asset id %q", args[0])
			}
			return ctx.withStore(func(_ *config.Config, store *assets.Store) error {
				if err := store.ResetAsset(cmd.Context(), id); err != nil {
					return fmt.Errorf("reset asset %d: %w", id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Asset %d reset to pending\n", id)
				return nil
			})
		},
	}
}

func newQueueDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove an asset record from the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid asset id %q", args[0])
			}
			return ctx.withStore(func(_ *config.Config, store *assets.Store) error {
				removed, err := store.Delete(cmd.Context(), id)
				if err != nil {
					return fmt.Errorf("delete asset %d: %w", id, err)
				}
				if !removed {
					fmt.Fprintf(cmd.OutOrStdout(), "Asset %d not found\n", id)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Asset %d deleted\n", id)
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove uploaded assets from the local queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *assets.Store) error {
				count, err := store.ClearUploaded(cmd.Context())
				if err != nil {
					return fmt.Errorf("clear uploaded assets: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d uploaded asset(s)\n", count)
				return nil
			})
		},
	}
}

func parseStatus(value string) (assets.Status, error) {
	status := assets.Status(strings.ToLower(value))
	switch status {
	case assets.StatusPending, assets.StatusUploading, assets.StatusUploaded, assets.StatusFailed:
		return status, nil
	}
	return "", fmt.Errorf("unknown status %q (expected pending, uploading, uploaded, or failed)", value)
}

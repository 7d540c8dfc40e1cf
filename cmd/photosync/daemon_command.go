package main

import (
	"github.com/spf13/cobra"

	"photosync/internal/daemonrun"
)

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var logFormat string

	cmd := &cobra.Command{
		Use:          "daemon",
		Short:        "Run the photosync daemon in the foreground",
		Hidden:       true,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel: logLevel,
				Format:   logFormat,
			})
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override configured log level")
	cmd.Flags().StringVar(&logFormat, "log-format", "", "Override configured log format")
	return cmd
}

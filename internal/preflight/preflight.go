package preflight

import (
	"context"

	"photosync/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is configured.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Data directory", cfg.Paths.DataDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))

	if cfg.Daemon.MinFreeSpaceGiB > 0 {
		results = append(results, CheckDiskSpace(cfg.Paths.DataDir, cfg.Daemon.MinFreeSpaceGiB))
	}

	results = append(results, CheckAPIEndpoint(ctx, cfg.API.BaseURL, cfg.API.Token))

	if cfg.Network.ProbeURL != "" {
		results = append(results, CheckConnectivity(ctx, cfg))
	}

	return results
}

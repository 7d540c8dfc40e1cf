package config

const (
	defaultDataDir               = "~/.local/share/photosync"
	defaultLogDir                = "~/.local/share/photosync/logs"
	defaultUploadTimeoutMs       = 30000
	defaultMaxConcurrentUploads  = 3
	defaultBatchSize             = 5
	defaultMaxRetries            = 5
	defaultBaseBackoffMs         = 1000
	defaultMaxBackoffMs          = 30000
	defaultBatchPauseMs          = 500
	defaultStaleUploadingMinutes = 5
	defaultNetworkProbeURL       = "https://connectivitycheck.gstatic.com/generate_204"
	defaultProbeTimeoutMs        = 5000
	defaultPollIntervalMs        = 2000
	defaultSyncIntervalMinutes   = 15
	defaultMinFreeSpaceGiB       = 1
	defaultNotifyRequestTimeout  = 10
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		API: API{
			UploadTimeoutMs: defaultUploadTimeoutMs,
		},
		Queue: Queue{
			MaxConcurrentUploads:  defaultMaxConcurrentUploads,
			BatchSize:             defaultBatchSize,
			MaxRetries:            defaultMaxRetries,
			BaseBackoffMs:         defaultBaseBackoffMs,
			MaxBackoffMs:          defaultMaxBackoffMs,
			BatchPauseMs:          defaultBatchPauseMs,
			StaleUploadingMinutes: defaultStaleUploadingMinutes,
		},
		Network: Network{
			ProbeURL:       defaultNetworkProbeURL,
			ProbeTimeoutMs: defaultProbeTimeoutMs,
			PollIntervalMs: defaultPollIntervalMs,
		},
		Daemon: Daemon{
			SyncIntervalMinutes: defaultSyncIntervalMinutes,
			MinFreeSpaceGiB:     defaultMinFreeSpaceGiB,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Queue:          true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

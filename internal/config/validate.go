package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateNetwork(); err != nil {
		return err
	}
	if err := c.validateDaemon(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateAPI() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/photosync/config.toml"
		}
		return fmt.Errorf("api.base_url is required. Edit %s (create with 'photosync config init')", defaultPath)
	}
	parsed, err := url.Parse(c.API.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("api.base_url %q is not an absolute URL", c.API.BaseURL)
	}
	if c.API.UploadTimeoutMs <= 0 {
		return errors.New("api.upload_timeout_ms must be positive")
	}
	return nil
}

func (c *Config) validateQueue() error {
	if c.Queue.MaxConcurrentUploads <= 0 {
		return errors.New("queue.max_concurrent_uploads must be positive")
	}
	if c.Queue.BatchSize <= 0 {
		return errors.New("queue.batch_size must be positive")
	}
	if c.Queue.MaxRetries <= 0 {
		return errors.New("queue.max_retries must be positive")
	}
	if c.Queue.BaseBackoffMs <= 0 {
		return errors.New("queue.base_backoff_ms must be positive")
	}
	if c.Queue.MaxBackoffMs < c.Queue.BaseBackoffMs {
		return errors.New("queue.max_backoff_ms must be at least queue.base_backoff_ms")
	}
	if c.Queue.BatchPauseMs < 0 {
		return errors.New("queue.batch_pause_ms must not be negative")
	}
	if c.Queue.StaleUploadingMinutes <= 0 {
		return errors.New("queue.stale_uploading_minutes must be positive")
	}
	return nil
}

func (c *Config) validateNetwork() error {
	parsed, err := url.Parse(c.Network.ProbeURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("network.probe_url %q is not an absolute URL", c.Network.ProbeURL)
	}
	if c.Network.ProbeTimeoutMs <= 0 {
		return errors.New("network.probe_timeout_ms must be positive")
	}
	if c.Network.PollIntervalMs <= 0 {
		return errors.New("network.poll_interval_ms must be positive")
	}
	return nil
}

func (c *Config) validateDaemon() error {
	if c.Daemon.SyncIntervalMinutes <= 0 {
		return errors.New("daemon.sync_interval_minutes must be positive")
	}
	if c.Daemon.MinFreeSpaceGiB < 0 {
		return errors.New("daemon.min_free_space_gib must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}

package daemonrun

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"photosync/internal/assets"
	"photosync/internal/config"
	"photosync/internal/daemon"
	"photosync/internal/engine"
	"photosync/internal/logging"
	"photosync/internal/network"
	"photosync/internal/transport"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
	Format   string
}

// Run boots the full daemon runtime: logger, store, engine, watchers. It
// blocks until the context is cancelled or a termination signal arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	level := cfg.Logging.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	format := cfg.Logging.Format
	if opts.Format != "" {
		format = opts.Format
	}

	logPath := filepath.Join(cfg.Paths.LogDir, "photosync.log")
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	pidPath := filepath.Join(cfg.Paths.DataDir, "photosyncd.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := assets.Open(cfg)
	if err != nil {
		logger.Error("open asset store", logging.Error(err))
		return err
	}
	defer store.Close()

	checker := network.NewHTTPChecker(cfg)
	uploader := transport.NewHTTPTransport(cfg)
	eng := engine.New(cfg, store, uploader, checker, nil, nil, logger)

	d, err := daemon.New(cfg, store, eng, checker, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	<-signalCtx.Done()
	logger.Info("photosync daemon shutting down")
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

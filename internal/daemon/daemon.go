package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"orthodeck/internal/artifacts"
	"orthodeck/internal/config"
	"orthodeck/internal/jobs"
	"orthodeck/internal/logging"
	"orthodeck/internal/notifications"
	"orthodeck/internal/progress"
	"orthodeck/internal/worker"
)

// Daemon coordinates batch intake, worker supervision, and the HTTP API,
// and enforces single-instance execution via a lock file.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      *jobs.Store
	supervisor *worker.Supervisor
	hub        *progress.Hub
	artifacts  *artifacts.Store
	notifier   notifications.Service

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *jobs.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil {
		return nil, errors.New("daemon requires config, store, and logger")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "orthodeckd.lock")
	d := &Daemon{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		supervisor: worker.NewSupervisor(cfg, logger),
		hub:        progress.NewHub(logger),
		artifacts:  artifacts.NewStore(cfg),
		notifier:   notifications.NewService(cfg),
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}

	srv, err := newAPIServer(cfg, d, logging.NewComponentLogger(logger, "api-server"))
	if err != nil {
		return nil, err
	}
	d.api = srv
	return d, nil
}

// Start acquires the daemon lock, sweeps jobs stranded by a previous
// shutdown, and brings up the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another orthodeck daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)

	swept, err := d.store.SweepStale(d.ctx)
	if err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("sweep stale jobs: %w", err)
	}
	if swept > 0 {
		d.logger.Info("aborted jobs stranded by previous shutdown", logging.Int64("count", swept))
	}

	if d.api != nil {
		if err := d.api.start(d.ctx); err != nil {
			_ = d.lock.Unlock()
			d.cancel()
			d.ctx = nil
			d.cancel = nil
			return err
		}
	}

	d.running.Store(true)
	d.logger.Info("orthodeck daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop terminates live workers, aborts their jobs, and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.supervisor.CleanupAll()
	if d.api != nil {
		d.api.stop()
	}
	if _, err := d.store.SweepStale(context.Background()); err != nil {
		d.logger.Warn("failed to sweep jobs during shutdown", logging.Error(err))
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("orthodeck daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether the daemon has been started.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// LockFilePath exposes the single-instance lock location.
func (d *Daemon) LockFilePath() string {
	return d.lockPath
}

// Addr reports the API listen address once the daemon is started.
func (d *Daemon) Addr() string {
	if d.api == nil {
		return ""
	}
	return d.api.addr()
}

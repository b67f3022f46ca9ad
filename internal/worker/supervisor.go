package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/alphadose/haxmap"

	"orthodeck/internal/config"
	"orthodeck/internal/logging"
	"orthodeck/internal/services"
)

// Supervisor tracks at most one live worker process per job and guarantees
// that every process it spawns is eventually reaped, whether by normal exit,
// explicit cleanup, or the shutdown sweep.
type Supervisor struct {
	cfg    *config.Config
	logger *slog.Logger
	exec   Executor
	procs  *haxmap.Map[string, Process]
}

// Option customises supervisor construction.
type Option func(*Supervisor)

// WithExecutor overrides the process executor.
func WithExecutor(exec Executor) Option {
	return func(s *Supervisor) {
		if exec != nil {
			s.exec = exec
		}
	}
}

func NewSupervisor(cfg *config.Config, logger *slog.Logger, opts ...Option) *Supervisor {
	s := &Supervisor{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "worker"),
		exec:   commandExecutor{},
		procs:  haxmap.New[string, Process](),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle refers to a spawned worker process.
type Handle struct {
	JobID string

	sup    *Supervisor
	proc   Process
	cancel context.CancelFunc
}

// Wait blocks until the process exits and its output is drained, then
// releases the job's slot in the live-process table.
func (h *Handle) Wait() error {
	err := h.proc.Wait()
	h.sup.procs.Del(h.JobID)
	if h.cancel != nil {
		h.cancel()
	}
	return err
}

// Start launches the configured worker command for the job. A second start
// for a job whose worker is still live is rejected.
func (s *Supervisor) Start(ctx context.Context, jobID, manifestPath, outputDir string, onLine func(string)) (*Handle, error) {
	binary := strings.TrimSpace(s.cfg.Worker.Command)
	if binary == "" {
		return nil, services.Wrap(services.ErrSpawn, "worker", "start", "worker command is not configured", nil)
	}
	if _, err := exec.LookPath(binary); err != nil {
		return nil, services.Wrap(services.ErrSpawn, "worker", "start",
			fmt.Sprintf("worker command %q not found in PATH", binary), err)
	}

	var cancel context.CancelFunc
	if s.cfg.Worker.TimeoutSeconds > 0 {
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.cfg.Worker.TimeoutSeconds)*time.Second)
	}

	args := make([]string, 0, 3)
	if script := strings.TrimSpace(s.cfg.Worker.Script); script != "" {
		args = append(args, script)
	}
	args = append(args, manifestPath, outputDir)

	s.logger.Info("starting worker",
		logging.String(logging.FieldJobID, jobID),
		logging.String("command", binary+" "+strings.Join(args, " ")))

	proc, err := s.exec.Start(ctx, binary, args, onLine)
	if err != nil {
		if cancel != nil {
			cancel()
		}
		return nil, services.Wrap(services.ErrSpawn, "worker", "start", "failed to launch worker process", err)
	}

	if _, loaded := s.procs.GetOrSet(jobID, proc); loaded {
		_ = proc.Kill()
		if cancel != nil {
			cancel()
		}
		return nil, services.Wrap(services.ErrSpawn, "worker", "start",
			fmt.Sprintf("worker already running for job %s", jobID), nil)
	}

	return &Handle{JobID: jobID, sup: s, proc: proc, cancel: cancel}, nil
}

// Cleanup terminates the job's worker if one is still live. Safe to call
// repeatedly and for jobs that never spawned.
func (s *Supervisor) Cleanup(jobID string) {
	proc, ok := s.procs.Get(jobID)
	if !ok {
		return
	}
	s.procs.Del(jobID)
	if err := proc.Signal(); err != nil {
		s.logger.Warn("failed to signal worker",
			logging.String(logging.FieldJobID, jobID),
			logging.Error(err))
	}
}

// CleanupAll terminates every live worker. Called during daemon shutdown.
func (s *Supervisor) CleanupAll() {
	ids := make([]string, 0, s.procs.Len())
	s.procs.ForEach(func(jobID string, _ Process) bool {
		ids = append(ids, jobID)
		return true
	})
	for _, id := range ids {
		s.Cleanup(id)
	}
}

// LiveCount reports the number of live worker processes.
func (s *Supervisor) LiveCount() int {
	return int(s.procs.Len())
}

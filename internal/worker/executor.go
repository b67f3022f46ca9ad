package worker

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// Executor abstracts worker process execution for testability.
type Executor interface {
	Start(ctx context.Context, binary string, args []string, onLine func(string)) (Process, error)
}

// Process is a started worker process. Wait blocks until the process exits
// and its output streams are drained; Signal and Kill act on the whole
// process group so worker children never orphan.
type Process interface {
	Wait() error
	Signal() error
	Kill() error
}

type commandExecutor struct{}

func (commandExecutor) Start(ctx context.Context, binary string, args []string, onLine func(string)) (Process, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start command: %w", err)
	}

	proc := &osProcess{cmd: cmd}

	scan := func(r io.Reader) {
		defer proc.wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			if onLine != nil {
				onLine(scanner.Text())
			}
		}
		if err := scanner.Err(); err != nil {
			proc.scanOnce.Do(func() { proc.scanErr = err })
		}
	}

	proc.wg.Add(2)
	go scan(stdout)
	go scan(stderr)

	return proc, nil
}

type osProcess struct {
	cmd      *exec.Cmd
	wg       sync.WaitGroup
	scanOnce sync.Once
	scanErr  error
}

func (p *osProcess) Wait() error {
	p.wg.Wait()
	if err := p.cmd.Wait(); err != nil {
		return fmt.Errorf("wait command: %w", err)
	}
	if p.scanErr != nil {
		return fmt.Errorf("scan output: %w", p.scanErr)
	}
	return nil
}

func (p *osProcess) Signal() error {
	return p.signalGroup(unix.SIGTERM)
}

func (p *osProcess) Kill() error {
	return p.signalGroup(unix.SIGKILL)
}

func (p *osProcess) signalGroup(sig unix.Signal) error {
	if p.cmd.Process == nil {
		return nil
	}
	pid := p.cmd.Process.Pid
	if err := unix.Kill(-pid, sig); err != nil {
		// Fall back to the single process when no group exists.
		return p.cmd.Process.Signal(sig)
	}
	return nil
}

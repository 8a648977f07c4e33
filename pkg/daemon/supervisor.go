package daemon

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/modoterra/minermock/pkg/core"
)

// ErrMinerNotFound is returned by Locate when no miner binary exists.
var ErrMinerNotFound = errors.New("miner binary not found")

// killWait bounds how long Terminate waits for the process after SIGKILL.
const killWait = 2 * time.Second

// Locate resolves the miner binary. A name containing a path separator must
// exist as given; a bare name is looked up next to the running executable,
// then in $PATH.
func Locate(name string) (string, error) {
	if name == "" {
		return "", ErrMinerNotFound
	}
	if strings.ContainsRune(name, os.PathSeparator) {
		if isExecutable(name) {
			return filepath.Abs(name)
		}
		return "", fmt.Errorf("%w: %s", ErrMinerNotFound, name)
	}
	if self, err := os.Executable(); err == nil {
		sibling := filepath.Join(filepath.Dir(self), name)
		if isExecutable(sibling) {
			return sibling, nil
		}
	}
	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("%w: %s", ErrMinerNotFound, name)
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && info.Mode().Perm()&0o111 != 0
}

// Process is the handle of one supervised child process. It is started at
// most once and never restarted.
type Process struct {
	Name   string
	Path   string
	Args   []string
	Dir    string
	Env    map[string]string
	Stdout io.Writer // nil inherits our stdout
	Stderr io.Writer // nil inherits our stderr

	cmd       *exec.Cmd
	done      chan struct{}
	status    core.Status
	pid       int
	startedAt time.Time
	exitCode  int
	mu        sync.Mutex
	logger    *slog.Logger
}

// NewProcess creates a handle for path; nothing runs until Start.
func NewProcess(name, path string, args []string, logger *slog.Logger) *Process {
	if logger == nil {
		logger = slog.Default()
	}
	return &Process{
		Name:   name,
		Path:   path,
		Args:   args,
		status: core.StatusStopped,
		logger: logger,
	}
}

// Start launches the process in its own process group.
func (p *Process) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd != nil {
		return fmt.Errorf("%s already started", p.Name)
	}

	cmd := exec.Command(p.Path, p.Args...)
	cmd.Dir = p.Dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	cmd.Env = os.Environ()
	for k, v := range p.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	cmd.Stdout = os.Stdout
	if p.Stdout != nil {
		cmd.Stdout = p.Stdout
	}
	cmd.Stderr = os.Stderr
	if p.Stderr != nil {
		cmd.Stderr = p.Stderr
	}

	if err := cmd.Start(); err != nil {
		p.status = core.StatusFailed
		return fmt.Errorf("start %s: %w", p.Path, err)
	}

	p.cmd = cmd
	p.done = make(chan struct{})
	p.pid = cmd.Process.Pid
	p.status = core.StatusRunning
	p.startedAt = time.Now()

	p.logger.Info("process started", "name", p.Name, "pid", p.pid, "path", p.Path)

	go p.wait(cmd, p.done)
	return nil
}

func (p *Process) wait(cmd *exec.Cmd, done chan struct{}) {
	err := cmd.Wait()

	p.mu.Lock()
	exitCode := -1
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}
	p.exitCode = exitCode
	p.pid = 0
	if exitCode == 0 {
		p.status = core.StatusStopped
	} else {
		p.status = core.StatusFailed
	}
	p.mu.Unlock()

	p.logger.Info("process exited", "name", p.Name, "exit_code", exitCode, "err", err)
	close(done)
}

// Status returns the current status, pid and start time.
func (p *Process) Status() (core.Status, int, time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status, p.pid, p.startedAt
}

// ExitCode returns the exit code once the process has exited, -1 if it was
// killed by a signal.
func (p *Process) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

// Done is closed when the process has exited. Nil before Start.
func (p *Process) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Terminate sends SIGTERM to the process group and waits up to timeout,
// escalating to SIGKILL on timeout or when the signal cannot be delivered.
// Every step is reported; none of them abort the teardown.
func (p *Process) Terminate(timeout time.Duration) []StepResult {
	p.mu.Lock()
	cmd, done := p.cmd, p.done
	p.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return []StepResult{{Step: "terminate " + p.Name, Skipped: true}}
	}
	select {
	case <-done:
		return []StepResult{{Step: "terminate " + p.Name, Skipped: true}}
	default:
	}

	pgid := cmd.Process.Pid
	results := []StepResult{runStep("sigterm "+p.Name, func() error {
		return syscall.Kill(-pgid, syscall.SIGTERM)
	})}

	if results[0].Err == nil {
		results = append(results, runStep("wait "+p.Name, func() error {
			return waitDone(done, timeout)
		}))
		if results[1].Err == nil {
			return results
		}
	}

	p.logger.Warn("escalating to SIGKILL", "name", p.Name, "pid", pgid)
	results = append(results, runStep("sigkill "+p.Name, func() error {
		if err := syscall.Kill(-pgid, syscall.SIGKILL); err != nil {
			// Group may be gone already; try the leader alone.
			return cmd.Process.Kill()
		}
		return nil
	}))
	results = append(results, runStep("reap "+p.Name, func() error {
		return waitDone(done, killWait)
	}))
	return results
}

func waitDone(done <-chan struct{}, timeout time.Duration) error {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-done:
		return nil
	case <-t.C:
		return fmt.Errorf("still running after %s", timeout)
	}
}

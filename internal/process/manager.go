package process

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/turtacn/Vigil/pkg/logger"
)

// Spec describes a child process.
type Spec struct {
	Path string
	Args []string
	Env  []string
	Dir  string
	// Credential switches the child to another user; nil keeps ours.
	Credential *syscall.Credential
	// NewSession puts the child in its own session and process group so Stop
	// reaches everything it spawns.
	NewSession bool
	Stdin      io.Reader
	Stdout     io.Writer
	Stderr     io.Writer
}

// ProcessManager handles the lifecycle of one child process: start, stop
// with a grace period, and wait.
type ProcessManager struct {
	name    string
	cmd     *exec.Cmd
	group   bool
	done    chan struct{}
	waitErr error
}

// New creates a new ProcessManager instance. name only labels log records.
func New(name string) *ProcessManager {
	return &ProcessManager{name: name}
}

// Start launches the process described by spec. The exit status is collected
// in the background; use Exited or Wait to observe it.
func (pm *ProcessManager) Start(spec Spec) error {
	if spec.Path == "" {
		return errors.New("process: empty command")
	}
	if pm.cmd != nil {
		return fmt.Errorf("process: %s already started", pm.name)
	}

	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Env = spec.Env
	cmd.Dir = spec.Dir
	cmd.Stdin = spec.Stdin
	cmd.Stdout = spec.Stdout
	cmd.Stderr = spec.Stderr
	if spec.Credential != nil || spec.NewSession {
		cmd.SysProcAttr = &syscall.SysProcAttr{
			Credential: spec.Credential,
			Setsid:     spec.NewSession,
		}
	}

	logger.Log.Info("Process: Forking", "name", pm.name, "cmd", append([]string{spec.Path}, spec.Args...))
	if err := cmd.Start(); err != nil {
		return err
	}

	pm.cmd = cmd
	pm.group = spec.NewSession
	pm.done = make(chan struct{})
	go func() {
		pm.waitErr = cmd.Wait()
		close(pm.done)
	}()
	return nil
}

// Pid returns the child's pid, or 0 before Start.
func (pm *ProcessManager) Pid() int {
	if pm.cmd == nil || pm.cmd.Process == nil {
		return 0
	}
	return pm.cmd.Process.Pid
}

// Exited is closed once the child has been reaped. It is nil before Start.
func (pm *ProcessManager) Exited() <-chan struct{} {
	return pm.done
}

// Stop sends SIGTERM and waits up to grace for the child to exit, then
// sends SIGKILL. A child that already exited is not an error.
func (pm *ProcessManager) Stop(grace time.Duration) error {
	if pm.cmd == nil {
		return nil
	}
	select {
	case <-pm.done:
		return nil
	default:
	}

	logger.Log.Info("Process: Sending SIGTERM", "name", pm.name, "pid", pm.Pid())
	if err := pm.signal(syscall.SIGTERM); err != nil {
		return err
	}

	select {
	case <-pm.done:
		return nil
	case <-time.After(grace):
	}
	if err := pm.Kill(); err != nil {
		return err
	}
	<-pm.done
	return nil
}

// Kill immediately terminates the child using SIGKILL.
func (pm *ProcessManager) Kill() error {
	if pm.cmd == nil {
		return nil
	}
	logger.Log.Warn("Process: Sending SIGKILL", "name", pm.name, "pid", pm.Pid())
	return pm.signal(syscall.SIGKILL)
}

// Wait waits for the child to exit and returns the resulting error, if any.
func (pm *ProcessManager) Wait() error {
	if pm.cmd == nil {
		return nil
	}
	<-pm.done
	return pm.waitErr
}

func (pm *ProcessManager) signal(sig syscall.Signal) error {
	pid := pm.Pid()
	if pm.group {
		pid = -pid
	}
	err := syscall.Kill(pid, sig)
	if errors.Is(err, syscall.ESRCH) {
		return nil
	}
	if err != nil {
		return &os.SyscallError{Syscall: "kill", Err: err}
	}
	return nil
}

// Personal.AI order the ending

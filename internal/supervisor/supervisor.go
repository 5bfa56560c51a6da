// Package supervisor runs one authenticated graphical session from
// environment setup to teardown.
package supervisor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/turtacn/Vigil/internal/auth"
	"github.com/turtacn/Vigil/internal/catalog"
	"github.com/turtacn/Vigil/internal/handshake"
	"github.com/turtacn/Vigil/internal/monitor"
	"github.com/turtacn/Vigil/internal/vt"
	"github.com/turtacn/Vigil/pkg/consts"
	verrors "github.com/turtacn/Vigil/pkg/errors"
	"github.com/turtacn/Vigil/pkg/fsm"
	"github.com/turtacn/Vigil/pkg/logger"
)

// Environment prepares the process environment for the session user and
// puts the previous one back afterwards.
type Environment interface {
	Apply(username, home, shell string, uid, tty int, extra map[string]string) error
	Restore() error
}

// BindFunc opens the logout inbox.
type BindFunc func(path string, uid, gid int, verbose bool) (*handshake.Inbox, error)

// Config carries the supervisor's own settings.
type Config struct {
	TTY        int
	InboxPath  string
	OutboxPath string
	Verbose    bool
}

// Supervisor sequences graphical sessions, one at a time.
type Supervisor struct {
	cfg     Config
	env     Environment
	backend Backend
	term    vt.Switcher
	bind    BindFunc

	running atomic.Bool
	mu      sync.Mutex
	machine *fsm.StateMachine
}

// New creates a Supervisor with its collaborators.
func New(cfg Config, env Environment, backend Backend, term vt.Switcher) *Supervisor {
	return &Supervisor{
		cfg:     cfg,
		env:     env,
		backend: backend,
		term:    term,
		bind:    handshake.Bind,
	}
}

// State returns the lifecycle state of the current or last session.
func (s *Supervisor) State() consts.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.machine == nil {
		return consts.StateIdle
	}
	return consts.SessionState(s.machine.Current())
}

// Start runs the session described by entry for id and returns once the
// user has logged out and everything started has been stopped. The
// credentials held by id are invalidated on every return path.
func (s *Supervisor) Start(ctx context.Context, entry catalog.Entry, id *auth.Identity) (err error) {
	defer func() {
		if ierr := id.Invalidate(); ierr != nil {
			logger.Log.Warn("Supervisor: Failed to invalidate credentials", "user", id.Username, "err", ierr)
		}
	}()

	if !s.running.CompareAndSwap(false, true) {
		return verrors.New(verrors.ErrCodeAttemptInFlight, "Start", "a session is already supervised", nil)
	}
	defer s.running.Store(false)

	kind := KindFor(entry, s.backend)
	machine := newLifecycle()
	s.mu.Lock()
	s.machine = machine
	s.mu.Unlock()

	log := logger.Log.With("user", id.Username, "session", entry.Name, "kind", kind.Name())
	log.Info("Supervisor: Starting session")

	if err := kind.Prepare(id); err != nil {
		return err
	}

	if err := s.env.Apply(id.Username, id.Home, id.Shell, id.UID, s.cfg.TTY, id.Env); err != nil {
		return verrors.New(verrors.ErrCodeEnvironment, "Start", "failed to apply session environment", err)
	}
	defer func() {
		if rerr := s.env.Restore(); rerr != nil {
			log.Warn("Supervisor: Failed to restore environment", "err", rerr)
		}
	}()
	fire(machine, eventEnvironment)

	inbox, err := s.bind(s.cfg.InboxPath, id.UID, id.GID, s.cfg.Verbose)
	if err != nil {
		return verrors.New(verrors.ErrCodeInboxOpen, "Start", "could not open inbox", err)
	}
	defer inbox.Close()

	started := time.Now()
	active := false
	defer func() {
		fire(machine, eventTeardown)
		vt.SwitchOrWarn(s.term, s.cfg.TTY)
		kind.Teardown()
		if active {
			monitor.SessionsActive.Dec()
			monitor.SessionDuration.Observe(time.Since(started).Seconds())
		}
		fire(machine, eventDone)
		log.Info("Supervisor: Session finished", "err", err)
	}()

	if err := kind.Start(id, func(ev fsm.Event) { fire(machine, ev) }); err != nil {
		return err
	}
	active = true
	monitor.SessionsActive.Inc()

	fire(machine, eventAwait)
	log.Info("Supervisor: Awaiting logout", "inbox", s.cfg.InboxPath)
	return kind.Await(ctx, inbox, s.cfg.OutboxPath)
}

// Personal.AI order the ending

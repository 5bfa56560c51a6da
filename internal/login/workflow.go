// Package login drives credential entry and the asynchronous
// authenticate-then-supervise task behind the login prompt.
package login

import (
	"context"
	"errors"
	"sync"

	"github.com/turtacn/Vigil/internal/auth"
	"github.com/turtacn/Vigil/internal/catalog"
	"github.com/turtacn/Vigil/internal/monitor"
	verrors "github.com/turtacn/Vigil/pkg/errors"
	"github.com/turtacn/Vigil/pkg/logger"
	"github.com/turtacn/Vigil/pkg/secret"
)

const updateBuffer = 4

// ErrNotAtPassword is returned by Submit outside the password field.
var ErrNotAtPassword = errors.New("login: submit is only possible from the password field")

// Starter runs a session for an authenticated identity until logout.
type Starter interface {
	Start(ctx context.Context, entry catalog.Entry, id *auth.Identity) error
}

// Attempt is one submitted set of credentials and its progress channel.
type Attempt struct {
	Username string
	Entry    catalog.Entry

	password *secret.String
	updates  chan Status
	done     chan struct{}
}

func (a *Attempt) notify(st Status) {
	select {
	case a.updates <- st:
	default:
		logger.Log.Warn("Login: Dropped status update", "status", st.Text())
	}
}

// Workflow owns the input focus and at most one running attempt.
type Workflow struct {
	ctx   context.Context
	authn auth.Authenticator
	sup   Starter

	mu       sync.Mutex
	focus    Focus
	running  *Attempt
	observed *Attempt
}

// New returns a workflow. ctx is handed to every supervised session; its
// cancellation ends them.
func New(ctx context.Context, authn auth.Authenticator, sup Starter) *Workflow {
	return &Workflow{ctx: ctx, authn: authn, sup: sup}
}

func (w *Workflow) Focus() Focus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.focus
}

// Forward moves the focus forward, or backward when shift is held.
func (w *Workflow) Forward(shift bool) Focus {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.focus = w.focus.Forward(shift)
	return w.focus
}

func (w *Workflow) Backward() Focus {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.focus = w.focus.Prev()
	return w.focus
}

// Escape returns the focus to Normal.
func (w *Workflow) Escape() Focus {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.focus = FocusNormal
	return w.focus
}

// InFlight reports whether the last submitted attempt is still running.
func (w *Workflow) InFlight() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.inFlightLocked()
}

func (w *Workflow) inFlightLocked() bool {
	if w.running == nil {
		return false
	}
	select {
	case <-w.running.done:
		return false
	default:
		return true
	}
}

// Submit starts an attempt for the given credentials and session. It takes
// ownership of password and zeroes it once the attempt no longer needs it,
// including when the submission is rejected.
func (w *Workflow) Submit(username string, password *secret.String, entry catalog.Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.focus != FocusPassword {
		password.Zero()
		return ErrNotAtPassword
	}
	if w.inFlightLocked() {
		password.Zero()
		logger.Log.Warn("Login: Rejected submission while an attempt is running", "user", username)
		return verrors.New(verrors.ErrCodeAttemptInFlight, "Submit", "a login attempt is already running", nil)
	}

	a := &Attempt{
		Username: username,
		Entry:    entry,
		password: password,
		updates:  make(chan Status, updateBuffer),
		done:     make(chan struct{}),
	}
	w.running = a
	w.observed = a
	go w.run(a)
	return nil
}

// Poll returns the next status of the observed attempt without blocking.
// The attempt is forgotten once it reports Cleared or its channel closes.
func (w *Workflow) Poll() (Status, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.observed == nil {
		return Status{}, false
	}
	select {
	case st, ok := <-w.observed.updates:
		if !ok {
			w.observed = nil
			return Status{}, false
		}
		if st.Kind == StatusCleared {
			w.observed = nil
		}
		return st, true
	default:
		return Status{}, false
	}
}

// Wait blocks until the last submitted attempt has finished.
func (w *Workflow) Wait() {
	w.mu.Lock()
	a := w.running
	w.mu.Unlock()
	if a != nil {
		<-a.done
	}
}

func (w *Workflow) run(a *Attempt) {
	defer close(a.done)
	defer close(a.updates)
	defer a.password.Zero()

	log := logger.Log.With("user", a.Username, "session", a.Entry.Name)
	a.notify(Status{Kind: StatusAuthenticating})

	id, err := w.authn.Authenticate(a.Username, a.password)
	if err != nil {
		log.Warn("Login: Authentication failed", "err", err)
		monitor.LoginAttempts.WithLabelValues("auth_failed").Inc()
		a.notify(Status{Kind: StatusAuthenticationFailed, Reason: failureReason(err)})
		return
	}
	// Covers a supervisor that returns before taking over the identity.
	defer func() {
		if err := id.Invalidate(); err != nil {
			log.Warn("Login: Failed to invalidate credentials", "err", err)
		}
	}()

	a.notify(Status{Kind: StatusLoggingIn})
	log.Info("Login: Authenticated, starting session")

	err = w.sup.Start(w.ctx, a.Entry, id)
	switch {
	case err == nil:
		monitor.LoginAttempts.WithLabelValues("success").Inc()
		a.notify(Status{Kind: StatusCleared})
	case errors.Is(err, context.Canceled) || w.ctx.Err() != nil:
		log.Info("Login: Session ended by shutdown", "err", err)
		monitor.LoginAttempts.WithLabelValues("ended").Inc()
		a.notify(Status{Kind: StatusCleared})
	case verrors.HasCode(err, verrors.ErrCodeHandleLogout):
		log.Warn("Login: Session ended without logout request", "err", err)
		monitor.LoginAttempts.WithLabelValues("ended").Inc()
		a.notify(Status{Kind: StatusCleared})
	case verrors.HasCode(err, verrors.ErrCodeDesktop):
		log.Error("Login: Desktop failed", "err", err)
		monitor.LoginAttempts.WithLabelValues("desktop_failed").Inc()
		a.notify(Status{Kind: StatusDesktopFailed})
	default:
		log.Error("Login: Graphical environment failed", "err", err)
		monitor.LoginAttempts.WithLabelValues("environment_failed").Inc()
		a.notify(Status{Kind: StatusGraphicalEnvironmentFailed})
	}
}

func failureReason(err error) string {
	var f *auth.Failure
	if errors.As(err, &f) {
		return f.Reason.String()
	}
	return err.Error()
}

// Personal.AI order the ending

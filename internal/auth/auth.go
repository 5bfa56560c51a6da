// Package auth defines the authentication collaborator consumed by the login
// workflow and the identity context handed to the session supervisor.
package auth

import (
	"fmt"
	"sync"

	"github.com/turtacn/Vigil/pkg/secret"
)

// Reason classifies why authentication failed.
type Reason int

const (
	ReasonUnknown Reason = iota
	ReasonBadCredentials
	ReasonAccount
	ReasonUserUnknown
	ReasonCredentials
	ReasonSession
	ReasonService
)

func (r Reason) String() string {
	switch r {
	case ReasonBadCredentials:
		return "invalid username or password"
	case ReasonAccount:
		return "account unavailable"
	case ReasonUserUnknown:
		return "unknown user"
	case ReasonCredentials:
		return "could not establish credentials"
	case ReasonSession:
		return "could not open session"
	case ReasonService:
		return "authentication service unavailable"
	default:
		return "unknown failure"
	}
}

// Failure is the typed error returned by an Authenticator.
type Failure struct {
	Reason Reason
	Err    error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("authentication failed: %s: %v", f.Reason, f.Err)
	}
	return "authentication failed: " + f.Reason.String()
}

func (f *Failure) Unwrap() error { return f.Err }

// Authenticator validates a username and password and returns the identity
// context for exactly one session attempt.
type Authenticator interface {
	Authenticate(username string, password *secret.String) (*Identity, error)
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(username string, password *secret.String) (*Identity, error)

func (f AuthenticatorFunc) Authenticate(username string, password *secret.String) (*Identity, error) {
	return f(username, password)
}

// Handle is an open authentication handle that must be revoked when the
// attempt ends.
type Handle interface {
	Close() error
}

// Identity is the authenticated user of one session attempt.
type Identity struct {
	Username string
	Home     string
	Shell    string
	UID      int
	GID      int
	Groups   []int
	// Env holds variables the authentication stack asked to export.
	Env map[string]string

	password *secret.String
	handle   Handle

	once        sync.Once
	invalidated bool
	mu          sync.Mutex
}

// Attach binds the credential material and authentication handle to id so
// Invalidate can release them.
func (id *Identity) Attach(password *secret.String, handle Handle) {
	id.mu.Lock()
	defer id.mu.Unlock()
	id.password = password
	id.handle = handle
}

// Invalidate zeroes the password and revokes the authentication handle.
// Only the first call does work; later calls return nil.
func (id *Identity) Invalidate() error {
	if id == nil {
		return nil
	}
	var err error
	id.once.Do(func() {
		id.mu.Lock()
		defer id.mu.Unlock()
		id.password.Zero()
		if id.handle != nil {
			err = id.handle.Close()
		}
		id.handle = nil
		id.invalidated = true
	})
	return err
}

// Invalidated reports whether Invalidate has run.
func (id *Identity) Invalidated() bool {
	if id == nil {
		return true
	}
	id.mu.Lock()
	defer id.mu.Unlock()
	return id.invalidated
}

// Personal.AI order the ending

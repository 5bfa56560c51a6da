// Package environ prepares the process environment that session children
// inherit: identity variables, XDG base directories and session variables.
package environ

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/turtacn/Vigil/pkg/logger"
)

const defaultPath = "/usr/local/sbin:/usr/local/bin:/usr/bin:/bin"

// Setter abstracts the process environment so tests can record writes.
type Setter interface {
	Setenv(key, value string) error
	Unsetenv(key string) error
	Getenv(key string) string
	Environ() []string
	Chdir(dir string) error
}

type osSetter struct{}

func (osSetter) Setenv(key, value string) error { return os.Setenv(key, value) }
func (osSetter) Unsetenv(key string) error      { return os.Unsetenv(key) }
func (osSetter) Getenv(key string) string       { return os.Getenv(key) }
func (osSetter) Environ() []string              { return os.Environ() }
func (osSetter) Chdir(dir string) error         { return os.Chdir(dir) }

// Environment applies session variables to a Setter and can put the
// previous environment back once the session is over.
type Environment struct {
	set         Setter
	sessionType string

	mu       sync.Mutex
	snapshot map[string]string
}

// New returns an Environment writing to this process's environment.
func New(sessionType string) *Environment {
	return &Environment{set: osSetter{}, sessionType: sessionType}
}

// NewWithSetter is New with an explicit Setter.
func NewWithSetter(s Setter, sessionType string) *Environment {
	return &Environment{set: s, sessionType: sessionType}
}

// Apply sets the identity and XDG variables for username and moves into home.
// extra holds additional variables, such as those exported by PAM, applied last.
//
// The environment seen before the first Apply is recorded. A later Apply
// starts from that recording, so nothing from a previous user survives.
func (e *Environment) Apply(username, home, shell string, uid, tty int, extra map[string]string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.snapshot != nil {
		if err := e.restoreLocked(); err != nil {
			return fmt.Errorf("restore previous environment: %w", err)
		}
	}
	e.snapshot = parseEnviron(e.set.Environ())

	vars := Variables(username, home, shell, uid, tty, e.sessionType)
	if p := e.set.Getenv("PATH"); p != "" {
		vars["PATH"] = p
	}
	for k, v := range extra {
		vars[k] = v
	}

	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := e.set.Setenv(k, vars[k]); err != nil {
			return errors.Join(fmt.Errorf("setenv %s: %w", k, err), e.restoreLocked())
		}
	}

	if err := e.set.Chdir(home); err != nil {
		logger.Log.Warn("Failed to change into home directory", "home", home, "err", err)
	}
	logger.Log.Info("Session environment applied", "user", username, "vars", len(vars))
	return nil
}

// Restore returns the environment to what it was before Apply, including
// variables set by others in the meantime such as DISPLAY. Without a prior
// Apply it does nothing.
func (e *Environment) Restore() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.snapshot == nil {
		return nil
	}
	return e.restoreLocked()
}

func (e *Environment) restoreLocked() error {
	var errs []error
	for key := range parseEnviron(e.set.Environ()) {
		if _, ok := e.snapshot[key]; !ok {
			if err := e.set.Unsetenv(key); err != nil {
				errs = append(errs, fmt.Errorf("unsetenv %s: %w", key, err))
			}
		}
	}
	for key, value := range e.snapshot {
		if err := e.set.Setenv(key, value); err != nil {
			errs = append(errs, fmt.Errorf("setenv %s: %w", key, err))
		}
	}
	e.snapshot = nil
	return errors.Join(errs...)
}

func parseEnviron(kvs []string) map[string]string {
	env := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		if key, value, ok := strings.Cut(kv, "="); ok && key != "" {
			env[key] = value
		}
	}
	return env
}

// Variables computes the session variables without touching any environment.
func Variables(username, home, shell string, uid, tty int, sessionType string) map[string]string {
	vars := map[string]string{
		"HOME":    home,
		"PWD":     home,
		"SHELL":   shell,
		"USER":    username,
		"LOGNAME": username,
		"PATH":    defaultPath,

		"XDG_CONFIG_HOME":   filepath.Join(home, ".config"),
		"XDG_CACHE_HOME":    filepath.Join(home, ".cache"),
		"XDG_DATA_HOME":     filepath.Join(home, ".local", "share"),
		"XDG_STATE_HOME":    filepath.Join(home, ".local", "state"),
		"XDG_DATA_DIRS":     "/usr/local/share:/usr/share",
		"XDG_CONFIG_DIRS":   "/etc/xdg",
		"XDG_RUNTIME_DIR":   "/run/user/" + strconv.Itoa(uid),
		"XDG_SESSION_CLASS": "user",
		"XDG_SEAT":          "seat0",
		"XDG_VTNR":          strconv.Itoa(tty),
	}
	if sessionType != "" {
		vars["XDG_SESSION_TYPE"] = sessionType
	}
	return vars
}

// Personal.AI order the ending

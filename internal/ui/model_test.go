package ui

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/Vigil/internal/auth"
	"github.com/turtacn/Vigil/internal/catalog"
	"github.com/turtacn/Vigil/internal/login"
	"github.com/turtacn/Vigil/pkg/secret"
)

var entries = []catalog.Entry{
	{Name: "awesome", Kind: catalog.KindX, Path: "/wms/awesome"},
	{Name: "bspwm", Kind: catalog.KindX, Path: "/wms/bspwm"},
	{Name: "i3", Kind: catalog.KindX, Path: "/wms/i3"},
}

type starter struct {
	mu      sync.Mutex
	user    string
	entry   catalog.Entry
	release chan struct{}
}

func (s *starter) Start(_ context.Context, e catalog.Entry, id *auth.Identity) error {
	s.mu.Lock()
	s.user = id.Username
	s.entry = e
	s.mu.Unlock()
	if s.release != nil {
		<-s.release
	}
	return nil
}

type seen struct {
	mu       sync.Mutex
	password string
}

func newModel(st *starter, got *seen) Model {
	authn := auth.AuthenticatorFunc(func(username string, pw *secret.String) (*auth.Identity, error) {
		got.mu.Lock()
		got.password = pw.Reveal()
		got.mu.Unlock()
		return &auth.Identity{Username: username}, nil
	})
	return New(login.New(context.Background(), authn, st), entries)
}

func key(t tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: t} }

func typeText(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func send(m Model, msgs ...tea.Msg) Model {
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func TestNavigation(t *testing.T) {
	m := newModel(&starter{}, &seen{})
	assert.Equal(t, login.FocusNormal, m.wf.Focus())

	m = send(m, key(tea.KeyEnter), key(tea.KeyDown), key(tea.KeyTab))
	assert.Equal(t, login.FocusPassword, m.wf.Focus())
	assert.True(t, m.password.Focused())
	assert.False(t, m.username.Focused())

	m = send(m, key(tea.KeyUp))
	assert.Equal(t, login.FocusUsername, m.wf.Focus())
	assert.True(t, m.username.Focused())

	m = send(m, key(tea.KeyShiftTab))
	assert.Equal(t, login.FocusWMSelect, m.wf.Focus())

	m = send(m, key(tea.KeyEsc))
	assert.Equal(t, login.FocusNormal, m.wf.Focus())
	assert.False(t, m.username.Focused())
}

func TestSessionSelector(t *testing.T) {
	m := newModel(&starter{}, &seen{})
	m = send(m, key(tea.KeyDown))
	require.Equal(t, login.FocusWMSelect, m.wf.Focus())

	m = send(m, key(tea.KeyRight))
	assert.Equal(t, 1, m.selected)
	m = send(m, key(tea.KeyRight), key(tea.KeyRight))
	assert.Equal(t, 0, m.selected)
	m = send(m, key(tea.KeyLeft))
	assert.Equal(t, 2, m.selected)
	assert.Contains(t, m.View(), "< i3 >")
}

func TestTypingAndSubmit(t *testing.T) {
	st := &starter{}
	got := &seen{}
	m := newModel(st, got)

	m = send(m, key(tea.KeyDown), key(tea.KeyRight), key(tea.KeyDown))
	m = send(m, typeText("alice"), key(tea.KeyEnter), typeText("hunter2"))
	assert.Equal(t, "alice", m.username.Value())
	assert.Equal(t, "hunter2", m.password.Value())
	assert.NotContains(t, m.View(), "hunter2")

	m = send(m, key(tea.KeyEnter))
	assert.Empty(t, m.password.Value())

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		m = send(m, pollMsg{})
		if m.status.Kind == login.StatusCleared {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.Equal(t, login.StatusCleared, m.status.Kind)
	assert.False(t, m.hasStatus)

	st.mu.Lock()
	assert.Equal(t, "alice", st.user)
	assert.Equal(t, "bspwm", st.entry.Name)
	st.mu.Unlock()
	got.mu.Lock()
	assert.Equal(t, "hunter2", got.password)
	got.mu.Unlock()
}

func TestStatusRendering(t *testing.T) {
	m := newModel(&starter{}, &seen{})
	m.status = login.Status{Kind: login.StatusAuthenticationFailed, Reason: "unknown user"}
	m.hasStatus = true
	assert.Contains(t, m.View(), "Authentication failed: unknown user")

	m.status = login.Status{Kind: login.StatusLoggingIn}
	assert.Contains(t, m.View(), "Logging in...")
}

func TestCtrlC(t *testing.T) {
	st := &starter{release: make(chan struct{})}
	m := newModel(st, &seen{})
	m = send(m, key(tea.KeyDown), key(tea.KeyDown), key(tea.KeyDown), typeText("x"), key(tea.KeyEnter))
	require.Eventually(t, m.wf.InFlight, time.Second, 5*time.Millisecond)

	next, cmd := m.Update(key(tea.KeyCtrlC))
	assert.Nil(t, cmd)
	assert.False(t, next.(Model).quitting)

	close(st.release)
	m.wf.Wait()

	next, cmd = m.Update(key(tea.KeyCtrlC))
	assert.NotNil(t, cmd)
	assert.True(t, next.(Model).quitting)
	assert.Empty(t, next.(Model).View())
}

func TestSubmitWithoutEntries(t *testing.T) {
	m := New(login.New(context.Background(), auth.AuthenticatorFunc(
		func(string, *secret.String) (*auth.Identity, error) { return nil, nil }), &starter{}), nil)
	m = send(m, key(tea.KeyDown), key(tea.KeyDown), key(tea.KeyDown), key(tea.KeyEnter))
	assert.False(t, m.wf.InFlight())
	assert.True(t, strings.Contains(m.View(), "No session environments available"))
	assert.Contains(t, m.View(), "<none>")
}

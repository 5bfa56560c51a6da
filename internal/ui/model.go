// Package ui renders the login prompt and feeds key presses into a
// login.Workflow.
package ui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/turtacn/Vigil/internal/catalog"
	"github.com/turtacn/Vigil/internal/login"
	"github.com/turtacn/Vigil/pkg/secret"
)

const pollInterval = 100 * time.Millisecond

type pollMsg struct{}

// Model is the bubbletea model of the login prompt.
type Model struct {
	wf       *login.Workflow
	entries  []catalog.Entry
	selected int

	username textinput.Model
	password textinput.Model

	status    login.Status
	hasStatus bool
	notice    string
	width     int
	height    int
	quitting  bool
}

// New builds the prompt for wf offering entries in the session selector.
func New(wf *login.Workflow, entries []catalog.Entry) Model {
	user := textinput.New()
	user.Placeholder = "username"
	user.CharLimit = 64
	user.Prompt = ""

	pass := textinput.New()
	pass.Placeholder = "password"
	pass.EchoMode = textinput.EchoPassword
	pass.EchoCharacter = '*'
	pass.Prompt = ""

	m := Model{wf: wf, entries: entries, username: user, password: pass}
	m.syncFocus()
	return m
}

func poll() tea.Cmd {
	return tea.Tick(pollInterval, func(time.Time) tea.Msg { return pollMsg{} })
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, poll())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case pollMsg:
		m.drain()
		return m, poll()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		if m.wf.InFlight() {
			return m, nil
		}
		m.quitting = true
		return m, tea.Quit
	case "esc":
		m.wf.Escape()
	case "enter":
		if m.wf.Focus() == login.FocusPassword {
			m.submit()
			return m, nil
		}
		m.wf.Forward(false)
	case "down", "tab":
		m.wf.Forward(false)
	case "shift+tab":
		m.wf.Forward(true)
	case "up":
		m.wf.Backward()
	case "left", "right":
		if m.wf.Focus() == login.FocusWMSelect {
			m.cycle(msg.String() == "right")
			return m, nil
		}
		return m.updateInput(msg)
	default:
		return m.updateInput(msg)
	}
	m.syncFocus()
	return m, nil
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.wf.Focus() {
	case login.FocusUsername:
		m.username, cmd = m.username.Update(msg)
	case login.FocusPassword:
		m.password, cmd = m.password.Update(msg)
	}
	return m, cmd
}

func (m *Model) syncFocus() {
	m.username.Blur()
	m.password.Blur()
	switch m.wf.Focus() {
	case login.FocusUsername:
		m.username.Focus()
	case login.FocusPassword:
		m.password.Focus()
	}
}

func (m *Model) cycle(forward bool) {
	n := len(m.entries)
	if n == 0 {
		return
	}
	if forward {
		m.selected = (m.selected + 1) % n
	} else {
		m.selected = (m.selected - 1 + n) % n
	}
}

func (m *Model) submit() {
	if len(m.entries) == 0 {
		m.notice = "No session environments available"
		return
	}
	pw := secret.FromString(m.password.Value())
	m.password.Reset()
	if err := m.wf.Submit(m.username.Value(), pw, m.entries[m.selected]); err != nil {
		m.notice = err.Error()
		return
	}
	m.notice = ""
}

// drain applies every status that arrived since the last tick.
func (m *Model) drain() {
	for {
		st, ok := m.wf.Poll()
		if !ok {
			return
		}
		m.status = st
		m.hasStatus = st.Kind != login.StatusCleared
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Vigil"))
	b.WriteString("\n")
	b.WriteString(m.row("Session", login.FocusWMSelect, m.sessionName()))
	b.WriteString("\n")
	b.WriteString(m.row("Login", login.FocusUsername, m.username.View()))
	b.WriteString("\n")
	b.WriteString(m.row("Password", login.FocusPassword, m.password.View()))
	b.WriteString("\n\n")

	switch {
	case m.notice != "":
		b.WriteString(errorStyle.Render(m.notice))
	case m.hasStatus && m.status.IsError():
		b.WriteString(errorStyle.Render(m.status.Text()))
	case m.hasStatus:
		b.WriteString(infoStyle.Render(m.status.Text()))
	}
	b.WriteString("\n")
	b.WriteString(hintStyle.Render("enter/down next  up back  esc reset  ctrl+c quit"))

	box := boxStyle.Render(b.String())
	if m.width == 0 || m.height == 0 {
		return box
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

func (m Model) row(label string, focus login.Focus, value string) string {
	style := labelStyle
	if m.wf.Focus() == focus {
		style = focusedLabelStyle
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, style.Render(label), value)
}

func (m Model) sessionName() string {
	if len(m.entries) == 0 {
		return "<none>"
	}
	return "< " + m.entries[m.selected].Name + " >"
}

// Run shows the prompt until the user quits or ctx is cancelled.
func Run(ctx context.Context, wf *login.Workflow, entries []catalog.Entry) error {
	p := tea.NewProgram(New(wf, entries), tea.WithAltScreen())
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			p.Quit()
		case <-done:
		}
	}()
	_, err := p.Run()
	return err
}

// Personal.AI order the ending

package ui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().Bold(true).MarginBottom(1)

	labelStyle        = lipgloss.NewStyle().Width(10)
	focusedLabelStyle = labelStyle.Foreground(lipgloss.Color("6")).Bold(true)

	boxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(1, 3)

	infoStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	hintStyle  = lipgloss.NewStyle().Faint(true)
)

// Personal.AI order the ending

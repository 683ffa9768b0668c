package ui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true).MarginLeft(2)
	focusedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	blurredStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Margin(1, 0)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("140")).MarginTop(1)

	redSuitStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	blackSuitStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	jokerStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true)
	markedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	cursorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
)

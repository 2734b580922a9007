package main

import "github.com/charmbracelet/lipgloss"

var (
	styleType = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7d56f4"))

	styleContainer = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#28a745"))

	styleInfo = lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color("#888888"))

	styleError = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ee4b2b"))
)

package main

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")) // Pink

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // Cyan

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")) // Red

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")) // Grey

	checkStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")) // Green
)

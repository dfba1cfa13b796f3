// Package tui renders the message board in the terminal.
package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorBlue  = lipgloss.Color("#7aa2f7")
	colorGray  = lipgloss.Color("#565f89")
	colorRed   = lipgloss.Color("#f7768e")
	colorWhite = lipgloss.Color("#c0caf5")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorBlue).
			PaddingLeft(1).
			PaddingBottom(1)

	errorBannerStyle = lipgloss.NewStyle().
				Foreground(colorWhite).
				Background(colorRed).
				Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(colorBlue).
			Bold(true)

	normalStyle = lipgloss.NewStyle()

	// Messages waiting for a delete confirmation from the server.
	pendingStyle = lipgloss.NewStyle().
			Foreground(colorGray).
			Strikethrough(true)

	timestampStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	helpStyle = lipgloss.NewStyle().
			Foreground(colorGray).
			PaddingTop(1)

	spinnerStyle = lipgloss.NewStyle().
			Foreground(colorBlue)
)

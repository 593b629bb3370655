package ui

import "github.com/charmbracelet/lipgloss"

// Colors used in the application.
var (
	colorPrimary   = lipgloss.Color("62")  // Purple
	colorSecondary = lipgloss.Color("241") // Gray
	colorMuted     = lipgloss.Color("240") // Darker gray
	colorHighlight = lipgloss.Color("212") // Pink
	colorError     = lipgloss.Color("196") // Red
)

// Header style for the matchup line at the top.
var Header = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("255")).
	Background(colorPrimary).
	Padding(0, 1)

// TeamBadge returns the badge style for a team colour token.
func TeamBadge(color string) lipgloss.Style {
	if color == "" {
		color = "236"
	}
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("255")).
		Background(lipgloss.Color(color)).
		Bold(true).
		Padding(0, 1)
}

// SpeakerName style for agent names.
var SpeakerName = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("255"))

// ViewerName style for the viewer's own name.
var ViewerName = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorHighlight)

// Timestamp style for reveal times.
var Timestamp = lipgloss.NewStyle().
	Foreground(colorMuted)

// MessageText style for message bodies.
var MessageText = lipgloss.NewStyle().
	Foreground(lipgloss.Color("252"))

// SystemMessage style for loop notices.
var SystemMessage = lipgloss.NewStyle().
	Foreground(colorError).
	Italic(true)

// InputBar style for the chat input line.
var InputBar = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	Background(lipgloss.Color("238")).
	Padding(0, 1)

// StatusBar style for the bottom status bar.
var StatusBar = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	Background(lipgloss.Color("236")).
	Padding(0, 1)

// StatusBarKey style for key hints in status bar.
var StatusBarKey = lipgloss.NewStyle().
	Foreground(colorHighlight).
	Bold(true)

// StatusBarText style for descriptive text in status bar.
var StatusBarText = lipgloss.NewStyle().
	Foreground(colorSecondary)

// ErrorStyle for displaying errors.
var ErrorStyle = lipgloss.NewStyle().
	Foreground(colorError).
	Bold(true).
	Padding(0, 1)

// DebugPanel frames the debug overlay.
var DebugPanel = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(colorPrimary).
	Padding(1, 2)

// DebugHeaderStyle for section titles in the debug overlay.
var DebugHeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorHighlight)

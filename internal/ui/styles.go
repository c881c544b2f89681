package ui

import "github.com/charmbracelet/lipgloss"

var (
	// TitleStyle uses ANSI 6 (Cyan) so headers read well on any terminal.
	TitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true).MarginBottom(1)

	// UsageStyle ANSI 2 (Green) for arguments and usage lines.
	UsageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))

	// DescStyle ANSI 8 (Bright Black / Gray) keeps descriptions dimmer.
	DescStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	// FlagStyle ANSI 3 (Yellow) for flags.
	FlagStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))

	// ThinkingStyle dims model reasoning so it never competes with the answer.
	ThinkingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)

	// ErrorStyle ANSI 1 (Red) for failed turns and recovery advice.
	ErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))

	// NoticeStyle for session lifecycle messages.
	NoticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
)

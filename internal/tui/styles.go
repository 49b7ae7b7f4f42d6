package tui

import "github.com/charmbracelet/lipgloss"

var (
	ColorWhite  = lipgloss.Color("#F5F5F5")
	ColorGray   = lipgloss.Color("#8A8A8A")
	ColorDim    = lipgloss.Color("#3A3A3A")
	ColorAccent = lipgloss.Color("#A147E1")
	ColorGreen  = lipgloss.Color("#22C55E")
	ColorAmber  = lipgloss.Color("#F59E0B")
	ColorRed    = lipgloss.Color("#EF4444")
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)

	helpStyle = lipgloss.NewStyle().Foreground(ColorGray)

	tabStyle       = lipgloss.NewStyle().Foreground(ColorGray).Padding(0, 1)
	activeTabStyle = tabStyle.Foreground(ColorWhite).Background(ColorDim).Bold(true)

	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorDim).
			Padding(0, 1)

	activeSectionStyle = sectionStyle.BorderForeground(ColorAccent)

	statLabelStyle = lipgloss.NewStyle().Foreground(ColorGray)

	statValueStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorWhite)

	statChangedStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorGreen)
)

// Package render formats complaints, counts and locations for the terminal
// with lipgloss. Output degrades to plain text when the terminal has no color.
package render

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

const (
	// Amber marks work waiting on staff.
	Amber = "#FFAA00"
	// Blue marks work in progress and informational text.
	Blue = "#9999CC"
	// Green marks resolved complaints.
	Green = "#33CC66"
	// Red marks rejected complaints and errors.
	Red = "#FF3333"
	// Gray is the muted neutral for borders and secondary text.
	Gray = "#52526A"
	// White is the primary text color.
	White = "#F5F6FA"
)

const (
	IconPending    = "⏸"
	IconInProgress = "●"
	IconResolved   = "✓"
	IconRejected   = "✗"
	IconUnknown    = "⚠"
)

var (
	AmberColor = profileColor(Amber, "214", "11")
	BlueColor  = profileColor(Blue, "146", "12")
	GreenColor = profileColor(Green, "41", "10")
	RedColor   = profileColor(Red, "203", "9")
	GrayColor  = profileColor(Gray, "60", "8")
	WhiteColor = profileColor(White, "255", "15")
)

var (
	// TitleStyle is used for card and panel headings.
	TitleStyle = lipgloss.NewStyle().Foreground(WhiteColor).Bold(true)
	// MutedStyle is used for labels and timestamps.
	MutedStyle = lipgloss.NewStyle().Foreground(GrayColor)
	// ErrorStyle is used for command failures on stderr.
	ErrorStyle = lipgloss.NewStyle().Foreground(RedColor).Bold(true)
	// InfoStyle is used for hints.
	InfoStyle = lipgloss.NewStyle().Foreground(BlueColor)

	// PanelBorder frames cards and the stats panel.
	PanelBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(GrayColor).
			Padding(0, 1)
)

var colorProfileFn = lipgloss.ColorProfile

func profileColor(hex string, ansi256 string, ansi string) lipgloss.TerminalColor {
	switch colorProfileFn() {
	case termenv.ANSI256, termenv.ANSI:
		complete := lipgloss.CompleteColor{TrueColor: hex, ANSI256: ansi256, ANSI: ansi}
		return lipgloss.CompleteAdaptiveColor{Light: complete, Dark: complete}
	default:
		return lipgloss.AdaptiveColor{Light: hex, Dark: hex}
	}
}

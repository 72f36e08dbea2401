package ui

import "github.com/charmbracelet/lipgloss"

// Palette. ANSI 256 codes so the UI looks the same on any terminal theme.
var (
	accent  = lipgloss.Color("62")  // purple: title, selection, frames
	pink    = lipgloss.Color("212") // focus and key hints
	ink     = lipgloss.Color("255")
	dim     = lipgloss.Color("241")
	faint   = lipgloss.Color("240")
	shade   = lipgloss.Color("236")
	okGreen = lipgloss.Color("78")
	amber   = lipgloss.Color("214")
	red     = lipgloss.Color("196")
)

func bold(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c).Bold(true)
}

func framed(padV, padH int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accent).
		Padding(padV, padH)
}

// Title bar and backend badge.
var (
	Header       = lipgloss.NewStyle().Bold(true).Foreground(ink).Background(accent).Padding(0, 1)
	OnlineBadge  = bold(okGreen)
	OfflineBadge = bold(red)
	SectionTitle = bold(pink).MarginTop(1).Padding(0, 1)
)

// Search results.
var (
	SelectedItem   = Header
	NormalItem     = lipgloss.NewStyle().Foreground(ink).Padding(0, 1)
	TimestampBadge = lipgloss.NewStyle().Foreground(accent).Background(shade).Padding(0, 1).MarginRight(1)
	PreviewLink    = lipgloss.NewStyle().Foreground(faint).Italic(true)
)

// Footer, notices and help.
var (
	StatusBar     = lipgloss.NewStyle().Foreground(ink).Background(shade).Padding(0, 1)
	StatusBarKey  = bold(pink)
	StatusBarText = lipgloss.NewStyle().Foreground(dim)
	NoticeStyle   = bold(amber).Padding(0, 1)
	ErrorStyle    = bold(red).Padding(0, 1)
	HelpStyle     = lipgloss.NewStyle().Foreground(faint).Padding(1, 2)
)

// Inputs and the settings sliders.
var (
	InputBar      = lipgloss.NewStyle().Foreground(ink).Background(faint).Padding(0, 1)
	InputPrompt   = bold(pink)
	SliderLabel   = lipgloss.NewStyle().Foreground(dim)
	SliderActive  = bold(pink)
	SliderDim     = lipgloss.NewStyle().Foreground(faint)
	SettingsFrame = framed(0, 1)
)

// Debug overlay.
var (
	DebugHeaderStyle = bold(pink)
	DebugPanel       = framed(1, 2)
)

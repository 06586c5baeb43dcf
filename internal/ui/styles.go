// Package ui provides terminal UI components using Charm libraries.
//
// This package contains all the styling, rendering, and interactive
// components for the devrelay CLI's terminal interface.
package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Brand colors for devrelay.
var (
	// Primary brand color - devrelay indigo
	Indigo = lipgloss.Color("#646CFF")

	// Secondary colors
	Teal    = lipgloss.Color("#14B8A6")
	Red     = lipgloss.Color("#EF4444")
	Amber   = lipgloss.Color("#F59E0B")
	Green   = lipgloss.Color("#22C55E")
	Gray    = lipgloss.Color("#6B7280")
	DimGray = lipgloss.Color("#9CA3AF")

	// Background colors
	DarkBg = lipgloss.Color("#1F2937")
)

// Text styles.
var (
	// TitleStyle for main headings
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Indigo)

	// SubtitleStyle for secondary headings
	SubtitleStyle = lipgloss.NewStyle().
			Foreground(DimGray)

	// SuccessStyle for success messages
	SuccessStyle = lipgloss.NewStyle().
			Foreground(Green).
			Bold(true)

	// ErrorStyle for error messages
	ErrorStyle = lipgloss.NewStyle().
			Foreground(Red).
			Bold(true)

	// WarningStyle for warning messages
	WarningStyle = lipgloss.NewStyle().
			Foreground(Amber)

	// InfoStyle for informational messages
	InfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E5E7EB"))

	// DimStyle for less important text
	DimStyle = lipgloss.NewStyle().
			Foreground(DimGray)

	// AccentStyle for highlighted inline elements
	AccentStyle = lipgloss.NewStyle().
			Foreground(Indigo).
			Bold(true)

	// LinkStyle for URLs
	LinkStyle = lipgloss.NewStyle().
			Foreground(Indigo).
			Underline(true)

	// CodeStyle for inline code
	CodeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F3F4F6")).
			Background(lipgloss.Color("#374151")).
			Padding(0, 1)
)

// Box styles.
var (
	// BoxStyle for content boxes
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Indigo).
			Padding(0, 1)

	// BoxTitleStyle for box titles
	BoxTitleStyle = lipgloss.NewStyle().
			Foreground(Indigo).
			Bold(true)

	// ResultBoxReadyStyle for healthy bridge summaries
	ResultBoxReadyStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(Green).
				Padding(0, 1)

	// ResultBoxFailedStyle for failed bridge summaries
	ResultBoxFailedStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(Red).
				Padding(0, 1)
)

// Table styles.
var (
	// TableHeaderStyle for table headers
	TableHeaderStyle = lipgloss.NewStyle().
				Foreground(DimGray).
				Bold(true).
				Padding(0, 2)

	// TableCellStyle for table cells
	TableCellStyle = lipgloss.NewStyle().
			Padding(0, 2)

	// TableRowStyle for alternating rows
	TableRowStyle = lipgloss.NewStyle()
)

// Status indicator styles.
var (
	// StatusReadyStyle for a ready dev server
	StatusReadyStyle = lipgloss.NewStyle().
				Foreground(Green)

	// StatusCrashedStyle for a crashed dev server
	StatusCrashedStyle = lipgloss.NewStyle().
				Foreground(Red)

	// StatusRunningStyle for in-progress states
	StatusRunningStyle = lipgloss.NewStyle().
				Foreground(Teal)

	// StatusStartingStyle for a starting dev server
	StatusStartingStyle = lipgloss.NewStyle().
				Foreground(Amber)

	// StatusStoppedStyle for a deliberately stopped dev server
	StatusStoppedStyle = lipgloss.NewStyle().
				Foreground(DimGray)
)

// SpinnerStyle for the animated spinner frame.
var SpinnerStyle = lipgloss.NewStyle().
	Foreground(Teal)

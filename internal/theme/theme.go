// Package theme provides the Lip Gloss color palette and reusable styles
// for the mindmark TUI. It is a leaf package with no internal imports
// to avoid import cycles.
package theme

import "github.com/charmbracelet/lipgloss"

// Banner colors.
var (
	ColorSuccess = lipgloss.Color("#16a34a")
	ColorError   = lipgloss.Color("#dc2626")
	ColorInfo    = lipgloss.Color("#2563eb")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorAccent  = lipgloss.Color("#a855f7")
	ColorWarning = lipgloss.Color("#d97706")
)

// Common styles.
var (
	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
			Foreground(ColorDimmed)

	StyleAccent = lipgloss.NewStyle().
			Foreground(ColorAccent)

	StyleKey = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StylePanel = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1)

	StyleDialog = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorAccent).
			Padding(0, 1)

	StyleSuccess = lipgloss.NewStyle().Foreground(ColorSuccess)
	StyleError   = lipgloss.NewStyle().Foreground(ColorError)
	StyleInfo    = lipgloss.NewStyle().Foreground(ColorInfo)
)

// BannerColor returns the color for a banner kind name ("error",
// "success" or anything else for informational).
func BannerColor(kind string) lipgloss.Color {
	switch kind {
	case "error":
		return ColorError
	case "success":
		return ColorSuccess
	default:
		return ColorInfo
	}
}

// BannerGlyph returns the prefix glyph for a banner kind name.
func BannerGlyph(kind string) string {
	switch kind {
	case "error":
		return "✗"
	case "success":
		return "✓"
	default:
		return "●"
	}
}

// Package theme holds the lipgloss styles used by terminal output.
package theme

import "github.com/charmbracelet/lipgloss"

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorOrange  = lipgloss.AdaptiveColor{Dark: "#FFA94D", Light: "#C05621"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorBorder  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for section headers such as an issue key line.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// MetaStyle renders timestamps and authors.
var MetaStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// BodyStyle indents the body of an activity entry.
var BodyStyle = lipgloss.NewStyle().
	PaddingLeft(2)

// BorderStyle provides a standard rounded border for panels.
var BorderStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder).
	Padding(0, 1)

// PanelStyle returns a color-coded label style for an activity panel.
func PanelStyle(panel string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch panel {
	case "comment":
		return base.Foreground(ColorBlue)
	case "worklog":
		return base.Foreground(ColorGreen)
	case "history":
		return base.Foreground(ColorMagenta)
	case "links":
		return base.Foreground(ColorOrange)
	default:
		return base.Foreground(ColorGray)
	}
}

// VersionStyle returns a style reflecting a version's release state.
func VersionStyle(released, archived bool) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)

	switch {
	case archived:
		return base.Foreground(ColorGray)
	case released:
		return base.Foreground(ColorGreen)
	default:
		return base.Foreground(ColorYellow)
	}
}

// StatusStyle returns a color-coded style for the given issue status.
func StatusStyle(status string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)

	switch status {
	case "open":
		return base.Foreground(ColorBlue)
	case "in_progress":
		return base.Foreground(ColorYellow)
	case "review":
		return base.Foreground(ColorMagenta)
	case "done":
		return base.Foreground(ColorGreen)
	default:
		return base.Foreground(ColorGray)
	}
}

// WarningStyle renders license and other administrative warnings.
var WarningStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorRed)

package ui

import "github.com/charmbracelet/lipgloss"

var (
	baseStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			MarginLeft(2)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Bold(true).
			Padding(0, 1).
			Align(lipgloss.Center)

	subHeaderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Align(lipgloss.Center)

	keyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")).
			Bold(true)

	descStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	footerStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1).
			Align(lipgloss.Center)

	messageStyle = lipgloss.NewStyle().
			MarginLeft(2).
			Foreground(lipgloss.Color("205")).
			Bold(true)
)

// statusColors maps operation statuses and event steps to terminal colors.
var statusColors = map[string]string{
	"completed": "42",
	"done":      "42",
	"degraded":  "220",
	"rejected":  "208",
	"failed":    "160",
}

func statusStyle(status string) lipgloss.Style {
	color, ok := statusColors[status]
	if !ok {
		color = "245"
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Bold(true)
}

func helpLine(pairs ...[2]string) string {
	sep := lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Render(" • ")
	out := ""
	for i, p := range pairs {
		if i > 0 {
			out += sep
		}
		out += keyStyle.Render(p[0]) + descStyle.Render(": "+p[1])
	}
	return out
}

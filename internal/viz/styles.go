package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/cstrsim/internal/reactor"
)

type styles struct {
	header  lipgloss.Style
	panel   lipgloss.Style
	label   lipgloss.Style
	value   lipgloss.Style
	running lipgloss.Style
	paused  lipgloss.Style
	halted  lipgloss.Style
	graph   lipgloss.Style
	help    lipgloss.Style
}

// currentStyles derives the view styles from CurrentTheme.
func currentStyles() styles {
	t := CurrentTheme
	return styles{
		header: lipgloss.NewStyle().
			Bold(true).
			Foreground(t.Primary).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(t.Muted),
		panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Muted).
			Padding(0, 2),
		label:   lipgloss.NewStyle().Foreground(t.Muted).Width(10),
		value:   lipgloss.NewStyle().Foreground(t.Text).Bold(true),
		running: lipgloss.NewStyle().Bold(true).Foreground(t.Success),
		paused:  lipgloss.NewStyle().Bold(true).Foreground(t.Warning),
		halted:  lipgloss.NewStyle().Bold(true).Foreground(t.Error),
		graph:   lipgloss.NewStyle().Foreground(t.Accent).Padding(1, 0),
		help:    lipgloss.NewStyle().Foreground(t.Muted).Italic(true).MarginTop(1),
	}
}

// ProgressBar renders the fraction of the episode completed.
func ProgressBar(percent float64, width int) string {
	filled := int(percent * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return lipgloss.NewStyle().Foreground(CurrentTheme.Primary).Render(bar)
}

// ActionSparkline renders coolant adjustments as a sparkline scaled to the
// actuator limit, so equal heights mean equal adjustments across episodes.
func ActionSparkline(actions []float64, width int) string {
	if len(actions) == 0 {
		return strings.Repeat("─", width)
	}
	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}
	if len(actions) > width {
		actions = actions[len(actions)-width:]
	}

	var b strings.Builder
	for _, a := range actions {
		norm := (a + reactor.MaxCoolantDelta) / (2 * reactor.MaxCoolantDelta)
		idx := int(norm * float64(len(chars)-1))
		if idx >= len(chars) {
			idx = len(chars) - 1
		}
		if idx < 0 {
			idx = 0
		}
		style := lipgloss.NewStyle().Foreground(CurrentTheme.Success)
		switch {
		case a > 0.5*reactor.MaxCoolantDelta:
			style = style.Foreground(CurrentTheme.Error)
		case a < -0.5*reactor.MaxCoolantDelta:
			style = style.Foreground(CurrentTheme.Primary)
		}
		b.WriteString(style.Render(string(chars[idx])))
	}
	return b.String()
}

package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/xoelrdgz/idsreplay/pkg/sanitize"
)

// ClassEntry counts how often the model predicted one label, and how many
// of those predictions agreed with the row's own label.
type ClassEntry struct {
	Label    string
	Count    int
	Correct  int
	LastSeen string
}

type ClassBreakdown struct {
	Classes      []ClassEntry
	Width        int
	VisibleCount int
}

func NewClassBreakdown(width int) *ClassBreakdown {
	return &ClassBreakdown{Width: width, VisibleCount: 25}
}

func (v *ClassBreakdown) Update(classes []ClassEntry) { v.Classes = classes }

func (v *ClassBreakdown) Total() int {
	total := 0
	for _, c := range v.Classes {
		total += c.Count
	}
	return total
}

func (v *ClassBreakdown) Render() string {
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff41"))
	greenDim := lipgloss.NewStyle().Foreground(lipgloss.Color("#00aa2a"))
	amber := lipgloss.NewStyle().Foreground(lipgloss.Color("#ffb000"))
	red := lipgloss.NewStyle().Foreground(lipgloss.Color("#ff3333"))
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("#404040"))
	muted := lipgloss.NewStyle().Foreground(lipgloss.Color("#707070"))

	if len(v.Classes) == 0 {
		return dim.Italic(true).Render("  No predictions yet")
	}

	var lines []string
	lines = append(lines, muted.Bold(true).Render(fmt.Sprintf(" %-3s %-16s %-20s %-7s %-10s",
		"#", "CLASS", "SHARE", "HIT%", "LAST")))
	lines = append(lines, dim.Render(strings.Repeat("─", max(v.Width, 10))))

	total := v.Total()
	visible := v.Classes
	if len(visible) > v.VisibleCount {
		visible = visible[:v.VisibleCount]
	}

	const barWidth = 12
	for i, c := range visible {
		share := float64(c.Count) / float64(total)
		fill := int(share * barWidth)
		if fill > barWidth {
			fill = barWidth
		}
		bar := strings.Repeat("█", fill) + strings.Repeat("░", barWidth-fill)

		style := greenDim
		if c.Label != "normal" {
			style = amber
		}

		hit := float64(c.Correct) / float64(c.Count) * 100
		hitStyle := green
		if hit < 50 {
			hitStyle = red.Bold(true)
		} else if hit < 80 {
			hitStyle = amber
		}

		lines = append(lines, fmt.Sprintf(" %s %s %s %s %s",
			muted.Render(fmt.Sprintf("%2d.", i+1)),
			style.Render(padRight(sanitize.String(c.Label, 16), 16)),
			style.Render(fmt.Sprintf("%s %6s", bar, fmtLarge(int64(c.Count)))),
			hitStyle.Render(fmt.Sprintf("%6.1f", hit)),
			muted.Render(padRight(c.LastSeen, 10)),
		))
	}

	for i := len(lines); i < v.VisibleCount+2; i++ {
		lines = append(lines, "")
	}
	if len(v.Classes) > v.VisibleCount {
		lines = append(lines, dim.Render(fmt.Sprintf("  [showing %d of %d classes]", v.VisibleCount, len(v.Classes))))
	}

	return strings.Join(lines, "\n")
}

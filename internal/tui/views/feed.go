package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/xoelrdgz/idsreplay/internal/domain"
	"github.com/xoelrdgz/idsreplay/pkg/sanitize"
)

// ObservationList is the scrolling live feed, newest first.
type ObservationList struct {
	Observations  []domain.Observation
	MaxItems      int
	VisibleCount  int
	ScrollPos     int
	Width         int
	SelectedIndex int
}

func NewObservationList(maxItems, visibleCount int) *ObservationList {
	return &ObservationList{
		Observations:  make([]domain.Observation, 0, maxItems),
		MaxItems:      maxItems,
		VisibleCount:  visibleCount,
		Width:         100,
		SelectedIndex: -1,
	}
}

// Update replaces the list. A selection that was pinned to the newest entry
// follows new arrivals; any other selection keeps pointing at the same
// observation.
func (l *ObservationList) Update(obs []domain.Observation) {
	followTail := l.SelectedIndex < 0 || l.SelectedIndex == len(l.Observations)-1
	var selectedSeq int64 = -1
	if !followTail {
		selectedSeq = l.Observations[l.SelectedIndex].Seq
	}

	l.Observations = obs
	if len(obs) == 0 {
		l.SelectedIndex = -1
		return
	}
	if followTail {
		l.SelectedIndex = len(obs) - 1
		return
	}
	l.SelectedIndex = 0
	for i := range obs {
		if obs[i].Seq == selectedSeq {
			l.SelectedIndex = i
			break
		}
	}
	l.ensureSelectionVisible()
}

// ScrollUp moves toward newer rows, which render at the top.
func (l *ObservationList) ScrollUp() {
	if l.SelectedIndex < len(l.Observations)-1 {
		l.SelectedIndex++
	}
	l.ensureSelectionVisible()
}

func (l *ObservationList) ScrollDown() {
	if l.SelectedIndex > 0 {
		l.SelectedIndex--
	}
	l.ensureSelectionVisible()
}

func (l *ObservationList) ensureSelectionVisible() {
	n := len(l.Observations)
	if n <= l.VisibleCount {
		l.ScrollPos = 0
		return
	}

	startIdx, endIdx := l.window()
	if l.SelectedIndex < startIdx {
		l.ScrollPos = n - l.VisibleCount - l.SelectedIndex
	}
	if l.SelectedIndex >= endIdx {
		l.ScrollPos = n - 1 - l.SelectedIndex
	}

	maxScroll := n - l.VisibleCount
	if l.ScrollPos < 0 {
		l.ScrollPos = 0
	}
	if l.ScrollPos > maxScroll {
		l.ScrollPos = maxScroll
	}
}

func (l *ObservationList) window() (int, int) {
	n := len(l.Observations)
	if n <= l.VisibleCount {
		return 0, n
	}
	startIdx := n - l.VisibleCount - l.ScrollPos
	if startIdx < 0 {
		startIdx = 0
	}
	endIdx := startIdx + l.VisibleCount
	if endIdx > n {
		endIdx = n
	}
	return startIdx, endIdx
}

func (l *ObservationList) GetSelected() *domain.Observation {
	if l.SelectedIndex >= 0 && l.SelectedIndex < len(l.Observations) {
		obs := l.Observations[l.SelectedIndex]
		return &obs
	}
	return nil
}

func (l *ObservationList) Render() string {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("#404040"))
	muted := lipgloss.NewStyle().Foreground(lipgloss.Color("#707070"))
	text := lipgloss.NewStyle().Foreground(lipgloss.Color("#e5e5e5"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff41"))
	amber := lipgloss.NewStyle().Foreground(lipgloss.Color("#ffb000"))
	red := lipgloss.NewStyle().Foreground(lipgloss.Color("#ff3333"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("#00b8ff"))
	selected := lipgloss.NewStyle().Background(lipgloss.Color("#003300")).Foreground(lipgloss.Color("#00ff41"))

	if len(l.Observations) == 0 {
		return dim.Italic(true).Render("  Waiting for the first row")
	}

	var lines []string
	lines = append(lines, muted.Bold(true).Render(
		fmt.Sprintf("  %-8s  %-6s %-5s %-10s %-6s %9s %9s  %-12s %-12s %s %6s",
			"TIME", "MODE", "PROTO", "SERVICE", "FLAG", "SRC", "DST", "ACTUAL", "PRED", " ", "LAT")))
	lines = append(lines, dim.Render("  "+strings.Repeat("─", max(l.Width-4, 10))))

	startIdx, endIdx := l.window()
	for i := endIdx - 1; i >= startIdx; i-- {
		o := &l.Observations[i]
		isSelected := i == l.SelectedIndex
		prefix := "  "
		if isSelected {
			prefix = "▶ "
		}

		timeStr := dim.Render(o.At.Format("15:04:05"))
		if isSelected {
			timeStr = selected.Render(o.At.Format("15:04:05"))
		}

		cell := func(name string, width int) string {
			return padRight(sanitize.Value(o.Row[name], width), width)
		}

		var verdict, pred string
		switch {
		case o.Err != "":
			verdict = red.Bold(true).Render("!")
			pred = red.Render(padRight(sanitize.String(o.Err, 12), 12))
		case o.Actual == "":
			verdict = dim.Render("?")
			pred = cyan.Render(padRight(sanitize.String(o.Predicted, 12), 12))
		case o.Match():
			verdict = green.Bold(true).Render("✓")
			pred = green.Render(padRight(sanitize.String(o.Predicted, 12), 12))
		default:
			verdict = red.Bold(true).Render("✗")
			pred = amber.Bold(true).Render(padRight(sanitize.String(o.Predicted, 12), 12))
		}

		line := fmt.Sprintf("%s%s  %s %s %s %s %s %s  %s %s %s %s",
			prefix,
			timeStr,
			muted.Render(padRight(o.Mode.String(), 6)),
			text.Render(cell("protocol_type", 5)),
			text.Render(cell("service", 10)),
			text.Render(cell("flag", 6)),
			muted.Render(fmt.Sprintf("%9s", sanitize.Value(o.Row["src_bytes"], 9))),
			muted.Render(fmt.Sprintf("%9s", sanitize.Value(o.Row["dst_bytes"], 9))),
			text.Render(padRight(sanitize.String(o.Actual, 12), 12)),
			pred,
			verdict,
			dim.Render(fmt.Sprintf("%6s", fmtLatency(o.Latency))),
		)
		lines = append(lines, line)
	}

	if len(l.Observations) > l.VisibleCount {
		lines = append(lines, dim.Render(fmt.Sprintf("  [%d-%d of %d]",
			l.ScrollPos+1, min(l.ScrollPos+l.VisibleCount, len(l.Observations)), len(l.Observations))))
	}

	return strings.Join(lines, "\n")
}

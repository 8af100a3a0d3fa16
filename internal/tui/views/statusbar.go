package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/xoelrdgz/idsreplay/internal/domain"
)

// Stats is the running tally shown in the status bar.
type Stats struct {
	Mode        domain.Category
	Polls       int64
	Labelled    int64
	Matches     int64
	Errors      int64
	LastLatency time.Duration
	LastError   string
}

// MatchRate is the share of labelled observations the model got right, in
// percent.
func (s Stats) MatchRate() float64 {
	if s.Labelled == 0 {
		return 0
	}
	return float64(s.Matches) / float64(s.Labelled) * 100
}

type Status struct {
	Width      int
	Stats      Stats
	StartTime  time.Time
	lastUpdate time.Time
	lastPolls  int64
}

func NewStatus(width int) *Status {
	return &Status{Width: width, StartTime: time.Now()}
}

func (s *Status) Update(stats Stats) {
	if stats.Polls != s.lastPolls {
		s.lastUpdate = time.Now()
		s.lastPolls = stats.Polls
	}
	s.Stats = stats
}

func (s *Status) Render() string {
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff41"))
	greenDim := lipgloss.NewStyle().Foreground(lipgloss.Color("#00aa2a"))
	amber := lipgloss.NewStyle().Foreground(lipgloss.Color("#ffb000"))
	red := lipgloss.NewStyle().Foreground(lipgloss.Color("#ff3333"))
	muted := lipgloss.NewStyle().Foreground(lipgloss.Color("#707070"))
	border := lipgloss.NewStyle().Foreground(lipgloss.Color("#2a2a2a"))

	hb := s.heartbeat(green, greenDim, amber, red)

	rate := s.Stats.MatchRate()
	match := green
	switch {
	case s.Stats.Labelled == 0:
		match = muted
	case rate < 50:
		match = red.Bold(true)
	case rate < 80:
		match = amber.Bold(true)
	}

	errs := green
	if s.Stats.Errors > 10 {
		errs = red.Bold(true)
	} else if s.Stats.Errors > 0 {
		errs = amber.Bold(true)
	}

	lat := green
	if s.Stats.LastLatency > 500*time.Millisecond {
		lat = red.Bold(true)
	} else if s.Stats.LastLatency > 100*time.Millisecond {
		lat = amber.Bold(true)
	}

	mode := s.Stats.Mode
	if mode == "" {
		mode = domain.DefaultCategory
	}

	uptime := time.Since(s.StartTime).Round(time.Second)
	sep := border.Render(" │ ")

	items := []string{
		hb,
		muted.Render("MODE:") + " " + green.Render(mode.String()),
		muted.Render("POLLS:") + " " + green.Render(fmtLarge(s.Stats.Polls)),
		muted.Render("MATCH:") + " " + match.Render(fmt.Sprintf("%.1f%%", rate)),
		muted.Render("ERRS:") + " " + errs.Render(fmtLarge(s.Stats.Errors)),
		muted.Render("LAT:") + " " + lat.Render(fmtLatency(s.Stats.LastLatency)),
		muted.Render("UP:") + " " + green.Render(fmtUptime(uptime)),
	}

	line := ""
	for i, item := range items {
		if i > 0 {
			line += sep
		}
		line += item
	}

	return lipgloss.NewStyle().
		Width(s.Width).
		Padding(0, 1).
		Background(lipgloss.Color("#0a0a0a")).
		Render(line)
}

func (s *Status) heartbeat(active, dim, warn, crit lipgloss.Style) string {
	elapsed := time.Since(s.lastUpdate)
	var icon string
	var style lipgloss.Style

	switch {
	case elapsed < 1500*time.Millisecond:
		icon, style = "●", active.Bold(true)
	case elapsed < 3*time.Second:
		icon, style = "●", dim
	case elapsed < 10*time.Second:
		icon, style = "○", warn
	default:
		icon, style = "○", crit
	}

	return lipgloss.NewStyle().Foreground(lipgloss.Color("#707070")).Render("FEED:") + " " + style.Render(icon)
}

func fmtLarge(n int64) string {
	if n >= 1000000 {
		return fmt.Sprintf("%.1fM", float64(n)/1000000)
	}
	if n >= 1000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	}
	return fmt.Sprintf("%d", n)
}

func fmtLatency(d time.Duration) string {
	switch {
	case d <= 0:
		return "-"
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	default:
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
}

func fmtUptime(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm", h, m)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

func padRight(s string, length int) string {
	r := []rune(s)
	if len(r) >= length {
		return string(r[:length])
	}
	return s + strings.Repeat(" ", length-len(r))
}

package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	sparkColorPrimary = lipgloss.Color("#00ff41")
	sparkColorAmber   = lipgloss.Color("#ffb000")
	sparkColorRed     = lipgloss.Color("#ff3333")
	sparkColorDim     = lipgloss.Color("#404040")
	sparkColorGhost   = lipgloss.Color("#252525")
)

var signalChars = []rune{'⎽', '⎼', '─', '⎻', '⎺'}

var barChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Trend draws a fixed-width history of a 0-100 percentage. Lower values
// are worse, so the trace turns amber then red as it drops.
type Trend struct {
	Data        []float64
	Width       int
	Unit        string
	OscilloMode bool
	samples     int
}

func NewTrend(width int, unit string) *Trend {
	if width <= 0 {
		width = 60
	}
	return &Trend{
		Data:        make([]float64, width),
		Width:       width,
		Unit:        unit,
		OscilloMode: true,
	}
}

func (t *Trend) Update(value float64) {
	t.Data = append(t.Data[1:], value)
	t.samples++
}

func (t *Trend) Current() float64 {
	if len(t.Data) == 0 {
		return 0
	}
	return t.Data[len(t.Data)-1]
}

func (t *Trend) SetWidth(width int) {
	if width <= 0 || width == t.Width {
		return
	}
	old := t.Data
	t.Width = width
	t.Data = make([]float64, width)
	if len(old) > 0 {
		start := 0
		if len(old) > width {
			start = len(old) - width
		}
		copy(t.Data[width-len(old[start:]):], old[start:])
	}
}

func (t *Trend) Render() string {
	if t.OscilloMode {
		return t.render(signalChars, true)
	}
	return t.render(barChars, false)
}

func (t *Trend) color() lipgloss.Style {
	current := t.Current()
	switch {
	case current < 50:
		return lipgloss.NewStyle().Foreground(sparkColorRed)
	case current < 80:
		return lipgloss.NewStyle().Foreground(sparkColorAmber)
	default:
		return lipgloss.NewStyle().Foreground(sparkColorPrimary)
	}
}

func (t *Trend) render(chars []rune, gridlines bool) string {
	dim := lipgloss.NewStyle().Foreground(sparkColorDim)
	ghost := lipgloss.NewStyle().Foreground(sparkColorGhost)
	color := t.color()

	data := t.Data
	if len(data) > t.Width {
		data = data[len(data)-t.Width:]
	}
	// Slots that have never been written stay dim so a cold start does not
	// read as 0%.
	unwritten := len(data) - t.samples

	var trace strings.Builder
	trace.WriteString(" ")
	for i, v := range data {
		if gridlines && i > 0 && i%10 == 0 {
			trace.WriteString(ghost.Render("│"))
			continue
		}
		level := int(v / 100 * float64(len(chars)-1))
		if level < 0 {
			level = 0
		}
		if level >= len(chars) {
			level = len(chars) - 1
		}
		if i < unwritten {
			trace.WriteString(dim.Render(string(chars[0])))
		} else {
			trace.WriteString(color.Render(string(chars[level])))
		}
	}

	if t.samples == 0 {
		trace.WriteString(dim.Render(" ▶ --"))
	} else {
		trace.WriteString(color.Bold(true).Render(fmt.Sprintf(" ▶ %.0f%s", t.Current(), t.Unit)))
	}
	return trace.String()
}

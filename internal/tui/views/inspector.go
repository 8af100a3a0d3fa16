package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/xoelrdgz/idsreplay/internal/domain"
	"github.com/xoelrdgz/idsreplay/pkg/sanitize"
)

var (
	inspColorPrimary = lipgloss.Color("#00ff41")
	inspColorAmber   = lipgloss.Color("#ffb000")
	inspColorRed     = lipgloss.Color("#ff3333")
	inspColorCyan    = lipgloss.Color("#00b8ff")
	inspColorText    = lipgloss.Color("#e5e5e5")
	inspColorDim     = lipgloss.Color("#404040")
	inspColorBorder  = lipgloss.Color("#00ff41")
)

// RowInspector is a full-screen view of one observation and every feature
// of its row.
type RowInspector struct {
	Observation *domain.Observation
	Width       int
	Height      int
	ScrollY     int
	Visible     bool
}

func NewRowInspector() *RowInspector {
	return &RowInspector{
		Width:  80,
		Height: 24,
	}
}

func (p *RowInspector) SetObservation(obs *domain.Observation) {
	p.Observation = obs
	p.ScrollY = 0
	p.Visible = obs != nil
}

func (p *RowInspector) SetDimensions(width, height int) {
	p.Width = width
	p.Height = height
}

func (p *RowInspector) ScrollUp() {
	if p.ScrollY > 0 {
		p.ScrollY--
	}
}

func (p *RowInspector) ScrollDown() {
	p.ScrollY++
}

func (p *RowInspector) Close() {
	p.Observation = nil
	p.Visible = false
}

// Lines returns the unboxed, unscrolled content.
func (p *RowInspector) Lines() []string {
	if p.Observation == nil {
		return nil
	}
	o := p.Observation
	contentWidth := max(p.Width-4, 20)

	header := lipgloss.NewStyle().Foreground(inspColorPrimary).Bold(true)
	label := lipgloss.NewStyle().Foreground(inspColorAmber).Width(12)
	value := lipgloss.NewStyle().Foreground(inspColorText)
	dimText := lipgloss.NewStyle().Foreground(inspColorDim)
	cyan := lipgloss.NewStyle().Foreground(inspColorCyan)
	critical := lipgloss.NewStyle().Foreground(inspColorRed).Bold(true)
	feature := lipgloss.NewStyle().Foreground(inspColorCyan).Width(28)

	var lines []string
	lines = append(lines, header.Render("╔═══ ROW INSPECTOR ═══╗"))
	lines = append(lines, dimText.Render(strings.Repeat("─", contentWidth)))

	lines = append(lines, header.Render("▶ OBSERVATION"))
	lines = append(lines, fmt.Sprintf("%s %d", label.Render("Sequence:"), o.Seq))
	lines = append(lines, fmt.Sprintf("%s %s",
		label.Render("Polled:"), value.Render(o.At.Format("2006-01-02 15:04:05.000"))))
	lines = append(lines, fmt.Sprintf("%s %s", label.Render("Mode:"), value.Render(o.Mode.String())))
	actual := o.Actual
	if actual == "" {
		actual = "(unlabelled)"
	}
	lines = append(lines, fmt.Sprintf("%s %s", label.Render("Actual:"), value.Render(sanitize.String(actual, 64))))

	switch {
	case o.Err != "":
		lines = append(lines, fmt.Sprintf("%s %s", label.Render("Error:"), critical.Render(sanitize.String(o.Err, contentWidth-13))))
	case o.Actual != "" && !o.Match():
		lines = append(lines, fmt.Sprintf("%s %s", label.Render("Predicted:"), critical.Render(sanitize.String(o.Predicted, 64)+"  ✗")))
	default:
		lines = append(lines, fmt.Sprintf("%s %s", label.Render("Predicted:"), cyan.Render(sanitize.String(o.Predicted, 64))))
	}
	lines = append(lines, fmt.Sprintf("%s %s", label.Render("Latency:"), value.Render(fmtLatency(o.Latency))))

	lines = append(lines, "")
	lines = append(lines, dimText.Render(strings.Repeat("─", contentWidth)))
	lines = append(lines, header.Render(fmt.Sprintf("▶ FEATURES (%d)", domain.FeatureCount)))
	for _, name := range domain.FeatureColumns {
		v, ok := o.Row[name]
		rendered := value.Render(sanitize.Value(v, contentWidth-30))
		if !ok {
			rendered = critical.Render("missing")
		} else if domain.IsCategorical(name) {
			rendered = cyan.Render(sanitize.Value(v, contentWidth-30))
		}
		lines = append(lines, feature.Render(name)+" "+rendered)
	}

	lines = append(lines, "")
	lines = append(lines, dimText.Render(strings.Repeat("─", contentWidth)))
	lines = append(lines, dimText.Render("[ESC] Close   [↑/↓] Scroll"))
	return lines
}

func (p *RowInspector) Render() string {
	lines := p.Lines()
	if lines == nil {
		return ""
	}
	if p.ScrollY > 0 && p.ScrollY < len(lines) {
		lines = lines[p.ScrollY:]
	}
	if len(lines) > p.Height-2 && p.Height > 2 {
		lines = lines[:p.Height-2]
	}

	return lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(inspColorBorder).
		Padding(0, 1).
		Width(p.Width).
		Height(p.Height).
		Render(strings.Join(lines, "\n"))
}

package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/xoelrdgz/idsreplay/internal/domain"
)

var (
	ColorPrimary    = lipgloss.Color("#00ff41")
	ColorPrimaryDim = lipgloss.Color("#00aa2a")
	ColorAmber      = lipgloss.Color("#ffb000")
	ColorRed        = lipgloss.Color("#ff3333")
	ColorMuted      = lipgloss.Color("#707070")
	ColorDim        = lipgloss.Color("#404040")
)

var (
	TextPrimary = lipgloss.NewStyle().Foreground(ColorPrimary)
	TextMuted   = lipgloss.NewStyle().Foreground(ColorMuted)
	TextDim     = lipgloss.NewStyle().Foreground(ColorDim)
)

var (
	LevelCritical = lipgloss.NewStyle().
			Foreground(ColorRed).
			Bold(true)
	LevelWarning = lipgloss.NewStyle().
			Foreground(ColorAmber).
			Bold(true)
)

var LogoSmall = TextPrimary.Render(`▄▄▄▄▄▄▄▄▄▄▄▄▄▄▄▄▄▄▄▄▄▄▄▄▄▄▄▄▄▄▄▄▄▄▄▄▄▄▄▄▄▄▄▄
█  ╦╔╦╗╔═╗╦═╗╔═╗╔═╗╦  ╔═╗╦ ╦  │ NSL-KDD  █
█  ║ ║║╚═╗╠╦╝║╣ ╠═╝║  ╠═╣╚╦╝  │ REPLAY   █
█  ╩═╩╝╚═╝╩╚═╚═╝╩  ╩═╝╩ ╩ ╩   │ v1.0     █
▀▀▀▀▀▀▀▀▀▀▀▀▀▀▀▀▀▀▀▀▀▀▀▀▀▀▀▀▀▀▀▀▀▀▀▀▀▀▀▀▀▀▀▀`)

// ForCategory colors an attack mode by how hostile the traffic is.
func ForCategory(c domain.Category) lipgloss.Style {
	switch c {
	case domain.CategoryDoS, domain.CategoryU2R:
		return LevelCritical
	case domain.CategoryProbe, domain.CategoryR2L:
		return LevelWarning
	default:
		return TextPrimary.Bold(true)
	}
}

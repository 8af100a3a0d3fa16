package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/xoelrdgz/idsreplay/internal/domain"
	"github.com/xoelrdgz/idsreplay/internal/tui/views"
	"github.com/xoelrdgz/idsreplay/pkg/sanitize"
)

const (
	maxObservationsPerTick = 50
	uiTickInterval         = 100 * time.Millisecond
	modeSwitchTimeout      = 3 * time.Second
)

// ModeSwitcher changes the server's attack mode.
type ModeSwitcher interface {
	SetAttackMode(ctx context.Context, mode string) (domain.Category, error)
}

type App struct {
	model     *Model
	accuracy  *views.Trend
	feed      *views.ObservationList
	classes   *views.ClassBreakdown
	status    *views.Status
	inspector *views.RowInspector

	switcher ModeSwitcher

	ready    bool
	quitting bool
	width    int
	height   int
	flash    string

	obsBuffer    []domain.Observation
	obsBufferMu  sync.Mutex
	droppedObs   int64
	maxObsBuffer int

	server    string
	startTime time.Time
}

func NewApp(switcher ModeSwitcher) *App {
	return &App{
		model:        NewModel(),
		accuracy:     views.NewTrend(80, "%"),
		feed:         views.NewObservationList(200, 15),
		classes:      views.NewClassBreakdown(100),
		status:       views.NewStatus(100),
		inspector:    views.NewRowInspector(),
		switcher:     switcher,
		obsBuffer:    make([]domain.Observation, 0, 100),
		maxObsBuffer: 500,
		server:       "localhost",
		startTime:    time.Now(),
	}
}

func (a *App) SetServer(server string) { a.server = server }

func (a *App) SetSwitcher(switcher ModeSwitcher) { a.switcher = switcher }

type tickMsg time.Time

type modeMsg struct {
	mode domain.Category
	err  error
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(tea.EnterAltScreen, a.tick())
}

func (a *App) tick() tea.Cmd {
	return tea.Tick(uiTickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// switchMode runs the HTTP call off the UI goroutine.
func (a *App) switchMode(mode string) tea.Cmd {
	if a.switcher == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), modeSwitchTimeout)
		defer cancel()
		c, err := a.switcher.SetAttackMode(ctx, mode)
		return modeMsg{mode: c, err: err}
	}
}

var modeKeys = map[string]domain.Category{
	"1": domain.CategoryNormal,
	"2": domain.CategoryDoS,
	"3": domain.CategoryProbe,
	"4": domain.CategoryR2L,
	"5": domain.CategoryU2R,
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if a.inspector.Visible {
			switch msg.String() {
			case "esc", "q":
				a.inspector.Close()
				return a, nil
			case "up", "k":
				a.inspector.ScrollUp()
			case "down", "j":
				a.inspector.ScrollDown()
			}
			return a, nil
		}

		if c, ok := modeKeys[msg.String()]; ok {
			a.flash = "switching to " + c.String() + "..."
			return a, a.switchMode(c.String())
		}

		switch msg.String() {
		case "q", "ctrl+c":
			a.quitting = true
			return a, tea.Quit
		case "tab":
			a.model.NextView()
		case "up", "k":
			a.feed.ScrollUp()
		case "down", "j":
			a.feed.ScrollDown()
		case "enter":
			if selected := a.feed.GetSelected(); selected != nil {
				a.inspector.SetObservation(selected)
			}
		}
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		a.ready = true
		a.model.SetDimensions(msg.Width, msg.Height)
		a.feed.Width = msg.Width - 4
		a.classes.Width = msg.Width - 4
		a.status.Width = msg.Width
		a.accuracy.SetWidth(msg.Width - 12)

		contentHeight := msg.Height - 12
		if contentHeight < 5 {
			contentHeight = 5
		}
		a.feed.VisibleCount = contentHeight
		a.classes.VisibleCount = contentHeight

		a.inspector.SetDimensions(msg.Width-4, msg.Height-2)
	case modeMsg:
		if msg.err != nil {
			a.flash = "mode switch failed: " + sanitize.String(msg.err.Error(), 80)
		} else {
			a.flash = "attack mode set to " + msg.mode.String()
			a.model.SetMode(msg.mode)
		}
	case tickMsg:
		a.processBatchedObservations()
		return a, a.tick()
	}
	return a, nil
}

func (a *App) processBatchedObservations() {
	a.obsBufferMu.Lock()
	count := len(a.obsBuffer)
	if count > maxObservationsPerTick {
		count = maxObservationsPerTick
	}
	batch := make([]domain.Observation, count)
	copy(batch, a.obsBuffer[:count])
	a.obsBuffer = a.obsBuffer[count:]
	a.obsBufferMu.Unlock()

	for _, obs := range batch {
		a.model.AddObservation(obs)
	}
	if count > 0 {
		acc := a.model.GetAccuracy()
		a.accuracy.Update(acc[len(acc)-1])
		a.feed.Update(a.model.GetObservations())
		a.classes.Update(a.model.GetClasses())
	}
	a.status.Update(a.model.Stats())
}

func (a *App) View() string {
	if a.quitting {
		return "\n  Session terminated.\n\n"
	}
	if !a.ready {
		return "\n" + LogoSmall + "\n\n  " + TextMuted.Render("Connecting to "+sanitize.String(a.server, 60)+"...") + "\n\n"
	}

	if a.inspector.Visible {
		return a.inspector.Render()
	}

	dim := TextDim
	muted := TextMuted

	var b strings.Builder

	b.WriteString(a.renderHeader())
	b.WriteString("\n")
	b.WriteString(dim.Render(strings.Repeat("─", a.width)))
	b.WriteString("\n")

	b.WriteString(muted.Render("  ACCURACY"))
	b.WriteString(a.accuracy.Render())
	b.WriteString("\n\n")

	viewName := "LIVE FEED"
	content := a.feed.Render()
	if a.model.ActiveView == 1 {
		viewName = "PREDICTED CLASSES"
		content = a.classes.Render()
	}
	b.WriteString(muted.Render("  " + viewName))
	b.WriteString("\n")
	b.WriteString(content)

	b.WriteString("\n\n")
	b.WriteString(a.status.Render())
	b.WriteString("\n")
	b.WriteString(a.renderHelp())

	return b.String()
}

func (a *App) renderHeader() string {
	green := lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)
	dim := lipgloss.NewStyle().Foreground(ColorDim)
	amber := lipgloss.NewStyle().Foreground(ColorAmber)

	stats := a.model.Stats()
	mode := stats.Mode
	if mode == "" {
		mode = domain.DefaultCategory
	}

	header := fmt.Sprintf("  %s  %s %s  %s %s",
		green.Render("IDSREPLAY"),
		dim.Render("MODE:"), ForCategory(mode).Render(strings.ToUpper(mode.String())),
		dim.Render("SRV:"), sanitize.String(a.server, 40))
	if a.flash != "" {
		header += "  " + amber.Render(a.flash)
	}
	return header
}

func (a *App) renderHelp() string {
	dim := lipgloss.NewStyle().Foreground(ColorDim)
	key := lipgloss.NewStyle().Foreground(ColorPrimaryDim)
	names := []string{"FEED", "CLASSES"}
	return dim.Render(fmt.Sprintf("  %s mode  %s [%s]  %s scroll  %s inspect  %s quit",
		key.Render("1-5"), key.Render("TAB"), names[a.model.ActiveView], key.Render("↑↓"), key.Render("ENTER"), key.Render("q")))
}

// OnObservation buffers obs for the next UI tick. Safe for concurrent use.
func (a *App) OnObservation(obs domain.Observation) {
	a.obsBufferMu.Lock()
	defer a.obsBufferMu.Unlock()
	if len(a.obsBuffer) >= a.maxObsBuffer {
		drop := max(a.maxObsBuffer/10, 1)
		a.droppedObs += int64(drop)
		a.obsBuffer = a.obsBuffer[drop:]
	}
	a.obsBuffer = append(a.obsBuffer, obs)
}

func (a *App) GetModel() *Model { return a.model }

func (a *App) DroppedObservations() int64 {
	a.obsBufferMu.Lock()
	defer a.obsBufferMu.Unlock()
	return a.droppedObs
}

func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

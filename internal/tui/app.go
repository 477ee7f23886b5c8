// Package tui renders the StreamPulse dashboard: a loading screen while
// the first fetch runs, then rotating category panes with a stock ticker
// and global stats along the bottom.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ProhibitedTV/StreamPulse/internal/browser"
	"github.com/ProhibitedTV/StreamPulse/internal/config"
	"github.com/ProhibitedTV/StreamPulse/internal/fetch"
	"github.com/ProhibitedTV/StreamPulse/internal/rotation"
)

type phase int

const (
	phaseLoading phase = iota
	phaseDashboard
)

type worldClock struct {
	label string
	loc   *time.Location
}

type App struct {
	cfg    *config.Config
	engine *rotation.Engine

	progressCh <-chan fetch.Progress
	resultCh   <-chan *fetch.ResultSet

	phase      phase
	bar        progress.Model
	percent    int
	message    string
	result     *fetch.ResultSet
	panes      map[string]rotation.Snapshot
	categories []string
	cursor     int
	clocks     []worldClock
	now        time.Time

	width  int
	height int
	err    error
}

// RunOpts holds all parameters for launching the TUI.
type RunOpts struct {
	Cfg      *config.Config
	Engine   *rotation.Engine
	Progress <-chan fetch.Progress
	Results  <-chan *fetch.ResultSet
}

func NewApp(opts RunOpts) *App {
	bar := progress.New(progress.WithDefaultGradient())

	clocks := []worldClock{{label: "Local", loc: time.Local}}
	for _, c := range []struct{ label, zone string }{
		{"NY", "America/New_York"},
		{"London", "Europe/London"},
		{"Tokyo", "Asia/Tokyo"},
	} {
		if loc, err := time.LoadLocation(c.zone); err == nil {
			clocks = append(clocks, worldClock{label: c.label, loc: loc})
		}
	}

	return &App{
		cfg:        opts.Cfg,
		engine:     opts.Engine,
		progressCh: opts.Progress,
		resultCh:   opts.Results,
		bar:        bar,
		message:    "Initializing...",
		panes:      make(map[string]rotation.Snapshot),
		categories: opts.Cfg.CategoryNames(),
		clocks:     clocks,
		now:        time.Now(),
	}
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.waitForProgress(), clockCmd())
}

// waitForProgress relays loading progress; once the progress stream
// closes the orchestrator's result is ready.
func (a *App) waitForProgress() tea.Cmd {
	pc, rc := a.progressCh, a.resultCh
	return func() tea.Msg {
		p, ok := <-pc
		if !ok {
			return loadedMsg{result: <-rc}
		}
		return progressMsg(p)
	}
}

func (a *App) waitForSnapshot() tea.Cmd {
	ch := a.engine.Updates()
	return func() tea.Msg {
		return snapshotMsg(<-ch)
	}
}

func clockCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return clockTickMsg(t)
	})
}

func openBrowserCmd(link string) tea.Cmd {
	return func() tea.Msg {
		if err := browser.Open(link); err != nil {
			return openErrMsg{err: err}
		}
		return nil
	}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.bar.Width = min(msg.Width-8, 60)
		return a, nil

	case tea.KeyMsg:
		a.err = nil
		return a.handleKey(msg)

	case progressMsg:
		a.percent = msg.Percent
		a.message = msg.Message
		return a, a.waitForProgress()

	case loadedMsg:
		a.result = msg.result
		a.phase = phaseDashboard
		a.engine.Load(msg.result.Stories)
		a.engine.Start(context.Background())
		return a, a.waitForSnapshot()

	case snapshotMsg:
		a.panes[msg.Category] = rotation.Snapshot(msg)
		return a, a.waitForSnapshot()

	case clockTickMsg:
		a.now = time.Time(msg)
		return a, clockCmd()

	case openErrMsg:
		a.err = msg.err
		return a, nil
	}

	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		a.engine.Stop()
		return a, tea.Quit
	case "left", "h":
		if a.cursor > 0 {
			a.cursor--
		}
		return a, nil
	case "right", "l":
		if a.cursor < len(a.categories)-1 {
			a.cursor++
		}
		return a, nil
	case "o", "enter":
		if a.phase != phaseDashboard {
			return a, nil
		}
		snap := a.panes[a.categories[a.cursor]]
		if snap.State == rotation.StateRotating && snap.Story.Link != "" {
			return a, openBrowserCmd(snap.Story.Link)
		}
		return a, nil
	}
	return a, nil
}

func (a *App) View() string {
	if a.width == 0 {
		return lipgloss.NewStyle().Foreground(colorAccent).Render("  StreamPulse")
	}
	if a.phase == phaseLoading {
		return a.renderLoading()
	}
	return a.renderDashboard()
}

// Run starts the TUI application and blocks until the user quits.
func Run(opts RunOpts) error {
	app := NewApp(opts)
	p := tea.NewProgram(app, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

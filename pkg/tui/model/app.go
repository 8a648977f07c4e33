package model

import (
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/modoterra/minermock/pkg/core"
	"github.com/modoterra/minermock/pkg/minerlog"
)

const maxLines = 500

// App is the root Bubble Tea model of the miner dashboard.
type App struct {
	// Source
	logPath string
	lines   <-chan string
	eof     bool

	// State
	summary  minerlog.Summary
	logLines []string
	paused   bool

	// UI
	logs      viewport.Model
	width     int
	height    int
	statusMsg string
}

// New creates a dashboard fed by lines, typically a minerlog.Follower.
func New(logPath string, lines <-chan string) App {
	return App{
		logPath:   logPath,
		lines:     lines,
		logs:      viewport.New(0, 0),
		statusMsg: "waiting for " + logPath,
	}
}

// Init starts reading lines.
func (a App) Init() tea.Cmd {
	return tea.Batch(
		waitForLine(a.lines),
		tea.SetWindowTitle("minermock"),
		tickCmd(),
	)
}

// lineMsg carries one raw log line.
type lineMsg string

// sourceClosedMsg reports that the line channel was closed.
type sourceClosedMsg struct{}

// tickMsg refreshes the runtime display.
type tickMsg time.Time

func waitForLine(lines <-chan string) tea.Cmd {
	return func() tea.Msg {
		l, ok := <-lines
		if !ok {
			return sourceClosedMsg{}
		}
		return lineMsg(l)
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Summary returns the totals of the run currently displayed.
func (a App) Summary() minerlog.Summary { return a.summary }

// Update handles messages.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.logs.Width = max(a.width-4, 10)
		a.logs.Height = max(a.height-statsHeight-statusBarHeight-4, 3)
		a.refreshLogs()
		return a, nil

	case lineMsg:
		a.addLine(string(msg))
		return a, waitForLine(a.lines)

	case sourceClosedMsg:
		a.eof = true
		a.statusMsg = "log source closed"
		return a, nil

	case tickMsg:
		return a, tickCmd()

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return a, tea.Quit
		case "p":
			a.paused = !a.paused
			if !a.paused {
				a.refreshLogs()
			}
			return a, nil
		case "c":
			a.logLines = nil
			a.refreshLogs()
			return a, nil
		}
	}

	var cmd tea.Cmd
	a.logs, cmd = a.logs.Update(msg)
	return a, cmd
}

func (a *App) addLine(line string) {
	e, err := minerlog.Parse(line)
	if err == nil {
		// A new run truncates the file and starts over
		if e.Category == core.CategoryStartup && e.Worker != "" {
			a.summary = minerlog.Summary{}
			a.logLines = nil
		}
		a.summary.Add(e)
		a.statusMsg = "following " + a.logPath
	} else {
		a.summary.Malformed++
	}

	a.logLines = append(a.logLines, line)
	if len(a.logLines) > maxLines {
		a.logLines = a.logLines[len(a.logLines)-maxLines:]
	}
	if !a.paused {
		a.refreshLogs()
	}
}

func (a *App) refreshLogs() {
	a.logs.SetContent(a.renderLogs())
	a.logs.GotoBottom()
}

package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/modoterra/minermock/pkg/core"
	"github.com/modoterra/minermock/pkg/minerlog"
	"github.com/modoterra/minermock/pkg/sim"
)

const (
	statsHeight     = 6
	statusBarHeight = 1
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	acceptedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	rejectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	startupStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("205")).
			Padding(0, 1)

	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// View renders the dashboard.
func (a App) View() string {
	if a.width == 0 || a.height == 0 {
		return "loading..."
	}

	stats := paneStyle.Width(a.width - 4).Height(statsHeight).Render(
		titleStyle.Render(" Miner ") + "\n" + a.renderStats(),
	)
	logs := paneStyle.Width(a.width - 4).Render(
		titleStyle.Render(a.logTitle()) + "\n" + a.logs.View(),
	)
	return lipgloss.JoinVertical(lipgloss.Left, stats, logs, a.renderStatusBar())
}

func (a App) renderStats() string {
	s := a.summary
	if s.Started.IsZero() {
		return dimStyle.Render("no miner output yet")
	}

	state := acceptedStyle.Render("running")
	runtime := time.Since(s.Started).Truncate(time.Second)
	if s.Stopped {
		state = dimStyle.Render("stopped")
		runtime = s.Runtime
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Worker:   %s @ %s\n", s.Worker, s.Pool)
	fmt.Fprintf(&b, "State:    %s  (%s)\n", state, formatDuration(runtime))
	fmt.Fprintf(&b, "Hashrate: %.2f MH/s across %d devices\n", s.Hashrate, s.Devices)
	fmt.Fprintf(&b, "Shares:   %s / %s  (%.1f%% accepted)\n",
		acceptedStyle.Render(fmt.Sprintf("%d accepted", s.Shares.Accepted)),
		rejectedStyle.Render(fmt.Sprintf("%d rejected", s.Shares.Rejected)),
		s.AcceptRate()*100)
	fmt.Fprintf(&b, "Rejects:  %s", formatReasons(s.Reasons))
	return b.String()
}

func (a App) renderLogs() string {
	if len(a.logLines) == 0 {
		return dimStyle.Render("no log output")
	}
	width := a.logs.Width
	var b strings.Builder
	for i, l := range a.logLines {
		if i > 0 {
			b.WriteByte('\n')
		}
		if width > 0 {
			l = truncate(l, width)
		}
		b.WriteString(Colorize(l))
	}
	return b.String()
}

func (a App) logTitle() string {
	title := " " + a.logPath + " "
	if a.paused {
		title += dimStyle.Render("[PAUSED]") + " "
	}
	return title
}

func (a App) renderStatusBar() string {
	left := a.statusMsg
	right := "p:pause c:clear ↑/↓:scroll q:quit"
	gap := a.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return helpStyle.Render(left + strings.Repeat(" ", gap) + right)
}

// Colorize styles a raw miner log line by its category.
func Colorize(line string) string {
	e, err := minerlog.Parse(line)
	if err != nil {
		return dimStyle.Render(line)
	}
	switch e.Category {
	case core.CategoryShare:
		if e.Accepted {
			return acceptedStyle.Render(line)
		}
		return rejectedStyle.Render(line)
	case core.CategoryStatus, core.CategorySummary:
		return statusStyle.Render(line)
	case core.CategoryStartup:
		return startupStyle.Render(line)
	default:
		return line
	}
}

func formatReasons(reasons map[string]int) string {
	if len(reasons) == 0 {
		return dimStyle.Render("none")
	}
	parts := make([]string, 0, len(reasons))
	for _, r := range sim.RejectReasons {
		if n := reasons[r]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", r, n))
		}
	}
	return strings.Join(parts, " ")
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

func formatDuration(d time.Duration) string {
	sec := uint64(d.Seconds())
	if sec < 60 {
		return fmt.Sprintf("%ds", sec)
	}
	if sec < 3600 {
		return fmt.Sprintf("%dm%ds", sec/60, sec%60)
	}
	return fmt.Sprintf("%dh%dm", sec/3600, (sec%3600)/60)
}

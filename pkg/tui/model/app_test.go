package model

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

var run = []string{
	"[2024-05-01 12:00:00] Miner: starting (worker=miner01)",
	"[2024-05-01 12:00:00] Stratum: connecting to mockpool.example:3333...",
	"[2024-05-01 12:00:00] Stratum: connected, difficulty=2.00",
	"[2024-05-01 12:00:00] Job: new block template received",
	"[2024-05-01 12:00:00] GPU0: 60.00 MH/s",
	"[2024-05-01 12:00:00] GPU1: 70.00 MH/s",
	"[2024-05-01 12:00:01] ✓ Share Accepted: nonce=0x0000beef hash=00a1b2c3d4e5f60718293a4b5c6d7e8f... diff=2.000",
	"[2024-05-01 12:00:01] ✗ Share Rejected (stale): nonce=0xdeadbeef hash=ffa1b2c3d4e5f60718293a4b5c6d7e8f...",
	"[2024-05-01 12:00:02] ✗ Share Rejected (invalid): nonce=0x00c0ffee hash=aba1b2c3d4e5f60718293a4b5c6d7e8f...",
}

func feed(a App, lines ...string) App {
	for _, l := range lines {
		m, _ := a.Update(lineMsg(l))
		a = m.(App)
	}
	return a
}

func TestAppCountsShares(t *testing.T) {
	a := feed(New("miner.log", nil), run...)
	s := a.Summary()
	if s.Shares.Accepted != 1 || s.Shares.Rejected != 2 || s.Shares.Attempts != 3 {
		t.Errorf("shares: got %+v", s.Shares)
	}
	if s.Worker != "miner01" || s.Devices != 2 || s.Hashrate != 130 {
		t.Errorf("summary: got %+v", s)
	}
	if s.Reasons["stale"] != 1 || s.Reasons["invalid"] != 1 {
		t.Errorf("reasons: got %v", s.Reasons)
	}
}

func TestAppResetsOnNewRun(t *testing.T) {
	a := feed(New("miner.log", nil), run...)
	a = feed(a, run[0])
	s := a.Summary()
	if s.Shares.Attempts != 0 {
		t.Errorf("expected counters reset on new run, got %+v", s.Shares)
	}
	if len(a.logLines) != 1 {
		t.Errorf("expected log pane reset, got %d lines", len(a.logLines))
	}
}

func TestAppMalformedLine(t *testing.T) {
	a := feed(New("miner.log", nil), "garbage")
	if a.Summary().Malformed != 1 {
		t.Errorf("malformed: got %d", a.Summary().Malformed)
	}
}

func TestAppKeepsBoundedHistory(t *testing.T) {
	a := New("miner.log", nil)
	for i := 0; i < maxLines+50; i++ {
		a = feed(a, run[7])
	}
	if len(a.logLines) != maxLines {
		t.Errorf("history: got %d, want %d", len(a.logLines), maxLines)
	}
}

func TestAppPauseAndQuit(t *testing.T) {
	a := New("miner.log", nil)
	m, _ := a.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})
	a = m.(App)
	if !a.paused {
		t.Error("expected paused after p")
	}
	_, cmd := a.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}

func TestAppSourceClosed(t *testing.T) {
	ch := make(chan string)
	close(ch)
	a := New("miner.log", ch)
	msg := waitForLine(ch)()
	m, _ := a.Update(msg)
	a = m.(App)
	if !a.eof {
		t.Error("expected eof after channel close")
	}
}

func TestAppView(t *testing.T) {
	a := New("miner.log", nil)
	if a.View() != "loading..." {
		t.Errorf("view before size: %q", a.View())
	}
	m, _ := a.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	a = feed(m.(App), run...)
	v := a.View()
	for _, want := range []string{"miner01", "mockpool.example:3333", "1 accepted", "2 rejected", "miner.log"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("✓ Share Accepted", 8); got != "✓ Sha..." {
		t.Errorf("got %q", got)
	}
	if got := truncate("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
}

package minerlog

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/modoterra/minermock/pkg/core"
)

// Summary aggregates one run of the miner log.
type Summary struct {
	Worker    string         `json:"worker,omitempty"`
	Pool      string         `json:"pool,omitempty"`
	Started   time.Time      `json:"started"`
	LastSeen  time.Time      `json:"last_seen"`
	Devices   int            `json:"devices"`
	Shares    core.Counters  `json:"shares"`
	Reasons   map[string]int `json:"reasons,omitempty"`
	Hashrate  float64        `json:"hashrate"` // latest status or device sum, MH/s
	Statuses  int            `json:"statuses"`
	Stopped   bool           `json:"stopped"`
	Runtime   time.Duration  `json:"runtime"`
	Malformed int            `json:"malformed"`

	deviceSum float64
}

// Add folds one entry into the summary.
func (s *Summary) Add(e Entry) {
	if s.Started.IsZero() {
		s.Started = e.Time
	}
	s.LastSeen = e.Time

	switch e.Category {
	case core.CategoryStartup:
		if e.Worker != "" {
			s.Worker = e.Worker
		}
		if e.Pool != "" {
			s.Pool = e.Pool
		}
	case core.CategoryDevice:
		s.Devices++
		s.deviceSum += e.Hashrate
		if s.Statuses == 0 {
			s.Hashrate = s.deviceSum
		}
	case core.CategoryShare:
		s.Shares.Record(e.Accepted)
		if !e.Accepted {
			if s.Reasons == nil {
				s.Reasons = make(map[string]int)
			}
			s.Reasons[e.Reason]++
		}
	case core.CategoryStatus:
		s.Statuses++
		s.Hashrate = e.Hashrate
	case core.CategorySummary:
		s.Stopped = true
		s.Runtime = e.Runtime
	}
}

// AcceptRate returns the fraction of accepted shares, or 0 with no shares.
func (s Summary) AcceptRate() float64 {
	if s.Shares.Attempts == 0 {
		return 0
	}
	return float64(s.Shares.Accepted) / float64(s.Shares.Attempts)
}

// Summarize reads a whole log. Malformed lines are counted, not fatal.
func Summarize(r io.Reader) (Summary, error) {
	var s Summary
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		e, err := Parse(scanner.Text())
		if err != nil {
			s.Malformed++
			continue
		}
		s.Add(e)
	}
	if err := scanner.Err(); err != nil {
		return s, fmt.Errorf("read log: %w", err)
	}
	return s, nil
}

// SummarizeFile summarizes the log file at path.
func SummarizeFile(path string) (Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Summary{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Summarize(f)
}

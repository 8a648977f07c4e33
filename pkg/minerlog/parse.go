// Package minerlog reads the miner log format back: it parses lines,
// summarizes whole files and follows a file while the miner writes it.
package minerlog

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/modoterra/minermock/pkg/core"
)

// ErrMalformed is returned for lines that are not in the miner log format.
var ErrMalformed = errors.New("malformed log line")

var (
	linePattern     = regexp.MustCompile(`^\[(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2})\] (.+)$`)
	startingPattern = regexp.MustCompile(`^Miner: starting \(worker=(.*)\)$`)
	connectPattern  = regexp.MustCompile(`^Stratum: connecting to (.*)\.\.\.$`)
	devicePattern   = regexp.MustCompile(`^GPU(\d+): (\d+(?:\.\d+)?) MH/s$`)
	acceptPattern   = regexp.MustCompile(`^✓ Share Accepted: nonce=0x([0-9a-f]{8}) hash=([0-9a-f]+)\.\.\. diff=`)
	rejectPattern   = regexp.MustCompile(`^✗ Share Rejected \(([a-z-]+)\): nonce=0x([0-9a-f]{8}) hash=([0-9a-f]+)\.\.\.$`)
	statusPattern   = regexp.MustCompile(`^Status: (\d+(?:\.\d+)?) MH/s \| Accepted: (\d+) \| Rejected: (\d+)$`)
	stoppingPattern = regexp.MustCompile(`^Miner: stopping \(runtime: (\d+(?:\.\d+)?)s, accepted: (\d+), rejected: (\d+)\)$`)
)

// Entry is a parsed log line with the fields its category carries.
type Entry struct {
	core.LogLine

	Worker   string        // startup: miner start
	Pool     string        // startup: pool connect
	Device   int           // device
	Hashrate float64       // device and status, MH/s
	Accepted bool          // share
	Reason   string        // rejected share
	Nonce    uint32        // share
	Hash     string        // share, truncated hex
	Totals   core.Counters // status and summary
	Runtime  time.Duration // summary
}

// Parse parses a single line, with or without its trailing newline.
func Parse(line string) (Entry, error) {
	line = strings.TrimRight(line, "\r\n")
	m := linePattern.FindStringSubmatch(line)
	if m == nil {
		return Entry{}, fmt.Errorf("%w: %q", ErrMalformed, line)
	}
	ts, err := time.ParseInLocation(core.TimeLayout, m[1], time.Local)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: bad timestamp %q", ErrMalformed, m[1])
	}
	text := m[2]
	e := Entry{LogLine: core.LogLine{Time: ts, Text: text}}

	switch {
	case strings.HasPrefix(text, "Miner: starting"):
		e.Category = core.CategoryStartup
		if sm := startingPattern.FindStringSubmatch(text); sm != nil {
			e.Worker = sm[1]
		}
	case strings.HasPrefix(text, "Stratum:"), strings.HasPrefix(text, "Job:"):
		e.Category = core.CategoryStartup
		if sm := connectPattern.FindStringSubmatch(text); sm != nil {
			e.Pool = sm[1]
		}
	case strings.HasPrefix(text, "GPU"):
		sm := devicePattern.FindStringSubmatch(text)
		if sm == nil {
			return Entry{}, fmt.Errorf("%w: device line %q", ErrMalformed, text)
		}
		e.Category = core.CategoryDevice
		e.Device, _ = strconv.Atoi(sm[1])
		e.Hashrate, _ = strconv.ParseFloat(sm[2], 64)
	case strings.HasPrefix(text, "✓ Share Accepted"):
		sm := acceptPattern.FindStringSubmatch(text)
		if sm == nil {
			return Entry{}, fmt.Errorf("%w: share line %q", ErrMalformed, text)
		}
		e.Category = core.CategoryShare
		e.Accepted = true
		e.Nonce = parseNonce(sm[1])
		e.Hash = sm[2]
	case strings.HasPrefix(text, "✗ Share Rejected"):
		sm := rejectPattern.FindStringSubmatch(text)
		if sm == nil {
			return Entry{}, fmt.Errorf("%w: share line %q", ErrMalformed, text)
		}
		e.Category = core.CategoryShare
		e.Reason = sm[1]
		e.Nonce = parseNonce(sm[2])
		e.Hash = sm[3]
	case strings.HasPrefix(text, "Status:"):
		sm := statusPattern.FindStringSubmatch(text)
		if sm == nil {
			return Entry{}, fmt.Errorf("%w: status line %q", ErrMalformed, text)
		}
		e.Category = core.CategoryStatus
		e.Hashrate, _ = strconv.ParseFloat(sm[1], 64)
		e.Totals = totals(sm[2], sm[3])
	case strings.HasPrefix(text, "Miner: stopping"):
		sm := stoppingPattern.FindStringSubmatch(text)
		if sm == nil {
			return Entry{}, fmt.Errorf("%w: summary line %q", ErrMalformed, text)
		}
		e.Category = core.CategorySummary
		secs, _ := strconv.ParseFloat(sm[1], 64)
		e.Runtime = time.Duration(secs * float64(time.Second))
		e.Totals = totals(sm[2], sm[3])
	default:
		return Entry{}, fmt.Errorf("%w: unknown message %q", ErrMalformed, text)
	}
	return e, nil
}

func parseNonce(s string) uint32 {
	n, _ := strconv.ParseUint(s, 16, 32)
	return uint32(n)
}

func totals(accepted, rejected string) core.Counters {
	a, _ := strconv.Atoi(accepted)
	r, _ := strconv.Atoi(rejected)
	return core.Counters{Accepted: a, Rejected: r, Attempts: a + r}
}

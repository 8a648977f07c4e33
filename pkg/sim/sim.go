// Package sim produces a believable stream of mining log lines.
package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/modoterra/minermock/pkg/config"
	"github.com/modoterra/minermock/pkg/core"
)

// State is the simulator lifecycle state.
type State int

const (
	StateStarting State = iota
	StateRunning
	StateStopping
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// LineWriter receives every rendered line in order.
type LineWriter interface {
	WriteLine(line string) error
}

// Options tune a simulator run.
type Options struct {
	Pool        string
	Worker      string
	Devices     int
	Difficulty  float64
	Interval    time.Duration
	AcceptRate  float64
	StatusEvery int
	HashrateMin float64
	HashrateMax float64
	Attempts    int // 0 = until ctx is done

	Hash Hasher
	Rand *rand.Rand
	Now  func() time.Time
}

// OptionsFromConfig builds Options from the miner section of the config.
func OptionsFromConfig(m config.Miner) (Options, error) {
	h, err := HasherByName(m.Hash)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Pool:        m.Pool,
		Worker:      m.Worker,
		Devices:     m.Devices,
		Difficulty:  m.Difficulty,
		Interval:    m.Interval,
		AcceptRate:  m.AcceptRate,
		StatusEvery: m.StatusEvery,
		HashrateMin: m.HashrateMin,
		HashrateMax: m.HashrateMax,
		Attempts:    m.Attempts,
		Hash:        h,
		Rand:        NewRand(m.Seed),
	}, nil
}

// NewRand returns a PCG source seeded with seed, or randomly when seed is 0.
func NewRand(seed uint64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Simulator writes mining activity until its context is cancelled.
type Simulator struct {
	opts   Options
	out    LineWriter
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	counters core.Counters
}

// New creates a simulator writing to out. Zero-valued options, except
// Interval, AcceptRate and Attempts, fall back to config.Default.
func New(opts Options, out LineWriter, logger *slog.Logger) *Simulator {
	def := config.Default().Miner
	if opts.Pool == "" {
		opts.Pool = def.Pool
	}
	if opts.Worker == "" {
		opts.Worker = def.Worker
	}
	if opts.Difficulty <= 0 {
		opts.Difficulty = def.Difficulty
	}
	if opts.Devices <= 0 {
		opts.Devices = def.Devices
	}
	if opts.StatusEvery <= 0 {
		opts.StatusEvery = def.StatusEvery
	}
	if opts.HashrateMax <= opts.HashrateMin {
		opts.HashrateMin, opts.HashrateMax = def.HashrateMin, def.HashrateMax
	}
	if opts.Hash == nil {
		opts.Hash = SHA256d
	}
	if opts.Rand == nil {
		opts.Rand = NewRand(0)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulator{opts: opts, out: out, logger: logger}
}

// State returns the current lifecycle state.
func (s *Simulator) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Counters returns a snapshot of the share totals.
func (s *Simulator) Counters() core.Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters
}

// Run writes the startup banner, then one share line per interval until ctx
// is done or the attempt limit is reached, then the summary line. Only write
// errors are returned; cancellation is a normal stop.
func (s *Simulator) Run(ctx context.Context) (core.Counters, error) {
	start := s.opts.Now()
	s.logger.Info("simulator starting", "worker", s.opts.Worker, "pool", s.opts.Pool)

	for i, text := range startupTexts(s.opts.Worker, s.opts.Pool, s.opts.Difficulty) {
		if err := s.emit(start.Add(startupOffsets[i]), core.CategoryStartup, text); err != nil {
			return s.Counters(), err
		}
	}
	for i := 0; i < s.opts.Devices; i++ {
		ts := start.Add(deviceBaseOffset + time.Duration(i)*deviceStep)
		if err := s.emit(ts, core.CategoryDevice, deviceText(i, s.hashrate())); err != nil {
			return s.Counters(), err
		}
	}

	s.setState(StateRunning)
	for ctx.Err() == nil {
		if s.opts.Attempts > 0 && s.Counters().Attempts >= s.opts.Attempts {
			break
		}
		if err := s.attempt(); err != nil {
			return s.Counters(), err
		}
		if s.opts.Attempts > 0 && s.Counters().Attempts >= s.opts.Attempts {
			break
		}
		sleep(ctx, s.opts.Interval)
	}

	s.setState(StateStopping)
	end := s.opts.Now()
	c := s.Counters()
	if err := s.emit(end, core.CategorySummary, summaryText(end.Sub(start), c.Accepted, c.Rejected)); err != nil {
		return c, err
	}
	s.setState(StateTerminated)
	s.logger.Info("simulator stopped", "attempts", c.Attempts, "accepted", c.Accepted, "rejected", c.Rejected)
	return c, nil
}

func (s *Simulator) attempt() error {
	ts := s.opts.Now()
	r := s.opts.Rand

	s.mu.Lock()
	n := s.counters.Attempts
	s.mu.Unlock()

	nonce := r.Uint32()
	payload := fmt.Sprintf("%s|%s|%d|%d", s.opts.Pool, s.opts.Worker, nonce, n)
	hash := s.opts.Hash([]byte(payload))

	accepted := r.Float64() < s.opts.AcceptRate || IsLucky(hash)

	var text string
	if accepted {
		text = acceptedText(nonce, hash, s.opts.Difficulty)
	} else {
		reason := RejectReasons[r.IntN(len(RejectReasons))]
		text = rejectedText(reason, nonce, hash)
	}

	s.mu.Lock()
	s.counters.Record(accepted)
	c := s.counters
	s.mu.Unlock()

	if err := s.emit(ts, core.CategoryShare, text); err != nil {
		return err
	}

	if c.Attempts%s.opts.StatusEvery == 0 {
		var total float64
		for i := 0; i < s.opts.Devices; i++ {
			total += s.hashrate()
		}
		if err := s.emit(ts, core.CategoryStatus, statusText(total, c.Accepted, c.Rejected)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Simulator) emit(ts time.Time, cat core.Category, text string) error {
	line := core.LogLine{Time: ts, Category: cat, Text: text}
	if err := s.out.WriteLine(line.String()); err != nil {
		return fmt.Errorf("write %s line: %w", cat, err)
	}
	return nil
}

func (s *Simulator) hashrate() float64 {
	return s.opts.HashrateMin + s.opts.Rand.Float64()*(s.opts.HashrateMax-s.opts.HashrateMin)
}

func (s *Simulator) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

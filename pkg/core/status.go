package core

// Status represents the current state of the supervised miner process.
type Status string

const (
	StatusRunning Status = "running"
	StatusStopped Status = "stopped"
	StatusFailed  Status = "failed"
)

// Counters are the per-run share totals. They only ever grow within a run.
type Counters struct {
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
	Attempts int `json:"attempts"`
}

// Record counts one share attempt.
func (c *Counters) Record(accepted bool) {
	if accepted {
		c.Accepted++
	} else {
		c.Rejected++
	}
	c.Attempts++
}

package sim

import (
	"fmt"
	"time"
)

// Offsets of the synthetic startup timestamps from the real start time.
var startupOffsets = [...]time.Duration{
	0,
	50 * time.Millisecond,
	100 * time.Millisecond,
	200 * time.Millisecond,
}

const (
	deviceBaseOffset = 300 * time.Millisecond
	deviceStep       = 50 * time.Millisecond
)

// RejectReasons are the possible reasons attached to a rejected share.
var RejectReasons = []string{"low-diff", "stale", "invalid"}

func startupTexts(worker, pool string, difficulty float64) [len(startupOffsets)]string {
	return [...]string{
		fmt.Sprintf("Miner: starting (worker=%s)", worker),
		fmt.Sprintf("Stratum: connecting to %s...", pool),
		fmt.Sprintf("Stratum: connected, difficulty=%.2f", difficulty),
		"Job: new block template received",
	}
}

func deviceText(idx int, hashrate float64) string {
	return fmt.Sprintf("GPU%d: %.2f MH/s", idx, hashrate)
}

func acceptedText(nonce uint32, hash string, difficulty float64) string {
	return fmt.Sprintf("✓ Share Accepted: nonce=0x%08x hash=%s... diff=%.3f", nonce, shortHash(hash), difficulty)
}

func rejectedText(reason string, nonce uint32, hash string) string {
	return fmt.Sprintf("✗ Share Rejected (%s): nonce=0x%08x hash=%s...", reason, nonce, shortHash(hash))
}

func statusText(total float64, accepted, rejected int) string {
	return fmt.Sprintf("Status: %.2f MH/s | Accepted: %d | Rejected: %d", total, accepted, rejected)
}

func summaryText(runtime time.Duration, accepted, rejected int) string {
	return fmt.Sprintf("Miner: stopping (runtime: %.1fs, accepted: %d, rejected: %d)", runtime.Seconds(), accepted, rejected)
}

func shortHash(h string) string {
	if len(h) > 32 {
		return h[:32]
	}
	return h
}

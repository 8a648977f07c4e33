package daemon

import "log/slog"

// StepResult records the outcome of one best-effort shutdown step.
type StepResult struct {
	Step    string
	Err     error
	Skipped bool
}

func runStep(step string, fn func() error) StepResult {
	return StepResult{Step: step, Err: fn()}
}

// LogResults reports each step; failures are warnings and never propagate.
func LogResults(logger *slog.Logger, results []StepResult) {
	for _, r := range results {
		switch {
		case r.Skipped:
			logger.Debug("teardown step skipped", "step", r.Step)
		case r.Err != nil:
			logger.Warn("teardown step failed", "step", r.Step, "err", r.Err)
		default:
			logger.Info("teardown step done", "step", r.Step)
		}
	}
}

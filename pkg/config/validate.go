package config

import "fmt"

// Validate checks the config for structural correctness.
func Validate(c *Config) []error {
	var errs []error

	if c.Version != 1 {
		errs = append(errs, fmt.Errorf("version must be 1, got %d", c.Version))
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Server.Root == "" {
		errs = append(errs, fmt.Errorf("server.root is required"))
	}
	if c.Server.ShutdownTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.shutdown_timeout must not be negative"))
	}

	m := c.Miner
	if m.LogFile == "" {
		errs = append(errs, fmt.Errorf("miner.log_file is required"))
	}
	if m.Pool == "" {
		errs = append(errs, fmt.Errorf("miner.pool is required"))
	}
	if m.Worker == "" {
		errs = append(errs, fmt.Errorf("miner.worker is required"))
	}
	if m.Devices < 1 {
		errs = append(errs, fmt.Errorf("miner.devices must be at least 1, got %d", m.Devices))
	}
	if m.Interval < 0 {
		errs = append(errs, fmt.Errorf("miner.interval must not be negative"))
	}
	if m.AcceptRate < 0 || m.AcceptRate > 1 {
		errs = append(errs, fmt.Errorf("miner.accept_rate must be within [0, 1], got %g", m.AcceptRate))
	}
	if m.StatusEvery < 1 {
		errs = append(errs, fmt.Errorf("miner.status_every must be at least 1, got %d", m.StatusEvery))
	}
	if m.HashrateMin < 0 || m.HashrateMax <= m.HashrateMin {
		errs = append(errs, fmt.Errorf("miner hashrate range [%g, %g) is empty", m.HashrateMin, m.HashrateMax))
	}
	switch m.Hash {
	case "sha256d", "blake2b", "sha3":
	default:
		errs = append(errs, fmt.Errorf("miner.hash must be sha256d, blake2b, or sha3; got %q", m.Hash))
	}
	if m.Attempts < 0 {
		errs = append(errs, fmt.Errorf("miner.attempts must not be negative"))
	}

	return errs
}

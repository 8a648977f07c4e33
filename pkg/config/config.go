// Package config loads minermock.yaml and applies environment overrides.
package config

import (
	"path/filepath"
	"time"
)

// DefaultPath is the config file looked up in the working directory.
const DefaultPath = "minermock.yaml"

// Config represents a minermock.yaml configuration file.
type Config struct {
	Version int    `yaml:"version" json:"version"`
	Server  Server `yaml:"server"  json:"server"`
	Miner   Miner  `yaml:"miner"   json:"miner"`

	// FilePath is the file the config was loaded from; empty for defaults.
	FilePath string `yaml:"-" json:"-"`
}

// Server configures the static file server and the miner child process.
type Server struct {
	Port            int               `yaml:"port"                       json:"port"`
	Root            string            `yaml:"root"                       json:"root"`
	MinerBinary     string            `yaml:"miner_binary,omitempty"     json:"miner_binary,omitempty"`
	MinerArgs       []string          `yaml:"miner_args,omitempty"       json:"miner_args,omitempty"` // default: --log <path> [--config <file>]
	MinerEnv        map[string]string `yaml:"miner_env,omitempty"        json:"miner_env,omitempty"`  // added to the inherited environment
	ShutdownTimeout time.Duration     `yaml:"shutdown_timeout,omitempty" json:"shutdown_timeout,omitempty"`
}

// Miner configures the log simulator.
type Miner struct {
	LogFile     string        `yaml:"log_file"     json:"log_file"`
	Pool        string        `yaml:"pool"         json:"pool"`
	Worker      string        `yaml:"worker"       json:"worker"`
	Devices     int           `yaml:"devices"      json:"devices"`
	Difficulty  float64       `yaml:"difficulty"   json:"difficulty"`
	Interval    time.Duration `yaml:"interval"     json:"interval"`
	AcceptRate  float64       `yaml:"accept_rate"  json:"accept_rate"`
	StatusEvery int           `yaml:"status_every" json:"status_every"`
	HashrateMin float64       `yaml:"hashrate_min" json:"hashrate_min"`
	HashrateMax float64       `yaml:"hashrate_max" json:"hashrate_max"`
	Hash        string        `yaml:"hash"         json:"hash"` // sha256d|blake2b|sha3

	// Attempts bounds the run; 0 runs until stopped.
	Attempts int `yaml:"attempts,omitempty" json:"attempts,omitempty"`
	// Seed fixes the random source; 0 seeds from the runtime.
	Seed uint64 `yaml:"seed,omitempty" json:"seed,omitempty"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Version: 1,
		Server: Server{
			Port:            8000,
			Root:            ".",
			MinerBinary:     "minerd",
			ShutdownTimeout: 5 * time.Second,
		},
		Miner: Miner{
			LogFile:     "miner.log",
			Pool:        "mockpool.example:3333",
			Worker:      "miner01",
			Devices:     4,
			Difficulty:  2.0,
			Interval:    500 * time.Millisecond,
			AcceptRate:  0.05,
			StatusEvery: 10,
			HashrateMin: 50,
			HashrateMax: 120,
			Hash:        "sha256d",
		},
	}
}

// LogPath returns the miner log file location: LogFile itself when absolute,
// otherwise LogFile under Server.Root.
func (c *Config) LogPath() string {
	if filepath.IsAbs(c.Miner.LogFile) {
		return c.Miner.LogFile
	}
	return filepath.Join(c.Server.Root, c.Miner.LogFile)
}

package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseValidConfig(t *testing.T) {
	yaml := `
version: 1
server:
  port: 9100
  root: /srv/dashboard
miner:
  worker: rig-7
  devices: 2
  interval: 250ms
  hash: blake2b
`
	c, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if c.Server.Port != 9100 {
		t.Errorf("port: got %d, want 9100", c.Server.Port)
	}
	if c.Server.Root != "/srv/dashboard" {
		t.Errorf("root: got %q", c.Server.Root)
	}
	if c.Miner.Worker != "rig-7" || c.Miner.Devices != 2 {
		t.Errorf("miner: got %+v", c.Miner)
	}
	if c.Miner.Interval != 250*time.Millisecond {
		t.Errorf("interval: got %v", c.Miner.Interval)
	}
	// Omitted keys keep defaults
	if c.Miner.Pool != "mockpool.example:3333" {
		t.Errorf("pool default lost: got %q", c.Miner.Pool)
	}
	if c.Server.ShutdownTimeout != 5*time.Second {
		t.Errorf("shutdown timeout default lost: got %v", c.Server.ShutdownTimeout)
	}
	if errs := Validate(c); len(errs) != 0 {
		t.Errorf("unexpected validation errors: %v", errs)
	}
}

func TestDefaultIsValid(t *testing.T) {
	if errs := Validate(Default()); len(errs) != 0 {
		t.Errorf("default config invalid: %v", errs)
	}
}

func TestApplyEnvPort(t *testing.T) {
	c := Default()
	env := map[string]string{"PORT": "9001"}
	if err := c.ApplyEnv(func(k string) string { return env[k] }); err != nil {
		t.Fatal(err)
	}
	if c.Server.Port != 9001 {
		t.Errorf("port: got %d, want 9001", c.Server.Port)
	}
}

func TestApplyEnvPortUnset(t *testing.T) {
	c := Default()
	if err := c.ApplyEnv(func(string) string { return "" }); err != nil {
		t.Fatal(err)
	}
	if c.Server.Port != 8000 {
		t.Errorf("port: got %d, want 8000", c.Server.Port)
	}
}

func TestApplyEnvPortNotInteger(t *testing.T) {
	c := Default()
	err := c.ApplyEnv(func(string) string { return "eighty" })
	if err == nil || !strings.Contains(err.Error(), "PORT must be an integer") {
		t.Errorf("expected integer error, got %v", err)
	}
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	c, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if c.FilePath != "" {
		t.Errorf("defaults should have no file path, got %q", c.FilePath)
	}
	if c.Miner.LogFile != "miner.log" {
		t.Errorf("log file: got %q", c.Miner.LogFile)
	}
}

func TestSaveLoadPreservesDurations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minermock.yaml")
	c := Default()
	c.Miner.Interval = 750 * time.Millisecond
	if err := Save(c, path); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Miner.Interval != 750*time.Millisecond {
		t.Errorf("interval: got %v", got.Miner.Interval)
	}
	if got.FilePath != path {
		t.Errorf("file path: got %q", got.FilePath)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		substr string
	}{
		{"version", func(c *Config) { c.Version = 2 }, "version must be 1"},
		{"port", func(c *Config) { c.Server.Port = 70000 }, "server.port out of range"},
		{"root", func(c *Config) { c.Server.Root = "" }, "server.root is required"},
		{"log file", func(c *Config) { c.Miner.LogFile = "" }, "miner.log_file is required"},
		{"devices", func(c *Config) { c.Miner.Devices = 0 }, "miner.devices"},
		{"accept rate", func(c *Config) { c.Miner.AcceptRate = 1.5 }, "miner.accept_rate"},
		{"status every", func(c *Config) { c.Miner.StatusEvery = 0 }, "miner.status_every"},
		{"hashrate", func(c *Config) { c.Miner.HashrateMax = 10 }, "hashrate range"},
		{"hash", func(c *Config) { c.Miner.Hash = "md5" }, "miner.hash must be"},
		{"attempts", func(c *Config) { c.Miner.Attempts = -1 }, "miner.attempts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			assertHasError(t, Validate(c), tt.substr)
		})
	}
}

func assertHasError(t *testing.T, errs []error, substr string) {
	t.Helper()
	for _, e := range errs {
		if strings.Contains(e.Error(), substr) {
			return
		}
	}
	t.Errorf("expected error containing %q, got: %v", substr, errs)
}

func TestLogPath(t *testing.T) {
	c := Default()
	c.Server.Root = "/srv/dashboard"
	if got := c.LogPath(); got != "/srv/dashboard/miner.log" {
		t.Errorf("relative log: got %q", got)
	}
	c.Miner.LogFile = "/var/log/miner.log"
	if got := c.LogPath(); got != "/var/log/miner.log" {
		t.Errorf("absolute log: got %q", got)
	}
}

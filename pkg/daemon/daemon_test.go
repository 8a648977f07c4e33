package daemon

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/modoterra/minermock/pkg/config"
	"github.com/modoterra/minermock/pkg/transport/httpfs"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Port = freePort(t)
	cfg.Server.Root = t.TempDir()
	cfg.Server.ShutdownTimeout = 2 * time.Second
	return cfg
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func runDaemon(t *testing.T, d *Daemon) (cancel func() error) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(ctx) }()

	select {
	case <-d.Ready():
	case err := <-errCh:
		stop()
		t.Fatalf("daemon exited early: %v", err)
	case <-time.After(3 * time.Second):
		stop()
		t.Fatal("daemon not ready")
	}

	return func() error {
		stop()
		select {
		case err := <-errCh:
			return err
		case <-time.After(10 * time.Second):
			t.Fatal("daemon did not stop")
			return nil
		}
	}
}

func TestDaemonServesWithoutMiner(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.MinerBinary = "minerd-definitely-not-installed"
	if err := os.WriteFile(filepath.Join(cfg.Server.Root, "miner.log"), []byte("hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	d := New(cfg, testLogger())
	d.notify = func(string) {}
	stop := runDaemon(t, d)

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/miner.log", cfg.Server.Port))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status: got %d", resp.StatusCode)
	}
	for k, v := range httpfs.Headers {
		if resp.Header.Get(k) != v {
			t.Errorf("header %s: got %q", k, resp.Header.Get(k))
		}
	}

	if d.Miner() != nil {
		t.Error("no miner should have been started")
	}
	if err := stop(); err != nil {
		t.Errorf("Run returned %v, want nil", err)
	}
}

func TestDaemonURLUsesBoundPort(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Port = 0
	cfg.Server.MinerBinary = "minerd-definitely-not-installed"

	d := New(cfg, testLogger())
	d.notify = func(string) {}
	if d.URL() != "" {
		t.Errorf("URL before Ready = %q, want empty", d.URL())
	}
	stop := runDaemon(t, d)

	port := d.Addr().(*net.TCPAddr).Port
	if port == 0 {
		t.Fatal("expected an ephemeral port")
	}
	if want := fmt.Sprintf("http://localhost:%d", port); d.URL() != want {
		t.Errorf("URL = %q, want %q", d.URL(), want)
	}
	if err := stop(); err != nil {
		t.Errorf("Run returned %v", err)
	}
}

func TestDaemonTerminatesMinerOnShutdown(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.MinerBinary = lookPath(t, "sleep")
	cfg.Server.MinerArgs = []string{"30"}

	var states []string
	d := New(cfg, testLogger())
	d.notify = func(s string) { states = append(states, s) }
	stop := runDaemon(t, d)

	miner := d.Miner()
	if miner == nil {
		t.Fatal("miner not started")
	}

	begin := time.Now()
	if err := stop(); err != nil {
		t.Errorf("Run returned %v, want nil", err)
	}
	if elapsed := time.Since(begin); elapsed > cfg.Server.ShutdownTimeout+killWait {
		t.Errorf("shutdown took %v", elapsed)
	}
	select {
	case <-miner.Done():
	default:
		t.Error("miner still running after shutdown")
	}
	if len(states) != 2 || states[0] != "READY=1" || states[1] != "STOPPING=1" {
		t.Errorf("notify states: %v", states)
	}
}

func TestDaemonMinerRunsInRoot(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.MinerBinary = lookPath(t, "sh")
	cfg.Server.MinerArgs = []string{"-c", "pwd > where.txt; sleep 30"}

	d := New(cfg, testLogger())
	d.notify = func(string) {}
	stop := runDaemon(t, d)

	target := filepath.Join(cfg.Server.Root, "where.txt")
	deadline := time.Now().Add(2 * time.Second)
	for {
		if data, err := os.ReadFile(target); err == nil && len(data) > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("miner did not write into the server root")
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err := stop(); err != nil {
		t.Errorf("Run returned %v", err)
	}
}

func TestDaemonPassesLogConfigAndEnvToMiner(t *testing.T) {
	cfg := testConfig(t)
	cfg.FilePath = filepath.Join(cfg.Server.Root, "minermock.yaml")
	cfg.Server.MinerEnv = map[string]string{"MINER_TAG": "rig-7"}

	script := filepath.Join(t.TempDir(), "fake-minerd")
	body := "#!/bin/sh\necho \"$MINER_TAG $@\" > args.txt\nexec sleep 30\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	cfg.Server.MinerBinary = script

	d := New(cfg, testLogger())
	d.notify = func(string) {}
	stop := runDaemon(t, d)

	target := filepath.Join(cfg.Server.Root, "args.txt")
	want := fmt.Sprintf("rig-7 --log %s --config %s\n", filepath.Join(cfg.Server.Root, "miner.log"), cfg.FilePath)
	deadline := time.Now().Add(2 * time.Second)
	for {
		data, err := os.ReadFile(target)
		if err == nil && len(data) > 0 {
			if string(data) != want {
				t.Errorf("miner args = %q, want %q", data, want)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("miner did not record its arguments")
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err := stop(); err != nil {
		t.Errorf("Run returned %v", err)
	}
}

func TestDaemonBindFailure(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	cfg := testConfig(t)
	cfg.Server.Port = ln.Addr().(*net.TCPAddr).Port
	cfg.Server.MinerBinary = lookPath(t, "sleep")
	cfg.Server.MinerArgs = []string{"30"}

	d := New(cfg, testLogger())
	d.notify = func(string) {}
	if err := d.Run(context.Background()); err == nil {
		t.Fatal("expected bind error")
	}
	if m := d.Miner(); m != nil {
		select {
		case <-m.Done():
		case <-time.After(time.Second):
			t.Error("miner left running after bind failure")
		}
	}
}

// Package daemon runs the local file server together with the miner child
// process and tears both down on shutdown.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"path/filepath"

	sddaemon "github.com/coreos/go-systemd/v22/daemon"

	"github.com/modoterra/minermock/pkg/config"
	"github.com/modoterra/minermock/pkg/transport/httpfs"
)

// Daemon is the `minermock serve` process: one HTTP server, at most one
// miner child.
type Daemon struct {
	cfg    *config.Config
	server *httpfs.Server
	miner  *Process
	ready  chan struct{}
	notify func(state string)
	logger *slog.Logger
}

// New creates a daemon for cfg. Nothing starts until Run.
func New(cfg *config.Config, logger *slog.Logger) *Daemon {
	if logger == nil {
		logger = slog.Default()
	}
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	d := &Daemon{
		cfg:    cfg,
		server: httpfs.NewServer(addr, cfg.Server.Root, cfg.Server.ShutdownTimeout, logger),
		ready:  make(chan struct{}),
		logger: logger,
	}
	d.notify = d.sdNotify
	return d
}

// Ready is closed once the listener is bound.
func (d *Daemon) Ready() <-chan struct{} { return d.ready }

// Addr returns the bound listener address, nil before Ready.
func (d *Daemon) Addr() net.Addr { return d.server.Addr() }

// URL returns the local URL of the bound listener, empty before Ready.
func (d *Daemon) URL() string {
	addr, ok := d.server.Addr().(*net.TCPAddr)
	if !ok {
		return ""
	}
	return fmt.Sprintf("http://localhost:%d", addr.Port)
}

// Miner returns the miner handle, or nil when no miner was started.
func (d *Daemon) Miner() *Process { return d.miner }

// Run starts the miner, serves until ctx is done, then shuts the listener down
// and terminates the miner. Failing to start the miner is not an error, and
// neither are teardown failures; only a failure to bind or serve is returned.
func (d *Daemon) Run(ctx context.Context) error {
	d.startMiner()

	if err := d.server.Listen(); err != nil {
		LogResults(d.logger, d.stopMiner())
		return err
	}
	close(d.ready)
	d.logger.Info("serving", "url", d.URL(), "root", d.cfg.Server.Root)
	d.notify(sddaemon.SdNotifyReady)

	serveErr := d.server.Serve(ctx)
	d.notify(sddaemon.SdNotifyStopping)

	if ctx.Err() == nil && serveErr != nil {
		// Listener died on its own; still release the miner.
		LogResults(d.logger, d.stopMiner())
		return serveErr
	}

	results := []StepResult{{Step: "http shutdown", Err: serveErr}}
	results = append(results, d.stopMiner()...)
	LogResults(d.logger, results)
	d.logger.Info("server stopped")
	return nil
}

func (d *Daemon) startMiner() {
	path, err := Locate(d.cfg.Server.MinerBinary)
	if errors.Is(err, ErrMinerNotFound) {
		d.logger.Warn("miner binary not found; miner will not start", "binary", d.cfg.Server.MinerBinary)
		return
	}
	if err != nil {
		d.logger.Error("failed to start miner process", "err", err)
		return
	}

	args := d.cfg.Server.MinerArgs
	if len(args) == 0 {
		args = []string{"--log", absPath(d.cfg.LogPath())}
		if d.cfg.FilePath != "" {
			args = append(args, "--config", absPath(d.cfg.FilePath))
		}
	}

	p := NewProcess("miner", path, args, d.logger)
	p.Dir = absPath(d.cfg.Server.Root)
	p.Env = d.cfg.Server.MinerEnv
	if err := p.Start(); err != nil {
		d.logger.Error("failed to start miner process", "err", err)
		return
	}
	d.miner = p
}

func (d *Daemon) stopMiner() []StepResult {
	if d.miner == nil {
		return nil
	}
	timeout := d.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = config.Default().Server.ShutdownTimeout
	}
	d.logger.Info("stopping miner process")
	return d.miner.Terminate(timeout)
}

func (d *Daemon) sdNotify(state string) {
	if _, err := sddaemon.SdNotify(false, state); err != nil {
		d.logger.Debug("sd_notify failed", "state", state, "err", err)
	}
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

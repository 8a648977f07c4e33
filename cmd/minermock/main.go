package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/modoterra/minermock/internal/buildinfo"
	"github.com/modoterra/minermock/pkg/config"
	"github.com/modoterra/minermock/pkg/daemon"
	"github.com/modoterra/minermock/pkg/daemon/service"
	"github.com/modoterra/minermock/pkg/minerlog"
	"github.com/modoterra/minermock/pkg/sim"
	tuimodel "github.com/modoterra/minermock/pkg/tui/model"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "minermock",
	Short: "Mock Bitcoin miner log simulator and local dashboard server",
	Long:  "minermock writes plausible miner log lines to a file and serves a local directory over HTTP while running the simulator in the background.",
	RunE:  runDashboard,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "path to minermock.yaml")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mineCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(tailCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serviceCmd)
	rootCmd.AddCommand(versionCmd)
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

// loadConfig reads --config (defaults when the file is absent), applies
// environment overrides, and validates the result.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		return nil, fmt.Errorf("%s: %w", configPath, errs[0])
	}
	return cfg, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// --- Root: dashboard ---

func runDashboard(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := cfg.LogPath()
	follower := minerlog.Follower{Path: path, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	app := tuimodel.New(path, follower.Follow(ctx))
	p := tea.NewProgram(app, tea.WithAltScreen())
	_, err = p.Run()
	return err
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Open the live dashboard for the miner log",
	RunE:  runDashboard,
}

// --- Serve ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the root directory over HTTP and run the miner in the background",
	Long:  "Port comes from $PORT, then the config file, then 8000. The miner binary (minerd) is started with the root directory as its working directory and terminated on shutdown.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		logger := newLogger()
		ctx, cancel := signalContext(logger)
		defer cancel()

		d := daemon.New(cfg, logger)
		go func() {
			select {
			case <-d.Ready():
				fmt.Fprintf(cmd.OutOrStdout(), "Serving at %s\n", d.URL())
				fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl+C to stop the server and miner")
			case <-ctx.Done():
			}
		}()

		logger.Info("starting minermock server", "version", buildinfo.Version)
		return d.Run(ctx)
	},
}

// --- Mine ---

var (
	mineAttempts int
	mineSeed     uint64
	mineInterval time.Duration
	mineQuiet    bool
)

var mineCmd = &cobra.Command{
	Use:   "mine",
	Short: "Run the miner log simulator in the foreground",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		m := cfg.Miner
		m.LogFile = cfg.LogPath()
		if cmd.Flags().Changed("attempts") {
			m.Attempts = mineAttempts
		}
		if cmd.Flags().Changed("seed") {
			m.Seed = mineSeed
		}
		if cmd.Flags().Changed("interval") {
			m.Interval = mineInterval
		}

		echo := cmd.OutOrStdout()
		if mineQuiet {
			echo = io.Discard
		}

		logger := newLogger()
		ctx, cancel := signalContext(logger)
		defer cancel()

		_, err = sim.RunFile(ctx, m, echo, logger)
		return err
	},
}

func init() {
	mineCmd.Flags().IntVar(&mineAttempts, "attempts", 0, "stop after this many share attempts (0 = until interrupted)")
	mineCmd.Flags().Uint64Var(&mineSeed, "seed", 0, "random seed (0 = random)")
	mineCmd.Flags().DurationVar(&mineInterval, "interval", 0, "delay between share attempts")
	mineCmd.Flags().BoolVar(&mineQuiet, "quiet", false, "do not echo log lines to stdout")
}

// --- Status ---

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Summarize the current miner log",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		s, err := minerlog.SummarizeFile(cfg.LogPath())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if statusJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(s)
		}

		state := "running"
		if s.Stopped {
			state = "stopped"
		}
		fmt.Fprintf(out, "%-10s %s\n", "LOG", cfg.LogPath())
		fmt.Fprintf(out, "%-10s %s @ %s\n", "WORKER", s.Worker, s.Pool)
		fmt.Fprintf(out, "%-10s %s\n", "STATE", state)
		fmt.Fprintf(out, "%-10s %d\n", "DEVICES", s.Devices)
		fmt.Fprintf(out, "%-10s %.2f MH/s\n", "HASHRATE", s.Hashrate)
		fmt.Fprintf(out, "%-10s %d\n", "ATTEMPTS", s.Shares.Attempts)
		fmt.Fprintf(out, "%-10s %d (%.1f%%)\n", "ACCEPTED", s.Shares.Accepted, s.AcceptRate()*100)
		fmt.Fprintf(out, "%-10s %d\n", "REJECTED", s.Shares.Rejected)
		for _, reason := range sim.RejectReasons {
			if n := s.Reasons[reason]; n > 0 {
				fmt.Fprintf(out, "  %-8s %d\n", reason, n)
			}
		}
		if s.Malformed > 0 {
			fmt.Fprintf(out, "%-10s %d\n", "MALFORMED", s.Malformed)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")
}

// --- Tail ---

var (
	tailFromEnd bool
	tailPlain   bool
)

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Follow the miner log, surviving restarts of the miner",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		logger := newLogger()
		ctx, cancel := signalContext(logger)
		defer cancel()

		out := cmd.OutOrStdout()
		f := minerlog.Follower{Path: cfg.LogPath(), FromEnd: tailFromEnd, Logger: logger}
		for line := range f.Follow(ctx) {
			if !tailPlain {
				line = tuimodel.Colorize(line)
			}
			fmt.Fprintln(out, line)
		}
		return nil
	},
}

func init() {
	tailCmd.Flags().BoolVar(&tailFromEnd, "from-end", false, "skip lines already in the file")
	tailCmd.Flags().BoolVar(&tailPlain, "plain", false, "disable colours")
}

// --- Config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage minermock.yaml",
}

var configInitForce bool

var configInitCmd = &cobra.Command{
	Use:   "init [file]",
	Short: "Write a minermock.yaml with default settings",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if len(args) > 0 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil && !configInitForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.Save(config.Default(), path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Generated %s\n", path)
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a minermock.yaml",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if len(args) > 0 {
			path = args[0]
		}

		c, err := config.Load(path)
		if err != nil {
			return err
		}

		errs := config.Validate(c)
		if len(errs) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: valid (port %d, log %s)\n", path, c.Server.Port, c.LogPath())
			return nil
		}

		fmt.Fprintf(cmd.ErrOrStderr(), "%s: %d error(s)\n", path, len(errs))
		for _, e := range errs {
			fmt.Fprintf(cmd.ErrOrStderr(), "  • %s\n", e)
		}
		return fmt.Errorf("%s: invalid config", path)
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)
}

// --- Service ---

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Manage the minermock systemd user service",
}

var serviceInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install and start a systemd user service running minermock serve",
	RunE: func(cmd *cobra.Command, _ []string) error {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := service.Install(ctx, wd); err != nil {
			return err
		}
		path, _ := service.UnitPath()
		fmt.Fprintf(cmd.OutOrStdout(), "Installed %s\n", path)
		return nil
	},
}

var serviceUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Stop, disable and remove the systemd user service",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := service.Uninstall(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Uninstalled minermock.service")
		return nil
	},
}

var serviceStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the server is listening and the unit state",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(cfg.Server.Port))
		fmt.Fprintln(cmd.OutOrStdout(), service.Status(ctx, addr))
		return nil
	},
}

func init() {
	serviceCmd.AddCommand(serviceInstallCmd)
	serviceCmd.AddCommand(serviceUninstallCmd)
	serviceCmd.AddCommand(serviceStatusCmd)
}

// --- Version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "minermock %s (%s) built %s\n", buildinfo.Version, buildinfo.Commit, buildinfo.Date)
	},
}


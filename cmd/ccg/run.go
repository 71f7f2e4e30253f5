package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"ccg-hq/gateway/pkg/admin"
	"ccg-hq/gateway/pkg/config"
	"ccg-hq/gateway/pkg/proxy"
	"ccg-hq/gateway/pkg/server"
	"ccg-hq/gateway/pkg/store"
	"ccg-hq/gateway/pkg/telemetry"
	"ccg-hq/gateway/pkg/telemetry/metrics"
)

var runFlags struct {
	listenAddress string
	dataDir       string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the gateway",
	Long: `Start the gateway with the specified configuration.

The gateway listens on the configured address (127.0.0.1:7788 by default)
and proxies CLI assistant traffic to the configured upstream providers.
The operator API is served under /api/ on the same listener.

Examples:
  # Start with defaults
  ccg run

  # Start with a custom config
  ccg run --config /etc/ccg/config.yaml

  # Override the listen address
  ccg run --listen 0.0.0.0:8080

  # Validate config without starting
  ccg run --dry-run`,
	RunE: runGateway,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address (host:port)")
	runCmd.Flags().StringVar(&runFlags.dataDir, "data-dir", "", "override data directory")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the gateway")
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if err := applyFlagOverrides(cfg); err != nil {
		return err
	}

	// The level var lets the config watcher adjust verbosity at runtime.
	levelVar := new(slog.LevelVar)
	levelVar.Set(parseLogLevel(cfg.LogLevel))
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: levelVar,
	}))
	slog.SetDefault(logger)

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	fmt.Printf("CCG Gateway v%s\n", Version)
	if cfgFile != "" {
		fmt.Printf("Loading configuration from: %s\n", cfgFile)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory %q: %w", cfg.DataDir, err)
	}

	st, err := store.Open(cfg.GatewayDBPath())
	if err != nil {
		return err
	}
	defer st.Close()

	logs, err := telemetry.Open(cfg.LogsDBPath())
	if err != nil {
		return err
	}
	defer logs.Close()

	recorder := telemetry.NewRecorder(logs, telemetry.DefaultRecorderConfig())
	defer recorder.Close()

	pruner := telemetry.NewPruner(logs, cfg.Retention.Days, cfg.Retention.Schedule)
	if err := pruner.Start(); err != nil {
		return err
	}
	defer pruner.Stop()

	if cfgFile != "" {
		watcher, err := config.NewWatcher(cfgFile, cfg, func(next *config.Config) {
			levelVar.Set(parseLogLevel(next.LogLevel))
		})
		if err != nil {
			slog.Warn("config watcher unavailable", "error", err)
		} else {
			defer watcher.Close()
		}
	}

	m := metrics.New()
	proxyHandler := proxy.NewHandler(st, recorder, m)
	adminAPI := admin.New(st, logs, recorder, cfg.Host, cfg.Port)

	srv := server.New(server.Options{
		Addr:     cfg.ListenAddress(),
		Proxy:    proxyHandler,
		Admin:    adminAPI.Routes(),
		Metrics:  m.Handler(),
		Recorder: recorder,
	})

	fmt.Printf("✓ Gateway listening on %s\n", cfg.ListenAddress())
	fmt.Printf("✓ Operator API: http://%s/api/status\n", cfg.ListenAddress())
	fmt.Printf("✓ Metrics endpoint: http://%s/metrics\n", cfg.ListenAddress())
	fmt.Println("\nPress Ctrl+C to stop")

	return srv.Start(context.Background())
}

// applyFlagOverrides applies the run command's flags on top of the loaded
// configuration. Flags win over both the file and the environment.
func applyFlagOverrides(cfg *config.Config) error {
	if runFlags.listenAddress != "" {
		host, portStr, err := net.SplitHostPort(runFlags.listenAddress)
		if err != nil {
			return fmt.Errorf("invalid --listen address %q: %w", runFlags.listenAddress, err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("invalid --listen port %q: %w", portStr, err)
		}
		cfg.Host = host
		cfg.Port = port
	}
	if runFlags.dataDir != "" {
		cfg.DataDir = runFlags.dataDir
	}
	if runFlags.logLevel != "" {
		cfg.LogLevel = runFlags.logLevel
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg.Validate()
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

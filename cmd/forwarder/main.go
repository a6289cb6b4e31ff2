package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof" // Import pprof for profiling endpoints
	"os"
	"os/signal"
	"syscall"

	"github.com/epics-kafka/forwarder/pkg/config"
	"github.com/epics-kafka/forwarder/pkg/forwarder"
	"github.com/epics-kafka/forwarder/pkg/log"
	"github.com/epics-kafka/forwarder/pkg/metrics"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "forwarder",
	Short: "EPICS-to-Kafka PV forwarding engine",
	Long: `forwarder bridges EPICS process variable monitors to Kafka topics:
a bounded worker pool converts each PV update through one or more schema
converters and publishes the result, driven by a command topic that can
add or remove channel mappings while the process runs.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"forwarder version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(runCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the forwarder supervisor until stopped",
	RunE:  runForwarder,
}

func init() {
	runCmd.Flags().String("config", "", "Path to the YAML config file (required)")
	runCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address to serve /metrics, /health, /ready, /live on")
	runCmd.Flags().Bool("enable-pprof", false, "Enable pprof profiling endpoints on the metrics server")
	_ = runCmd.MarkFlagRequired("config")

	config.BindFlags(runCmd)
}

func runForwarder(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.ApplyOverrides(cfg, cmd); err != nil {
		return fmt.Errorf("failed to apply flag overrides: %w", err)
	}

	metrics.SetVersion(Version)
	metrics.RegisterComponent(metrics.ComponentForwarder, false, "starting")

	fwd, err := forwarder.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize forwarder: %w", err)
	}

	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	pprofEnabled, _ := cmd.Flags().GetBool("enable-pprof")
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.Handle("/health", metrics.HealthHandler())
		mux.Handle("/ready", metrics.ReadyHandler())
		mux.Handle("/live", metrics.LivenessHandler())
		if pprofEnabled {
			// net/http/pprof registers its handlers on http.DefaultServeMux.
			mux.Handle("/debug/pprof/", http.DefaultServeMux)
		}
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()
	fmt.Printf("✓ Metrics endpoint: http://%s/metrics\n", metricsAddr)
	fmt.Printf("✓ Health endpoints:\n")
	fmt.Printf("  - Health check: http://%s/health\n", metricsAddr)
	fmt.Printf("  - Readiness:    http://%s/ready\n", metricsAddr)
	fmt.Printf("  - Liveness:     http://%s/live\n", metricsAddr)
	if pprofEnabled {
		fmt.Printf("✓ Profiling endpoints enabled at http://%s/debug/pprof/\n", metricsAddr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- fwd.ForwardEpicsToKafka(ctx)
	}()

	fmt.Println("✓ Forwarder running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		fmt.Printf("\nReceived %s, shutting down...\n", sig)
		fwd.StopForwardingDueToSignal()
		cancel()
	case err := <-errCh:
		cancel()
		if err != nil {
			return fmt.Errorf("forwarder exited with error: %w", err)
		}
		fmt.Println("Forwarder exited on its own (exit command?).")
		return nil
	}

	if err := <-errCh; err != nil {
		return fmt.Errorf("forwarder shutdown error: %w", err)
	}
	fmt.Println("✓ Shutdown complete")
	return nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"searchwatch/internal/logging"
	"searchwatch/internal/monitor"
	"searchwatch/internal/notify"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	v := viper.New()
	v.SetDefault("base_url", "http://localhost:8080")
	v.SetDefault("queries", "transformer,graph,neural")
	v.SetDefault("size", 5)
	v.SetDefault("max_latency_ms", 2000)
	v.SetDefault("interval", 0)
	v.SetDefault("webhook_url", "")
	_ = v.BindEnv("base_url", "MONITOR_BASE_URL")
	_ = v.BindEnv("queries", "MONITOR_QUERIES")
	_ = v.BindEnv("size", "MONITOR_SIZE")
	_ = v.BindEnv("max_latency_ms", "MONITOR_MAX_LATENCY_MS")
	_ = v.BindEnv("interval", "MONITOR_INTERVAL")
	_ = v.BindEnv("webhook_url", "ALERT_WEBHOOK_URL")

	exitCode := monitor.ExitOK
	root := &cobra.Command{
		Use:     "swmon",
		Short:   "Synthetic monitor for search service health",
		Version: version,
		Long: `swmon probes the live search endpoint with a fixed set of queries,
classifies each check, and reports failing runs through the alert webhook
or, when none is configured, as self-recorded telemetry events.

Exit code 0 means all checks passed; 2 means at least one failure.`,
		SilenceUsage: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			exitCode = runMonitor(v)
			return nil
		},
	}

	flags := root.Flags()
	flags.String("base-url", "http://localhost:8080", "base URL of the monitored service")
	flags.String("queries", "transformer,graph,neural", "comma-separated probe queries")
	flags.Int("size", 5, "result size requested per probe")
	flags.Int64("max-latency-ms", 2000, "latency ceiling per check in milliseconds")
	flags.Int("interval", 0, "seconds between runs; 0 runs once and exits")
	flags.String("webhook-url", "", "alert webhook URL (defaults to ALERT_WEBHOOK_URL)")
	_ = v.BindPFlag("base_url", flags.Lookup("base-url"))
	_ = v.BindPFlag("queries", flags.Lookup("queries"))
	_ = v.BindPFlag("size", flags.Lookup("size"))
	_ = v.BindPFlag("max_latency_ms", flags.Lookup("max-latency-ms"))
	_ = v.BindPFlag("interval", flags.Lookup("interval"))
	_ = v.BindPFlag("webhook_url", flags.Lookup("webhook-url"))

	if err := root.Execute(); err != nil {
		return 1
	}
	return exitCode
}

func runMonitor(v *viper.Viper) int {
	logger := logging.NewLogger("warn", true)
	queries := splitQueries(v.GetString("queries"))
	if len(queries) == 0 {
		fmt.Fprintln(os.Stderr, "no queries configured")
		return 1
	}
	baseURL := v.GetString("base_url")
	webhook := strings.TrimSpace(v.GetString("webhook_url"))
	notifier := notify.New(webhook, notify.NewTelemetryFallback(baseURL, logger), logger)
	m := monitor.New(baseURL, queries, v.GetInt("size"), v.GetInt64("max_latency_ms"), notifier, logger, os.Stdout)

	interval := v.GetInt("interval")
	if interval <= 0 {
		_, code := m.RunOnce(context.Background())
		return code
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return m.Loop(ctx, time.Duration(interval)*time.Second)
}

func splitQueries(s string) []string {
	var out []string
	for _, q := range strings.Split(s, ",") {
		q = strings.TrimSpace(q)
		if q != "" {
			out = append(out, q)
		}
	}
	return out
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/pacegate/pacegate/internal/adapter/outbound/prom"
	"github.com/pacegate/pacegate/internal/config"
	"github.com/pacegate/pacegate/internal/domain/throttle"
	"github.com/pacegate/pacegate/internal/service"
)

var (
	simPolicy        string
	simStreams       int
	simRequests      int
	simLatency       time.Duration
	simCancelEvery   int
	simThrottleEvery int
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Drive a synthetic workload through a throttle policy",
	Long: `Drive a synthetic concurrent workload through a configured policy.

Each stream acquires its sequence numbers concurrently and out of order, the
way a paginated fetch issues its pages. Optionally, every Nth acquisition is
abandoned and retried (exercising cancellation), and every Nth completion
simulates a remote throttling signal (exercising backoff). When metrics are
enabled in the config, Prometheus metrics are served for the duration of the
run.

Example:
  pacegate simulate --policy default --streams 4 --requests 50`,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().StringVar(&simPolicy, "policy", "default", "policy to drive the workload through")
	simulateCmd.Flags().IntVar(&simStreams, "streams", 2, "number of concurrent ordered streams")
	simulateCmd.Flags().IntVar(&simRequests, "requests", 20, "requests per stream")
	simulateCmd.Flags().DurationVar(&simLatency, "latency", 20*time.Millisecond, "maximum simulated request latency")
	simulateCmd.Flags().IntVar(&simCancelEvery, "cancel-every", 0, "abandon and retry every Nth acquisition (0 = never)")
	simulateCmd.Flags().IntVar(&simThrottleEvery, "throttle-every", 0, "simulate a remote throttling signal every Nth completion (0 = never)")
	rootCmd.AddCommand(simulateCmd)
}

// simStats aggregates workload counters across streams.
type simStats struct {
	admitted  atomic.Int64
	completed atomic.Int64
	cancelled atomic.Int64
	backoffs  atomic.Int64
	aborted   atomic.Int64
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))
	if file := config.ConfigFileUsed(); file != "" {
		slog.Info("loaded config", "file", file)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var obs throttle.Observer
	if cfg.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		obs = prom.NewObserver(registry)

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		go func() {
			slog.Info("serving metrics", "addr", cfg.Metrics.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Warn("metrics server stopped", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	reg, err := service.NewRegistry(cfg.Policies, obs)
	if err != nil {
		return err
	}

	var stats simStats
	start := time.Now()

	var wg sync.WaitGroup
	for s := 0; s < simStreams; s++ {
		gate, err := reg.Gate(simPolicy)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func(stream int, gate *throttle.Gate) {
			defer wg.Done()
			runStream(ctx, stream, gate, &stats)
		}(s, gate)
	}
	wg.Wait()

	elapsed := time.Since(start)
	slog.Info("simulation finished",
		"policy", simPolicy,
		"streams", simStreams,
		"admitted", stats.admitted.Load(),
		"completed", stats.completed.Load(),
		"cancelled", stats.cancelled.Load(),
		"backoffs", stats.backoffs.Load(),
		"aborted", stats.aborted.Load(),
		"elapsed", elapsed.Round(time.Millisecond))

	fmt.Printf("admitted %d, completed %d, cancelled %d, backoffs %d in %s\n",
		stats.admitted.Load(), stats.completed.Load(), stats.cancelled.Load(),
		stats.backoffs.Load(), elapsed.Round(time.Millisecond))

	return nil
}

// runStream issues one stream's sequence numbers concurrently and in reverse
// launch order, so admission ordering is actually exercised rather than
// falling out of goroutine scheduling.
func runStream(ctx context.Context, stream int, gate *throttle.Gate, stats *simStats) {
	var wg sync.WaitGroup
	for seq := simRequests - 1; seq >= 0; seq-- {
		wg.Add(1)
		go func(seq int) {
			defer wg.Done()
			runRequest(ctx, stream, gate, seq, stats)
		}(seq)
	}
	wg.Wait()
}

func runRequest(ctx context.Context, stream int, gate *throttle.Gate, seq int, stats *simStats) {
	permit, err := gate.Acquire(ctx, seq)
	if err != nil {
		stats.aborted.Add(1)
		return
	}
	stats.admitted.Add(1)

	// Every Nth acquisition is abandoned before "sending", then retried
	// under the same sequence number, as a caller skipping a request would.
	if simCancelEvery > 0 && seq%simCancelEvery == simCancelEvery-1 {
		if err := permit.Cancel(); err != nil {
			slog.Error("cancel failed", "stream", stream, "seq", seq, "error", err)
			return
		}
		stats.cancelled.Add(1)

		permit, err = gate.Acquire(ctx, seq)
		if err != nil {
			stats.aborted.Add(1)
			return
		}
		stats.admitted.Add(1)
	}

	if simLatency > 0 {
		select {
		case <-time.After(time.Duration(rand.Int63n(int64(simLatency) + 1))):
		case <-ctx.Done():
		}
	}

	if err := permit.Complete(); err != nil {
		slog.Error("complete failed", "stream", stream, "seq", seq, "error", err)
		return
	}
	completed := stats.completed.Add(1)

	if simThrottleEvery > 0 && completed%int64(simThrottleEvery) == 0 {
		gate.Backoff()
		stats.backoffs.Add(1)
	}
}

// parseLogLevel maps a config log level string to a slog.Level.
// Unknown values fall back to info.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

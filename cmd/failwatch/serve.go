package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/cuemby/failwatch/pkg/api"
	"github.com/cuemby/failwatch/pkg/capture"
	"github.com/cuemby/failwatch/pkg/config"
	"github.com/cuemby/failwatch/pkg/debounce"
	"github.com/cuemby/failwatch/pkg/events"
	"github.com/cuemby/failwatch/pkg/feed"
	"github.com/cuemby/failwatch/pkg/health"
	"github.com/cuemby/failwatch/pkg/hostname"
	"github.com/cuemby/failwatch/pkg/ledger"
	"github.com/cuemby/failwatch/pkg/log"
	"github.com/cuemby/failwatch/pkg/metrics"
	"github.com/cuemby/failwatch/pkg/persist"
	"github.com/cuemby/failwatch/pkg/reconcile"
	"github.com/cuemby/failwatch/pkg/storage"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// limiterIdle is how long an ingest client may stay silent before its
// limiter is dropped
const limiterIdle = 10 * time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Capture failing hosts and serve the command API",
	Long: `Start the capture pipeline and the HTTP command API.

Events arrive through POST /api/v1/events and, when configured, from stdin,
JSON-lines files and a Redis pub/sub channel. The ledger is restored from the
configured store on startup.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if addr, _ := cmd.Flags().GetString("addr"); cmd.Flags().Changed("addr") {
			cfg.API.Addr = addr
		}
		if cmd.Flags().Changed("stdin") {
			cfg.Feed.Stdin, _ = cmd.Flags().GetBool("stdin")
		}
		if files, _ := cmd.Flags().GetStringSlice("file"); len(files) > 0 {
			cfg.Feed.Files = append(cfg.Feed.Files, files...)
		}
		return runServe(cfg)
	},
}

func init() {
	serveCmd.Flags().String("addr", api.DefaultAddr, "Address for the HTTP API")
	serveCmd.Flags().Bool("stdin", false, "Read JSON-lines events from stdin")
	serveCmd.Flags().StringSlice("file", nil, "Read JSON-lines events from a file (repeatable)")
}

func runServe(cfg *config.Config) error {
	logger := log.WithComponent("serve")
	metrics.SetVersion(Version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, cfg.StoreConfig())
	if err != nil {
		metrics.UpdateComponent(metrics.ComponentStorage, false, err.Error())
		return fmt.Errorf("failed to open %s store: %w", cfg.Storage.Driver, err)
	}
	defer store.Close()
	metrics.UpdateComponent(metrics.ComponentStorage, true, "")

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	normalizer := hostname.NewNormalizer(cfg.NormalizerPolicy())
	gate := debounce.NewGate(cfg.Debounce.Window, cfg.Debounce.MaxEntries)
	adapter := persist.NewAdapter(store, cfg.Storage.Key, broker)

	l := ledger.New(cfg.Ledger.MaxRecords, adapter, normalizer)
	restored := l.Load(ctx)
	metrics.UpdateComponent(metrics.ComponentLedger, true, "")

	pipeline := capture.NewPipeline(normalizer, gate, l)
	coordinator := reconcile.NewCoordinator(cfg.Proxy.Endpoint).
		WithMode(reconcile.Mode(cfg.Proxy.Mode)).
		WithTimeout(cfg.Proxy.Timeout).
		WithMaxConcurrency(cfg.Proxy.MaxConcurrency)

	server := api.NewServer(api.Config{
		Addr:                cfg.API.Addr,
		IngestRate:          cfg.API.IngestRate,
		IngestBurst:         cfg.API.IngestBurst,
		WatchOriginPatterns: cfg.API.WatchOrigins,
	}, api.NewCommands(l, coordinator), pipeline, broker)

	logger.Info().
		Str("store", cfg.Storage.Driver).
		Int("restored", restored).
		Int("max_records", cfg.Ledger.MaxRecords).
		Bool("fold_to_registrable", cfg.Normalizer.FoldToRegistrable).
		Str("proxy", cfg.Proxy.Endpoint).
		Msg("failwatch starting")

	collector := metrics.NewCollector(l, gate, store, cfg.Metrics.HeartbeatInterval, log.WithComponent("heartbeat"))
	collector.Start()
	defer collector.Stop()

	if cfg.Proxy.HealthInterval > 0 {
		checker, err := health.NewEndpointChecker(cfg.Proxy.Endpoint)
		if err != nil {
			return err
		}
		monitor := health.NewMonitor(metrics.ComponentProxy, checker, health.Config{
			Interval: cfg.Proxy.HealthInterval,
			Timeout:  5 * time.Second,
			Retries:  3,
		})
		monitor.Start()
		defer monitor.Stop()
	}

	errCh := make(chan error, 2)
	go func() {
		if err := server.Start(); err != nil {
			errCh <- err
		}
	}()

	if cfg.API.GRPCHealthAddr != "" {
		hs := api.NewHealthServer(5 * time.Second)
		go func() {
			if err := hs.Start(cfg.API.GRPCHealthAddr); err != nil {
				errCh <- fmt.Errorf("grpc health: %w", err)
			}
		}()
		defer hs.Stop()
	}

	go sweepLoop(ctx, gate, server.RateLimiter(), cfg.Debounce.SweepInterval)

	sources, closeSources, err := buildSources(cfg)
	if err != nil {
		return err
	}
	defer closeSources()

	var wg sync.WaitGroup
	for _, src := range sources {
		wg.Add(1)
		go func(src feed.Source) {
			defer wg.Done()
			if err := src.Run(ctx, pipeline); err != nil && ctx.Err() == nil {
				logger.Error().Err(err).Str("source", src.Name()).Msg("event source stopped")
			}
		}(src)
	}

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server failed, shutting down")
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("API shutdown incomplete")
	}

	// A source blocked on stdin only returns once its input closes
	drained := make(chan struct{})
	go func() {
		wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-shutdownCtx.Done():
		logger.Warn().Msg("event sources still running at exit")
	}

	logger.Info().Int("records", l.Len()).Msg("shutdown complete")
	return nil
}

// sweepLoop bounds debounce state and idle rate limiters
func sweepLoop(ctx context.Context, gate *debounce.Gate, limiter *api.RateLimiter, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	logger := log.WithComponent("sweep")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			swept := gate.Sweep(now)
			idle := limiter.Cleanup(limiterIdle)
			if swept > 0 || idle > 0 {
				logger.Debug().Int("debounce_keys", swept).Int("limiters", idle).Msg("swept")
			}
		}
	}
}

// buildSources opens the configured event sources. The returned func closes
// any files and clients they hold.
func buildSources(cfg *config.Config) ([]feed.Source, func(), error) {
	var sources []feed.Source
	var closers []func() error

	closeAll := func() {
		for _, c := range closers {
			_ = c()
		}
	}

	if cfg.Feed.Stdin {
		sources = append(sources, feed.NewLineSource("stdin", os.Stdin))
	}

	for _, path := range cfg.Feed.Files {
		f, err := os.Open(path)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("failed to open event file: %w", err)
		}
		closers = append(closers, f.Close)
		sources = append(sources, feed.NewLineSource(path, f))
	}

	if cfg.Feed.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Feed.RedisAddr,
			Password: cfg.Storage.Redis.Password,
		})
		closers = append(closers, client.Close)
		sources = append(sources, feed.NewRedisSource(client, cfg.Feed.RedisChannel))
	}

	return sources, closeAll, nil
}

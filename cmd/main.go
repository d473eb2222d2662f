package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/okian/mangacatch/internal/adapters/http/api"
	"github.com/okian/mangacatch/internal/adapters/http/swagger"
	"github.com/okian/mangacatch/internal/adapters/repository"
	"github.com/okian/mangacatch/internal/adapters/sensor"
	service "github.com/okian/mangacatch/internal/app"
	"github.com/okian/mangacatch/internal/config"
	"github.com/okian/mangacatch/internal/domain/catalog"
	"github.com/okian/mangacatch/internal/domain/cluster"
	"github.com/okian/mangacatch/internal/domain/falling"
	"github.com/okian/mangacatch/internal/domain/model"
	"github.com/okian/mangacatch/internal/domain/slots"
	"github.com/okian/mangacatch/pkg/logger"
	"github.com/okian/mangacatch/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	engineMetricsInterval     = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics.
	// We collect our own system metrics instead.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() { _ = logger.Sync() }()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	loggerInstance := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	engine, err := buildEngine(ctx, cfg)
	if err != nil {
		loggerInstance.Error(ctx, "failed to build engine", logger.Error(err))
		return
	}
	if err := engine.Start(ctx); err != nil {
		loggerInstance.Error(ctx, "failed to start engine", logger.Error(err))
		return
	}
	defer engine.Stop()

	go startSystemMetricsUpdater(ctx)
	go startEngineMetricsUpdater(ctx, engine)

	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(engine).Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		loggerInstance.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			loggerInstance.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	loggerInstance.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(ctx, "server stopped")
}

// buildEngine assembles the engine and its collaborators from cfg.
func buildEngine(ctx context.Context, cfg *config.Config) (*service.Engine, error) {
	cat := catalog.Default()
	if cfg.CatalogPath != "" {
		loaded, err := catalog.Load(cfg.CatalogPath)
		if err != nil {
			return nil, fmt.Errorf("load catalog: %w", err)
		}
		cat = loaded
	}

	source, err := buildSource(cfg)
	if err != nil {
		return nil, err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	engine, err := service.New(
		service.WithLogger(logger.Get().Named("engine")),
		service.WithCatalog(cat),
		service.WithStore(store),
		service.WithSource(source),
		service.WithTickRate(cfg.TickHz),
		service.WithScreen(cfg.ScreenWidth, cfg.ScreenHeight),
		service.WithSpeedMultipliers(cfg.SpeedMultipliers),
		service.WithPhaseDurations(phaseDurations(cfg)),
		service.WithHoldTime(cfg.HoldTime()),
		service.WithLeaveTimeout(cfg.LeaveTimeout()),
		service.WithSlotOptions(
			slots.WithGraceTime(cfg.GraceTime()),
			slots.WithMaxSlots(cfg.MaxPlayers),
			slots.WithStrict(cfg.StrictInvariants),
		),
		service.WithFallingOptions(
			falling.WithLanes(cfg.LaneCount),
			falling.WithCollider(collider(cfg)),
			falling.WithSpawnChance(cfg.SpawnChance),
			falling.WithLaneCooldown(cfg.LaneCooldownTicks),
			falling.WithFallSpeed(cfg.MinFallSpeed, cfg.MaxFallSpeed),
		),
	)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return engine, nil
}

// clusterer returns the clustering strategy named by cfg.Clusterer.
func clusterer(cfg *config.Config) cluster.Clusterer {
	if cfg.Clusterer == config.ClustererGrid {
		return cluster.NewGridClusterer(cfg.MergeDistanceMM)
	}
	return cluster.NewSequentialClusterer(cfg.MergeDistanceMM)
}

// buildSource returns the tracking backend named by cfg.Sensor.
func buildSource(cfg *config.Config) (sensor.Source, error) {
	switch cfg.Sensor {
	case config.SensorSimulated:
		return sensor.NewSimulatedSource(cfg.SimulatedPlayers, 0, uint64(time.Now().UnixNano())), nil
	case config.SensorRangefinder:
		return sensor.NewRangefinderSource(cfg.SerialPort, cfg.SerialBaud,
			// WithClusterParams resets the clusterer, so it goes first.
			sensor.WithClusterParams(cluster.Params{
				MergeDistance: cfg.MergeDistanceMM,
				MinWidth:      cfg.MinWidthMM,
				MaxWidth:      cfg.MaxWidthMM,
			}),
			sensor.WithClusterer(clusterer(cfg)),
			sensor.WithHoldTime(cfg.HoldTime()),
			sensor.WithArea(cfg.RangefinderSpanMM, cfg.RangefinderDepthMM),
		), nil
	case config.SensorTelemetry:
		return sensor.NewTelemetrySource(cfg.TelemetryAddr), nil
	case config.SensorReplay:
		return sensor.NewReplaySource(cfg.ReplayPath, sensor.WithReplayLoop(true)), nil
	default:
		return nil, fmt.Errorf("%w: sensor: unknown sensor %q", config.ErrInvalidConfig, cfg.Sensor)
	}
}

func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	if cfg.RankingBackend == config.RankingMemory {
		return repository.NewMemoryStore(repository.WithMaxEntries(cfg.MaxEntries)), nil
	}
	store, err := repository.OpenSQLite(ctx, cfg.RankingPath, repository.WithMaxEntries(cfg.MaxEntries))
	if err != nil {
		return nil, fmt.Errorf("open ranking store: %w", err)
	}
	return store, nil
}

func collider(cfg *config.Config) falling.Collider {
	if cfg.CollisionPolicy == config.CollisionBand {
		return falling.Band{Above: cfg.BandAbovePX, Below: cfg.BandBelowPX, Lateral: cfg.BandLateralPX}
	}
	return falling.Radius{R: cfg.CatchRadiusPX}
}

func phaseDurations(cfg *config.Config) map[model.Phase]time.Duration {
	out := make(map[model.Phase]time.Duration)
	for name, d := range cfg.PhaseDurations() {
		if p := model.Phase(name); p.Valid() && p != model.PhaseTitle {
			out[p] = d
		}
	}
	return out
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startEngineMetricsUpdater refreshes gauges the tick does not own.
func startEngineMetricsUpdater(ctx context.Context, engine *service.Engine) {
	ticker := time.NewTicker(engineMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateEngineMetrics(engine)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateEngineMetrics updates engine-level gauges from its stats.
func updateEngineMetrics(engine *service.Engine) {
	stats := engine.GetStats()
	if pending, ok := stats["recorderPending"].(int); ok {
		metrics.UpdateRecorderQueueSize(pending)
	}
}

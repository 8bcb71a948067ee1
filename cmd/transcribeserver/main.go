// Command transcribeserver runs the HTTP speech-to-text transcription
// service described by the adaptive processing pipeline: ModelCache,
// AudioSlicer, SliceCompactor, ConcurrencyOptimizer, Dispatcher, Aggregator
// and StrategyRouter. Process lifecycle follows the teacher's main.go
// (slog setup, signal handling) generalised with oklog/run for the
// server/signal actor pair.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oklog/run"
	"go.opentelemetry.io/otel"

	"github.com/whisperpipe/transcribe-api/internal/applog"
	"github.com/whisperpipe/transcribe-api/internal/concurrency"
	"github.com/whisperpipe/transcribe-api/internal/config"
	"github.com/whisperpipe/transcribe-api/internal/dispatch"
	"github.com/whisperpipe/transcribe-api/internal/engine/whisper"
	"github.com/whisperpipe/transcribe-api/internal/httpapi"
	"github.com/whisperpipe/transcribe-api/internal/metrics"
	"github.com/whisperpipe/transcribe-api/internal/modelcache"
	"github.com/whisperpipe/transcribe-api/internal/modelrepo"
	"github.com/whisperpipe/transcribe-api/internal/router"
	"github.com/whisperpipe/transcribe-api/internal/slicer"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logger, closeLog, err := applog.New(applog.Options{Dir: "logs", Level: slog.LevelInfo, JSON: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()
	slog.SetDefault(logger)

	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("failed to load config", slog.String("err", err.Error()))
		os.Exit(1)
	}
	cfg.SetDefaults()
	if err := cfg.IsValid(); err != nil {
		slog.Error("invalid config", slog.String("err", err.Error()))
		os.Exit(1)
	}

	metricsShutdown, err := metrics.InitProvider("transcribe-api")
	if err != nil {
		slog.Error("failed to init metrics provider", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = metricsShutdown(ctx)
	}()

	m, err := metrics.New(otel.GetMeterProvider())
	if err != nil {
		slog.Error("failed to init metrics instruments", slog.String("err", err.Error()))
		os.Exit(1)
	}

	cache := modelcache.New(cfg.ModelsDir, modelrepo.NewHTTPFetcher("https://huggingface.co"), whisper.Constructor{NumThreads: cfg.Workers})
	cache.Metrics = m
	semaphore := dispatch.NewGlobalSemaphore(cfg.MaxConcurrentLimit)
	semaphore.Metrics = m
	optimizer := concurrency.New(concurrency.Params{
		MinConcurrent:      cfg.MinConcurrent,
		MaxConcurrentLimit: cfg.MaxConcurrentLimit,
		SlicesPerThread:    cfg.SlicesPerThread,
	}, nil)

	rt := &router.Router{
		Cache:     cache,
		Semaphore: semaphore,
		Optimizer: optimizer,
		Metrics:   m,
		SliceParams: slicer.Params{
			ThresholdDB:   cfg.ThresholdDB,
			MinLengthMS:   cfg.MinSliceLength,
			MinIntervalMS: cfg.MinInterval,
			HopSizeMS:     cfg.HopSize,
			MaxSilKeptMS:  cfg.MaxSilKept,
		},
		MaxTotalSlices:     cfg.MaxTotalSlices,
		AllowedAudioTypes:  config.AllowedAudioTypes,
		DefaultConcurrency: cfg.MaxConcurrent,
		Logger:             logger,
	}

	server := &httpapi.Server{Config: &cfg, Cache: cache, Router: rt, Logger: logger}
	mux := http.NewServeMux()
	server.Register(mux)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: mux,
	}

	var g run.Group
	{
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
		g.Add(func() error {
			<-sig
			slog.Info("received shutdown signal")
			return nil
		}, func(error) {
			close(sig)
		})
	}
	{
		g.Add(func() error {
			slog.Info("starting http server", slog.String("addr", httpServer.Addr))
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		}, func(error) {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := httpServer.Shutdown(ctx); err != nil {
				slog.Error("failed to shut down http server cleanly", slog.String("err", err.Error()))
			}
		})
	}

	if err := g.Run(); err != nil {
		slog.Error("exiting", slog.String("err", err.Error()))
	}

	if err := cache.Clear(); err != nil {
		slog.Error("failed to clear model cache on shutdown", slog.String("err", err.Error()))
	}

	slog.Info("transcribe-api has stopped")
}

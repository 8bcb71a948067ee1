package router

import (
	"context"
	"log/slog"

	"github.com/whisperpipe/transcribe-api/internal/apperr"
	"github.com/whisperpipe/transcribe-api/internal/concurrency"
	"github.com/whisperpipe/transcribe-api/internal/dispatch"
	"github.com/whisperpipe/transcribe-api/internal/engine"
	"github.com/whisperpipe/transcribe-api/internal/metrics"
	"github.com/whisperpipe/transcribe-api/internal/modelcache"
	"github.com/whisperpipe/transcribe-api/internal/slicer"
	"github.com/whisperpipe/transcribe-api/internal/tempstore"
)

// Options are the per-request parameters a router invocation needs (spec
// §6, kept distinct from the process-wide Router per SPEC_FULL's
// "RequestConcurrency vs GlobalTranscribeLimit" design note).
type Options struct {
	ModelKey           modelcache.Key
	BeamSize           int
	Language           string
	AutoSlice          bool
	MaxConcurrent      int // 0 = unset; optimizer decides
	ConsiderSystemLoad bool
}

// Router wires ModelCache, AudioSlicer, SliceCompactor, ConcurrencyOptimizer,
// Dispatcher, Aggregator and TranscribeAdapter together (spec §4.7).
type Router struct {
	Cache              *modelcache.Cache
	Semaphore          *dispatch.GlobalSemaphore
	Optimizer          *concurrency.Optimizer
	SliceParams        slicer.Params
	MaxTotalSlices     int
	AllowedAudioTypes  map[string]bool
	DefaultConcurrency int
	Logger             *slog.Logger

	// Metrics is optional; when set, Process and its collaborators
	// instrument the testable properties in spec §8.
	Metrics *metrics.Metrics
}

func (r *Router) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Process selects a strategy and executes it, guaranteeing store.Cleanup
// semantics are honored by the caller on every return path (spec §4.7
// "cleanup contract").
func (r *Router) Process(ctx context.Context, files []FileInfo, opts Options, store *tempstore.Store) (Response, error) {
	if len(files) == 0 {
		return Response{}, apperr.Validation("at least one file is required")
	}

	adapter, err := r.adapterFor(ctx, opts.ModelKey)
	if err != nil {
		return Response{}, err
	}

	strategy := SelectStrategy(files, opts.AutoSlice)
	r.logger().Info("routing transcription request", slog.String("strategy", string(strategy)), slog.Int("files", len(files)))

	var results []FileResult
	switch strategy {
	case StrategySliceOnly:
		res, err := r.processSliceOnly(ctx, files[0], opts, adapter, store)
		if err != nil {
			results = []FileResult{{Filename: files[0].Filename, Error: err.Error()}}
		} else {
			results = []FileResult{res}
		}
	case StrategyMixed:
		results = r.processMixed(ctx, files, opts, adapter, store)
	default:
		results = r.processBatchOnly(ctx, files, opts, adapter)
	}

	r.recordRequest(ctx, strategy, results)

	return Response{Strategy: strategy, ProcessedFiles: len(results), Files: results}, nil
}

// recordRequest reports the request's strategy and outcome: "ok" when no
// file result carries an error, "partial_failure" otherwise.
func (r *Router) recordRequest(ctx context.Context, strategy Strategy, results []FileResult) {
	if r.Metrics == nil {
		return
	}
	status := "ok"
	for _, res := range results {
		if res.Error != "" {
			status = "partial_failure"
			break
		}
	}
	r.Metrics.RecordRequest(ctx, string(strategy), status)
}

func (r *Router) adapterFor(ctx context.Context, key modelcache.Key) (*engine.Adapter, error) {
	handle, err := r.Cache.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	eng, ok := handle.(engine.Engine)
	if !ok {
		return nil, apperr.Internal(nil, "model handle for %s does not implement engine.Engine", key)
	}
	adapter := engine.NewAdapter(eng, r.Semaphore)
	adapter.Metrics = r.Metrics
	return adapter, nil
}

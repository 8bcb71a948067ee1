package router

import (
	"context"
	"fmt"
	"time"

	"github.com/whisperpipe/transcribe-api/internal/aggregate"
	"github.com/whisperpipe/transcribe-api/internal/apperr"
	"github.com/whisperpipe/transcribe-api/internal/compactor"
	"github.com/whisperpipe/transcribe-api/internal/dispatch"
	"github.com/whisperpipe/transcribe-api/internal/engine"
	"github.com/whisperpipe/transcribe-api/internal/slicer"
	"github.com/whisperpipe/transcribe-api/internal/tempstore"
)

// processSliceOnly implements spec §4.7's slice_only strategy: slice the
// file, compact the plan if oversize, compute concurrency, dispatch one
// task per slice, then aggregate.
func (r *Router) processSliceOnly(ctx context.Context, f FileInfo, opts Options, adapter *engine.Adapter, store *tempstore.Store) (FileResult, error) {
	wave, err := slicer.LoadWAV(f.TempPath)
	if err != nil {
		return FileResult{}, apperr.SliceFailed(err, "failed to decode %s", f.Filename)
	}

	sliceStart := time.Now()
	chunks, err := slicer.Slice(wave.Analysis(), wave.SampleRate, r.SliceParams)
	if r.Metrics != nil {
		r.Metrics.SliceDuration.Record(ctx, time.Since(sliceStart).Seconds())
	}
	if err != nil {
		return FileResult{}, apperr.SliceFailed(err, "failed to slice %s", f.Filename)
	}
	if len(chunks) == 0 {
		return FileResult{}, apperr.SliceFailed(nil, "slicer produced zero chunks for %s", f.Filename)
	}

	entries := make([]compactor.Entry, len(chunks))
	for i, c := range chunks {
		startSec := float64(c.Start) / float64(wave.SampleRate)
		entries[i] = compactor.NewEntry(i, startSec, wave.Sub(c.Start, c.End))
	}

	maxTotal := r.MaxTotalSlices
	if maxTotal < 1 {
		maxTotal = len(entries)
	}
	batchCounter := 0
	entries, err = compactor.Compact(entries, maxTotal, func(int) string {
		batchCounter++
		path, werr := store.CreateTemp("", fmt.Sprintf("slice-batch-%d-*.wav", batchCounter))
		if werr != nil {
			path = ""
		}
		return path
	})
	if err != nil {
		return FileResult{}, apperr.SliceFailed(err, "failed to compact slice plan for %s", f.Filename)
	}

	if err := materializeEntries(entries, store); err != nil {
		return FileResult{}, apperr.SliceFailed(err, "failed to write slice artifacts for %s", f.Filename)
	}

	concurrency := r.Optimizer.Compute(ctx, len(entries), wave.DurationSec(), opts.ConsiderSystemLoad, opts.MaxConcurrent)

	tasks := make([]dispatch.Task[aggregate.SliceResult], len(entries))
	for i, e := range entries {
		e := e
		tasks[i] = func(taskCtx context.Context) aggregate.SliceResult {
			res, terr := adapter.Transcribe(taskCtx, e.Path, opts.BeamSize, opts.Language)
			if terr != nil {
				return aggregate.SliceResult{Index: e.Index, SliceStartTime: e.StartTimeSec, Err: terr}
			}
			return aggregate.SliceResult{Index: e.Index, SliceStartTime: e.StartTimeSec, Result: res}
		}
	}

	if r.Metrics != nil {
		r.Metrics.ConcurrencyInUse.Add(ctx, int64(concurrency))
		defer r.Metrics.ConcurrencyInUse.Add(ctx, -int64(concurrency))
	}

	sliceResults := dispatch.Dispatch(ctx, tasks, concurrency)
	agg := aggregate.Aggregate(sliceResults)

	if r.Metrics != nil && agg.FailedSlices > 0 {
		r.Metrics.SlicesFailed.Add(ctx, int64(agg.FailedSlices))
	}

	return FileResult{
		Filename:            f.Filename,
		Transcript:          agg.Transcript,
		Language:            agg.Language,
		LanguageProbability: agg.LanguageProbability,
		Segments:            agg.Segments,
		TotalSegments:       agg.TotalSegments,
		SliceCount:          len(entries),
		ProcessingMode:      ProcessingModeSliced,
		OriginalDuration:    wave.DurationSec(),
		Warning:             agg.Warning,
	}, nil
}

// materializeEntries writes any entry whose Path is still empty (i.e. not
// already written by compactor.Compact) to a temp WAV file.
func materializeEntries(entries []compactor.Entry, store *tempstore.Store) error {
	for i := range entries {
		if entries[i].Path != "" {
			continue
		}
		path, err := store.CreateTemp("", fmt.Sprintf("slice-%d-*.wav", entries[i].Index))
		if err != nil {
			return err
		}
		if err := slicer.WriteWAV(path, entries[i].Waveform); err != nil {
			return err
		}
		entries[i].Path = path
	}
	return nil
}

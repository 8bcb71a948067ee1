package router

import (
	"context"

	"github.com/whisperpipe/transcribe-api/internal/dispatch"
	"github.com/whisperpipe/transcribe-api/internal/engine"
)

// processBatchOnly implements spec §4.7's batch_only strategy: files are
// filtered by allowed content type, then transcribed whole, in parallel.
func (r *Router) processBatchOnly(ctx context.Context, files []FileInfo, opts Options, adapter *engine.Adapter) []FileResult {
	results := make([]FileResult, len(files))
	var validIdx []int

	for i, f := range files {
		if len(r.AllowedAudioTypes) > 0 && !r.AllowedAudioTypes[f.ContentType] {
			results[i] = FileResult{Filename: f.Filename, Error: "unsupported content type: " + f.ContentType}
			continue
		}
		validIdx = append(validIdx, i)
	}

	if len(validIdx) == 0 {
		return results
	}

	concurrency := len(validIdx)
	if opts.MaxConcurrent > 0 && opts.MaxConcurrent < concurrency {
		concurrency = opts.MaxConcurrent
	} else if r.DefaultConcurrency > 0 && r.DefaultConcurrency < concurrency {
		concurrency = r.DefaultConcurrency
	}

	tasks := make([]dispatch.Task[FileResult], len(validIdx))
	for j, idx := range validIdx {
		f := files[idx]
		tasks[j] = func(taskCtx context.Context) FileResult {
			res, err := adapter.Transcribe(taskCtx, f.TempPath, opts.BeamSize, opts.Language)
			if err != nil {
				return FileResult{Filename: f.Filename, Error: err.Error()}
			}
			return FileResult{
				Filename:            f.Filename,
				Transcript:          res.Transcript,
				Language:            res.Language,
				LanguageProbability: res.LanguageProbability,
				Segments:            res.Segments,
				TotalSegments:       len(res.Segments),
				ProcessingMode:      ProcessingModeBatch,
				OriginalDuration:    f.DurationSec,
			}
		}
	}

	batchResults := dispatch.Dispatch(ctx, tasks, concurrency)
	for j, idx := range validIdx {
		results[idx] = batchResults[j]
	}
	return results
}

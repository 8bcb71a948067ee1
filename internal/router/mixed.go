package router

import (
	"context"

	"github.com/whisperpipe/transcribe-api/internal/engine"
	"github.com/whisperpipe/transcribe-api/internal/tempstore"
)

// processMixed implements spec §4.7's mixed strategy: shorts run through
// batch_only concurrently, longs run slice_only sequentially across files
// (but with slices inside each file still parallel) to bound peak memory.
func (r *Router) processMixed(ctx context.Context, files []FileInfo, opts Options, adapter *engine.Adapter, store *tempstore.Store) []FileResult {
	var shorts, longs []FileInfo
	var shortIdx, longIdx []int
	for i, f := range files {
		if f.RequiresSlicing {
			longIdx = append(longIdx, i)
			longs = append(longs, f)
		} else {
			shortIdx = append(shortIdx, i)
			shorts = append(shorts, f)
		}
	}

	results := make([]FileResult, len(files))

	if len(shorts) > 0 {
		shortResults := r.processBatchOnly(ctx, shorts, opts, adapter)
		for j, res := range shortResults {
			results[shortIdx[j]] = res
		}
	}

	for j, f := range longs {
		res, err := r.processSliceOnly(ctx, f, opts, adapter, store)
		if err != nil {
			res = FileResult{Filename: f.Filename, Error: err.Error()}
		}
		results[longIdx[j]] = res
	}

	return results
}

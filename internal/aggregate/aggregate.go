// Package aggregate implements Aggregator (spec §4.6): merges the
// per-slice transcription results of one file into a single FileResult,
// re-anchoring segment timestamps to the original file's timeline.
package aggregate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/whisperpipe/transcribe-api/internal/engine"
)

// SliceResult is the outcome of transcribing one slice: either a populated
// result or an error (spec §3).
type SliceResult struct {
	Index          int
	SliceStartTime float64
	Result         engine.Result
	Err            error
}

// FileResult is the aggregated outcome for one file (spec §3).
type FileResult struct {
	Transcript          string
	Language            string
	LanguageProbability float64
	Segments            []engine.Segment
	TotalSegments       int
	FailedSlices        int
	Warning             string
	Errors              error // nil unless one or more slices failed
}

// Aggregate implements spec §4.6 steps 1-6.
func Aggregate(results []SliceResult) FileResult {
	sorted := make([]SliceResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SliceStartTime < sorted[j].SliceStartTime
	})

	var transcripts []string
	var segments []engine.Segment
	var language string
	var languageProbability float64
	languageSet := false
	failed := 0
	var errs error

	for _, r := range sorted {
		if r.Err != nil {
			failed++
			errs = multierror.Append(errs, fmt.Errorf("slice %d: %w", r.Index, r.Err))
			continue
		}

		for _, seg := range r.Result.Segments {
			anchored := seg
			anchored.Start += r.SliceStartTime
			anchored.End += r.SliceStartTime
			segments = append(segments, anchored)
		}

		if r.Result.Transcript != "" {
			transcripts = append(transcripts, r.Result.Transcript)
		}

		if !languageSet && r.Result.Language != "" {
			language = r.Result.Language
			languageProbability = r.Result.LanguageProbability
			languageSet = true
		}
	}

	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].Start < segments[j].Start
	})

	out := FileResult{
		Transcript:          strings.TrimSpace(strings.Join(transcripts, " ")),
		Language:            language,
		LanguageProbability: languageProbability,
		Segments:            segments,
		TotalSegments:       len(segments),
		FailedSlices:        failed,
		Errors:              errs,
	}
	if failed > 0 {
		out.Warning = fmt.Sprintf("%d/%d slices failed; result may be incomplete", failed, len(sorted))
	}
	return out
}

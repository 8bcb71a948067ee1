package engine

import (
	"context"
	"strings"
	"time"

	"github.com/whisperpipe/transcribe-api/internal/metrics"
)

// Adapter invokes the engine as model.Transcribe(path, beam_size, language),
// materialises the segment stream and concatenates it into a transcript
// (spec §4.8). Every call acquires the global transcription semaphore before
// invoking the model and releases it afterwards, including on failure
// (spec §5's shared-resource rule, §8 property 3).
type Adapter struct {
	eng Engine
	sem Semaphore

	// Metrics is optional; when set, Transcribe records its latency.
	Metrics *metrics.Metrics
}

func NewAdapter(eng Engine, sem Semaphore) *Adapter {
	return &Adapter{eng: eng, sem: sem}
}

// Transcribe reports semaphore and engine failures through its error return
// value rather than panicking, so callers (the Router's per-slice/per-file
// tasks) can capture them into a result slot without aborting sibling work.
func (a *Adapter) Transcribe(ctx context.Context, path string, beamSize int, language string) (Result, error) {
	if err := a.sem.Acquire(ctx); err != nil {
		return Result{}, err
	}
	defer a.sem.Release()

	start := time.Now()
	segments, detectedLanguage, languageProbability, err := a.eng.Transcribe(ctx, path, beamSize, language)
	if a.Metrics != nil {
		a.Metrics.TranscribeDuration.Record(ctx, time.Since(start).Seconds())
	}
	if err != nil {
		return Result{}, err
	}

	var sb strings.Builder
	for _, s := range segments {
		sb.WriteString(s.Text)
	}

	return Result{
		Transcript:          strings.TrimSpace(sb.String()),
		Language:            detectedLanguage,
		LanguageProbability: languageProbability,
		Segments:            segments,
	}, nil
}

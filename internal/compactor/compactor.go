// Package compactor implements SliceCompactor (spec §4.3): when a file's
// slice plan exceeds a cap, consecutive slices are grouped into batches and
// each batch is materialized into a single merged WAV.
package compactor

import (
	"fmt"

	"github.com/whisperpipe/transcribe-api/internal/slicer"
)

// Entry is one slice plan entry prior to (or after) compaction.
type Entry struct {
	Path          string
	Index         int
	DurationSec   float64
	StartTimeSec  float64
	MergedCount   int
	OriginalIndex []int
	Waveform      slicer.Waveform
}

// NewEntry wraps a decoded Waveform as a pre-compaction Entry.
func NewEntry(index int, startTimeSec float64, w slicer.Waveform) Entry {
	return Entry{
		Index:        index,
		DurationSec:  w.DurationSec(),
		StartTimeSec: startTimeSec,
		Waveform:     w,
	}
}

// Compact groups entries into batches of size k = floor(n/m)+1 when n > m,
// concatenating each batch's Waveform in index order and writing the result
// to writePath(batchIdx) (spec §4.3). When n <= m, entries are returned
// unchanged.
func Compact(entries []Entry, m int, writePath func(batchIdx int) string) ([]Entry, error) {
	n := len(entries)
	if n <= m {
		return entries, nil
	}
	if m < 1 {
		m = 1
	}

	k := n/m + 1

	var out []Entry
	for batchIdx, start := 0, 0; start < n; batchIdx, start = batchIdx+1, start+k {
		end := start + k
		if end > n {
			end = n
		}
		batch := entries[start:end]

		if len(batch) == 1 {
			out = append(out, batch[0])
			continue
		}

		merged, err := mergeBatch(batch)
		if err != nil {
			return nil, fmt.Errorf("failed to merge slice batch: %w", err)
		}

		path := writePath(batchIdx)
		if err := slicer.WriteWAV(path, merged.Waveform); err != nil {
			return nil, fmt.Errorf("failed to write merged wav: %w", err)
		}
		merged.Path = path
		merged.Index = batch[0].Index
		merged.StartTimeSec = batch[0].StartTimeSec
		out = append(out, merged)
	}

	if len(out) > m {
		return nil, fmt.Errorf("compactor invariant violated: result size %d exceeds cap %d", len(out), m)
	}
	return out, nil
}

// mergeBatch concatenates a batch's waveforms in index order, resampling
// sample-rate mismatches to the first element's rate and up-mixing
// mono->stereo channel-count mismatches (spec §4.3).
func mergeBatch(batch []Entry) (Entry, error) {
	targetRate := batch[0].Waveform.SampleRate
	targetChannels := 1
	for _, e := range batch {
		if len(e.Waveform.Channels) > targetChannels {
			targetChannels = len(e.Waveform.Channels)
		}
	}

	var duration float64
	var indices []int
	channels := make([][]float64, targetChannels)

	for _, e := range batch {
		w := e.Waveform
		if w.SampleRate != targetRate {
			w = resample(w, targetRate)
		}
		if len(w.Channels) < targetChannels {
			w = upmix(w, targetChannels)
		}
		for c := 0; c < targetChannels; c++ {
			channels[c] = append(channels[c], w.Channels[c]...)
		}
		duration += e.DurationSec
		if len(e.OriginalIndex) > 0 {
			indices = append(indices, e.OriginalIndex...)
		} else {
			indices = append(indices, e.Index)
		}
	}

	merged := Entry{
		DurationSec:   duration,
		MergedCount:   len(batch),
		OriginalIndex: indices,
		Waveform:      slicer.Waveform{SampleRate: targetRate, Channels: channels},
	}
	return merged, nil
}

// resample performs linear-interpolation resampling to targetRate, adequate
// for the short merge boundaries the compactor deals in.
func resample(w slicer.Waveform, targetRate int) slicer.Waveform {
	if w.SampleRate == targetRate || w.SampleRate == 0 {
		return w
	}
	ratio := float64(targetRate) / float64(w.SampleRate)
	frames := w.Frames()
	newFrames := int(float64(frames) * ratio)

	out := slicer.Waveform{SampleRate: targetRate, Channels: make([][]float64, len(w.Channels))}
	for c, ch := range w.Channels {
		resampled := make([]float64, newFrames)
		for i := range resampled {
			srcPos := float64(i) / ratio
			lo := int(srcPos)
			if lo >= frames-1 {
				resampled[i] = ch[frames-1]
				continue
			}
			frac := srcPos - float64(lo)
			resampled[i] = ch[lo]*(1-frac) + ch[lo+1]*frac
		}
		out.Channels[c] = resampled
	}
	return out
}

// upmix replicates a mono channel to fill targetChannels (spec §4.3).
func upmix(w slicer.Waveform, targetChannels int) slicer.Waveform {
	if len(w.Channels) >= targetChannels {
		return w
	}
	out := slicer.Waveform{SampleRate: w.SampleRate, Channels: make([][]float64, targetChannels)}
	src := w.Channels[0]
	for c := 0; c < targetChannels; c++ {
		cp := make([]float64, len(src))
		copy(cp, src)
		out.Channels[c] = cp
	}
	return out
}

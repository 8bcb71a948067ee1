// Package slicer implements AudioSlicer (spec §4.2): RMS-based silence
// detection that partitions a waveform into contiguous chunks. The
// algorithm (threshold-to-amplitude conversion, frame-strided RMS, the
// three silence-width regimes, leading/trailing silence handling) follows
// spec §4.2 literally; WAV I/O is grounded on github.com/go-audio/wav
// (SPEC_FULL §4.12).
package slicer

import (
	"fmt"
	"math"
)

// Params are the slicer's tuning knobs, all durations in milliseconds
// except ThresholdDB (spec §4.2).
type Params struct {
	ThresholdDB   float64
	MinLengthMS   int
	MinIntervalMS int
	HopSizeMS     int
	MaxSilKeptMS  int
}

// Validate enforces the slicer's configuration preconditions (spec §4.2):
// min_length >= min_interval >= hop_size and max_sil_kept >= hop_size.
func (p Params) Validate() error {
	if !(p.MinLengthMS >= p.MinIntervalMS && p.MinIntervalMS >= p.HopSizeMS) {
		return fmt.Errorf("slicer config must satisfy min_length >= min_interval >= hop_size")
	}
	if p.MaxSilKeptMS < p.HopSizeMS {
		return fmt.Errorf("slicer config must satisfy max_sil_kept >= hop_size")
	}
	return nil
}

// frameParams is Params converted into frame-count units for a given
// sample rate (spec §4.2 step 2).
type frameParams struct {
	hop         int
	win         int
	minLengthF  int
	minIntervalF int
	maxSilKeptF int
	threshold   float64
}

func (p Params) toFrames(sr int) frameParams {
	hop := roundInt(float64(sr) * float64(p.HopSizeMS) / 1000.0)
	if hop < 1 {
		hop = 1
	}
	minIntervalSamples := float64(sr) * float64(p.MinIntervalMS) / 1000.0
	win := int(math.Min(math.Round(minIntervalSamples), float64(4*hop)))
	if win < 1 {
		win = 1
	}

	return frameParams{
		hop:          hop,
		win:          win,
		minLengthF:   roundInt(float64(sr) * float64(p.MinLengthMS) / 1000.0 / float64(hop)),
		minIntervalF: roundInt(minIntervalSamples / float64(hop)),
		maxSilKeptF:  roundInt(float64(sr) * float64(p.MaxSilKeptMS) / 1000.0 / float64(hop)),
		threshold:    math.Pow(10, p.ThresholdDB/20.0),
	}
}

func roundInt(f float64) int {
	return int(math.Round(f))
}

// Chunk is one contiguous, non-silent span of the original waveform, in
// sample indices [Start, End) against the full-resolution (all channels)
// signal.
type Chunk struct {
	Start int
	End   int
}

// Slice partitions samples (a single-channel analysis signal, already
// averaged across channels by the caller if the source is multi-channel)
// into Chunks separated by silence, per spec §4.2. Chunk offsets are sample
// indices into samples.
func Slice(samples []float64, sr int, p Params) ([]Chunk, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	fp := p.toFrames(sr)

	// Edge case (spec §4.2): whole input too short to need slicing. Compare
	// in frames, not samples: frameCount = ceil(len(samples)/hop).
	frameCount := (len(samples) + fp.hop - 1) / fp.hop
	if frameCount <= fp.minLengthF {
		return []Chunk{{Start: 0, End: len(samples)}}, nil
	}

	rms := computeRMS(samples, fp.win, fp.hop)

	tags := findSilenceTags(rms, fp)

	return tagsToChunks(tags, fp.hop, len(samples)), nil
}

// computeRMS implements spec §4.2 step 4: RMS over a win-wide window at
// stride hop, after zero-padding the signal by win/2 on each side so frame
// i is centered on sample i*hop.
func computeRMS(samples []float64, win, hop int) []float64 {
	pad := win / 2
	padded := make([]float64, len(samples)+2*pad)
	copy(padded[pad:], samples)

	n := (len(padded)-win)/hop + 1
	if n < 1 {
		n = 1
	}
	rms := make([]float64, n)
	for i := 0; i < n; i++ {
		start := i * hop
		end := start + win
		if end > len(padded) {
			end = len(padded)
		}
		var sumSq float64
		for _, s := range padded[start:end] {
			sumSq += s * s
		}
		count := end - start
		if count == 0 {
			rms[i] = 0
			continue
		}
		rms[i] = math.Sqrt(sumSq / float64(count))
	}
	return rms
}

// silenceTag is a pair of frame indices [begin, end] marking silence to be
// discarded from the chunked output (spec §4.2 step 5-6).
type silenceTag struct {
	begin, end int
}

// argminIn returns the frame index of the minimum value in rms[lo:hi]
// (inclusive of hi), ties resolved to the earliest index (spec §4.2's
// "argmin ... ties -> earliest").
func argminIn(rms []float64, lo, hi int) int {
	if lo < 0 {
		lo = 0
	}
	if hi >= len(rms) {
		hi = len(rms) - 1
	}
	best := lo
	for i := lo + 1; i <= hi; i++ {
		if rms[i] < rms[best] {
			best = i
		}
	}
	return best
}

func findSilenceTags(rms []float64, fp frameParams) []silenceTag {
	var tags []silenceTag
	silenceStart := -1
	clipStart := 0

	for i, v := range rms {
		if v < fp.threshold {
			if silenceStart == -1 {
				silenceStart = i
			}
			continue
		}
		if silenceStart == -1 {
			continue
		}

		isLeadingSilence := silenceStart == 0 && i > fp.maxSilKeptF
		needSliceMiddle := i-silenceStart >= fp.minIntervalF && i-clipStart >= fp.minLengthF

		if !isLeadingSilence && !needSliceMiddle {
			silenceStart = -1
			continue
		}

		switch {
		case i-silenceStart <= fp.maxSilKeptF:
			pos := argminIn(rms, silenceStart, i)
			if silenceStart == 0 {
				tags = append(tags, silenceTag{0, pos})
			} else {
				tags = append(tags, silenceTag{pos, pos})
			}
			clipStart = pos

		case i-silenceStart <= 2*fp.maxSilKeptF:
			posGlobal := argminIn(rms, i-fp.maxSilKeptF, silenceStart+fp.maxSilKeptF)
			posL := argminIn(rms, silenceStart, silenceStart+fp.maxSilKeptF)
			posR := argminIn(rms, i-fp.maxSilKeptF, i)
			if silenceStart == 0 {
				tags = append(tags, silenceTag{0, posR})
				clipStart = posR
			} else {
				begin, end := posL, posR
				if posGlobal < begin {
					begin = posGlobal
				}
				if posGlobal > end {
					end = posGlobal
				}
				tags = append(tags, silenceTag{begin, end})
				clipStart = end
			}

		default:
			posL := argminIn(rms, silenceStart, silenceStart+fp.maxSilKeptF)
			posR := argminIn(rms, i-fp.maxSilKeptF, i)
			if silenceStart == 0 {
				tags = append(tags, silenceTag{0, posR})
			} else {
				tags = append(tags, silenceTag{posL, posR})
			}
			clipStart = posR
		}
		silenceStart = -1
	}

	// Trailing silence (spec §4.2 step 6), symmetric to the leading case.
	total := len(rms)
	if silenceStart != -1 && total-silenceStart >= fp.minIntervalF {
		end := silenceStart + fp.maxSilKeptF
		if end > total-1 {
			end = total - 1
		}
		pos := argminIn(rms, silenceStart, end)
		tags = append(tags, silenceTag{pos, total})
	}

	return tags
}

// tagsToChunks implements spec §4.2 step 7: chunks are the spans between
// consecutive silence tags, mapped from frame indices back to raw sample
// offsets via frame*hop (clamped to the signal length).
func tagsToChunks(tags []silenceTag, hop, totalSamples int) []Chunk {
	if len(tags) == 0 {
		return []Chunk{{Start: 0, End: totalSamples}}
	}

	toSample := func(frame int) int {
		s := frame * hop
		if s > totalSamples {
			s = totalSamples
		}
		return s
	}

	var chunks []Chunk
	first := toSample(tags[0].begin)
	if first > 0 {
		chunks = append(chunks, Chunk{Start: 0, End: first})
	}
	for i := 0; i < len(tags)-1; i++ {
		start := toSample(tags[i].end)
		end := toSample(tags[i+1].begin)
		if end > start {
			chunks = append(chunks, Chunk{Start: start, End: end})
		}
	}
	lastEnd := toSample(tags[len(tags)-1].end)
	if lastEnd < totalSamples {
		chunks = append(chunks, Chunk{Start: lastEnd, End: totalSamples})
	}
	return chunks
}

package compactor

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/whisperpipe/transcribe-api/internal/slicer"
)

func waveOfDuration(sr int, seconds float64) slicer.Waveform {
	n := int(float64(sr) * seconds)
	return slicer.Waveform{SampleRate: sr, Channels: [][]float64{make([]float64, n)}}
}

func TestCompactNoOpWhenUnderCap(t *testing.T) {
	entries := []Entry{
		NewEntry(0, 0, waveOfDuration(16000, 1)),
		NewEntry(1, 1, waveOfDuration(16000, 1)),
	}
	out, err := Compact(entries, 5, func(int) string { t.Fatal("should not write"); return "" })
	require.NoError(t, err)
	require.Equal(t, entries, out)
}

func TestCompactMergesBatchesAndPreservesDuration(t *testing.T) {
	n := 12
	m := 3
	var entries []Entry
	var totalDuration float64
	for i := 0; i < n; i++ {
		d := 2.0
		entries = append(entries, NewEntry(i, float64(i)*d, waveOfDuration(16000, d)))
		totalDuration += d
	}

	written := map[int]bool{}
	out, err := Compact(entries, m, func(batchIdx int) string {
		written[batchIdx] = true
		return fmt.Sprintf("/tmp/batch-%d.wav", batchIdx)
	})
	require.NoError(t, err)
	require.LessOrEqual(t, len(out), m)

	var mergedDuration float64
	for _, e := range out {
		mergedDuration += e.DurationSec
	}
	require.InDelta(t, totalDuration, mergedDuration, 1e-6)
}

func TestCompactSingleElementBatchUnchanged(t *testing.T) {
	// n=4, m=3 -> k=floor(4/3)+1=2, batches of size [2,2]; no size-1 batch here.
	// Use n=7,m=6 -> k=floor(7/6)+1=2, batches [2,2,2,1]: last batch is size 1.
	n := 7
	m := 6
	var entries []Entry
	for i := 0; i < n; i++ {
		entries = append(entries, NewEntry(i, float64(i), waveOfDuration(16000, 1)))
	}
	out, err := Compact(entries, m, func(batchIdx int) string {
		return fmt.Sprintf("/tmp/batch-%d.wav", batchIdx)
	})
	require.NoError(t, err)
	require.LessOrEqual(t, len(out), m)
	last := out[len(out)-1]
	require.Equal(t, entries[n-1].Path, last.Path)
}

func TestResampleChangesFrameCount(t *testing.T) {
	w := waveOfDuration(8000, 1.0)
	out := resample(w, 16000)
	require.Equal(t, 16000, out.SampleRate)
	require.InDelta(t, 16000, out.Frames(), 2)
}

func TestUpmixReplicatesMonoChannel(t *testing.T) {
	w := waveOfDuration(16000, 1.0)
	out := upmix(w, 2)
	require.Len(t, out.Channels, 2)
	require.Equal(t, out.Channels[0], out.Channels[1])
}

package router

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/whisperpipe/transcribe-api/internal/concurrency"
	"github.com/whisperpipe/transcribe-api/internal/config"
	"github.com/whisperpipe/transcribe-api/internal/dispatch"
	"github.com/whisperpipe/transcribe-api/internal/engine"
	"github.com/whisperpipe/transcribe-api/internal/modelcache"
	"github.com/whisperpipe/transcribe-api/internal/slicer"
	"github.com/whisperpipe/transcribe-api/internal/tempstore"
)

func TestSelectStrategy(t *testing.T) {
	cases := []struct {
		name      string
		files     []FileInfo
		autoSlice bool
		want      Strategy
	}{
		{"single short", []FileInfo{{RequiresSlicing: false}}, true, StrategyBatchOnly},
		{"single long", []FileInfo{{RequiresSlicing: true}}, true, StrategySliceOnly},
		{"single long auto_slice off", []FileInfo{{RequiresSlicing: true}}, false, StrategyBatchOnly},
		{"multi all short", []FileInfo{{RequiresSlicing: false}, {RequiresSlicing: false}}, true, StrategyBatchOnly},
		{"multi with one long", []FileInfo{{RequiresSlicing: false}, {RequiresSlicing: true}}, true, StrategyMixed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, SelectStrategy(tc.files, tc.autoSlice))
		})
	}
}

// fakeHandle is a modelcache.Handle + engine.Engine double for router tests.
type fakeHandle struct {
	err error
}

func (f *fakeHandle) Close() error { return nil }

func (f *fakeHandle) Transcribe(_ context.Context, _ string, _ int, _ string) ([]engine.Segment, string, float64, error) {
	if f.err != nil {
		return nil, "", 0, f.err
	}
	return []engine.Segment{{Start: 0, End: 1, Text: "hi"}}, "en", 0.9, nil
}

type fakeLoader struct{ handle *fakeHandle }

func (l *fakeLoader) FetchModel(_ context.Context, _ string, _ string) error { return nil }
func (l *fakeLoader) Construct(_ context.Context, _ string, _ config.Device, _ config.ComputeType) (modelcache.Handle, error) {
	return l.handle, nil
}

func testRouter(t *testing.T) (*Router, modelcache.Key) {
	t.Helper()
	dir := t.TempDir()
	loader := &fakeLoader{handle: &fakeHandle{}}
	cache := modelcache.New(dir, loader, loader)
	key := modelcache.Key{RepoID: "org/model", Device: config.DeviceCPU, ComputeType: config.ComputeFloat16}

	r := &Router{
		Cache:              cache,
		Semaphore:          dispatch.NewGlobalSemaphore(4),
		Optimizer:          concurrency.New(concurrency.Params{MinConcurrent: 1, MaxConcurrentLimit: 8, SlicesPerThread: 3, NumCPU: 4}, nil),
		SliceParams:        slicer.Params{ThresholdDB: -40, MinLengthMS: 500, MinIntervalMS: 300, HopSizeMS: 10, MaxSilKeptMS: 200},
		MaxTotalSlices:     50,
		AllowedAudioTypes:  map[string]bool{"audio/wav": true},
		DefaultConcurrency: 4,
	}
	return r, key
}

func TestProcessBatchOnlySingleFile(t *testing.T) {
	r, key := testRouter(t)
	store := tempstore.New()
	defer store.Cleanup()

	files := []FileInfo{{Filename: "a.wav", TempPath: "/tmp/does-not-need-to-exist.wav", ContentType: "audio/wav", DurationSec: 120}}
	resp, err := r.Process(context.Background(), files, Options{ModelKey: key, BeamSize: 5}, store)
	require.NoError(t, err)
	require.Equal(t, StrategyBatchOnly, resp.Strategy)
	require.Len(t, resp.Files, 1)
	require.Equal(t, "hi", resp.Files[0].Transcript)
	require.Equal(t, ProcessingModeBatch, resp.Files[0].ProcessingMode)
}

func TestProcessBatchOnlyRejectsUnsupportedContentType(t *testing.T) {
	r, key := testRouter(t)
	store := tempstore.New()
	defer store.Cleanup()

	files := []FileInfo{{Filename: "a.mp4", TempPath: "/tmp/x", ContentType: "video/mp4", DurationSec: 30}}
	resp, err := r.Process(context.Background(), files, Options{ModelKey: key}, store)
	require.NoError(t, err)
	require.NotEmpty(t, resp.Files[0].Error)
}

func TestProcessSliceOnly(t *testing.T) {
	r, key := testRouter(t)
	store := tempstore.New()
	defer store.Cleanup()

	dir := t.TempDir()
	path := dir + "/long.wav"
	// Non-silent content: an all-silent file yields zero chunks and fails
	// slicing instead of reaching the sliced_parallel path.
	samples := make([]float64, 16000*2)
	for i := range samples {
		samples[i] = 0.5
	}
	wave := slicer.Waveform{SampleRate: 16000, Channels: [][]float64{samples}}
	require.NoError(t, slicer.WriteWAV(path, wave))

	files := []FileInfo{{Filename: "long.wav", TempPath: path, ContentType: "audio/wav", DurationSec: 2, RequiresSlicing: true}}
	resp, err := r.Process(context.Background(), files, Options{ModelKey: key, BeamSize: 5, AutoSlice: true}, store)
	require.NoError(t, err)
	require.Equal(t, StrategySliceOnly, resp.Strategy)
	require.Len(t, resp.Files, 1)
	require.Equal(t, ProcessingModeSliced, resp.Files[0].ProcessingMode)
	require.GreaterOrEqual(t, resp.Files[0].SliceCount, 1)
}

func TestProcessEmptyFilesIsValidationError(t *testing.T) {
	r, key := testRouter(t)
	store := tempstore.New()
	defer store.Cleanup()

	_, err := r.Process(context.Background(), nil, Options{ModelKey: key}, store)
	require.Error(t, err)
}

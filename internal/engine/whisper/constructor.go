package whisper

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/whisperpipe/transcribe-api/internal/config"
	"github.com/whisperpipe/transcribe-api/internal/modelcache"
)

// Constructor builds whisper.cpp Contexts for modelcache.Cache, given the
// local directory a model's artifacts were downloaded into (spec §4.1c:
// "constructs a model handle pinned to device/compute_type with
// local_files_only = true"). The model is read from <localDir>/model.bin,
// the file name modelrepo.HTTPFetcher downloads into.
type Constructor struct {
	NumThreads int
}

func (c Constructor) Construct(_ context.Context, localDir string, device config.Device, compute config.ComputeType) (modelcache.Handle, error) {
	if device != config.DeviceCPU {
		return nil, fmt.Errorf("whisper.cpp engine only supports device %q, got %q", config.DeviceCPU, device)
	}

	threads := c.NumThreads
	if threads == 0 {
		threads = max(1, runtime.NumCPU()/2)
	}

	return NewContext(Config{
		ModelFile:   filepath.Join(localDir, "model.bin"),
		NumThreads:  threads,
		Device:      device,
		ComputeType: compute,
	})
}

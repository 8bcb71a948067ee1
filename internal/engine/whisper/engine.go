// Package whisper is one concrete implementation of engine.Engine, backed
// by whisper.cpp via cgo. It is adapted from the teacher's
// apis/whisper.cpp/context.go: the same init/transcribe/destroy shape,
// extended with beam-search decoding (beam_size) and language
// auto-detection, since spec §4.8 requires both.
package whisper

// #cgo LDFLAGS: -l:libwhisper.a -lm -lstdc++
// #include <whisper.h>
// #include <stdlib.h>
import "C"

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"unsafe"

	"github.com/go-audio/wav"

	"github.com/whisperpipe/transcribe-api/internal/config"
	"github.com/whisperpipe/transcribe-api/internal/engine"
)

// Config pins a loaded model to a device/compute_type pair, per the
// modelcache.Constructor contract (spec §4.1c).
type Config struct {
	ModelFile   string
	NumThreads  int
	Device      config.Device
	ComputeType config.ComputeType
}

func (c Config) IsValid() error {
	if c.ModelFile == "" {
		return fmt.Errorf("invalid ModelFile: should not be empty")
	}
	if numCPU := runtime.NumCPU(); c.NumThreads == 0 || c.NumThreads > numCPU {
		return fmt.Errorf("invalid NumThreads: should be in the range [1, %d]", numCPU)
	}
	if _, err := os.Stat(c.ModelFile); err != nil {
		return fmt.Errorf("invalid ModelFile: failed to stat model file: %w", err)
	}
	return nil
}

// Context is a loaded whisper.cpp model handle. It implements
// modelcache.Handle (Close) and engine.Engine (Transcribe).
type Context struct {
	cfg Config
	ctx *C.struct_whisper_context
}

func NewContext(cfg Config) (*Context, error) {
	if err := cfg.IsValid(); err != nil {
		return nil, fmt.Errorf("failed to validate config: %w", err)
	}

	path := C.CString(cfg.ModelFile)
	defer C.free(unsafe.Pointer(path))

	ctx := C.whisper_init_from_file(path)
	if ctx == nil {
		return nil, fmt.Errorf("failed to load model file")
	}

	return &Context{cfg: cfg, ctx: ctx}, nil
}

// Close releases the underlying whisper_context. It satisfies
// modelcache.Handle.
func (c *Context) Close() error {
	if c.ctx == nil {
		return fmt.Errorf("context is not initialized")
	}
	C.whisper_free(c.ctx)
	c.ctx = nil
	return nil
}

// Transcribe satisfies engine.Engine. path must be a mono 16kHz WAV file, as
// produced by the AudioSlicer / SliceCompactor (spec §4.2/§4.3).
func (c *Context) Transcribe(_ context.Context, path string, beamSize int, language string) (
	[]engine.Segment, string, float64, error) {
	samples, err := loadSamples(path)
	if err != nil {
		return nil, "", 0, fmt.Errorf("failed to load audio: %w", err)
	}
	if len(samples) == 0 {
		return nil, "", 0, fmt.Errorf("samples should not be empty")
	}

	params := C.whisper_full_default_params(C.WHISPER_SAMPLING_BEAM_SEARCH)
	params.no_context = C.bool(false)
	params.n_threads = C.int(c.cfg.NumThreads)
	params.beam_search.beam_size = C.int(beamSize)
	params.split_on_word = C.bool(true)

	var langC *C.char
	if language != "" {
		langC = C.CString(language)
		defer C.free(unsafe.Pointer(langC))
		params.language = langC
	} else {
		autoC := C.CString("auto")
		defer C.free(unsafe.Pointer(autoC))
		params.language = autoC
	}

	ret := C.whisper_full(c.ctx, params, (*C.float)(&samples[0]), C.int(len(samples)))
	if ret != 0 {
		return nil, "", 0, fmt.Errorf("whisper_full failed with code %d", ret)
	}

	langID := int(C.whisper_full_lang_id(c.ctx))
	detectedLanguage := ""
	languageProbability := 0.0
	if langID >= 0 {
		detectedLanguage = C.GoString(C.whisper_lang_str(C.int(langID)))
		probs := make([]C.float, C.whisper_lang_max_id()+1)
		C.whisper_lang_auto_detect(c.ctx, 0, C.int(c.cfg.NumThreads), &probs[0])
		languageProbability = float64(probs[langID])
	}

	n := int(C.whisper_full_n_segments(c.ctx))
	segments := make([]engine.Segment, n)
	for i := 0; i < n; i++ {
		segments[i] = engine.Segment{
			Text:  C.GoString(C.whisper_full_get_segment_text(c.ctx, C.int(i))),
			Start: float64(int64(C.whisper_full_get_segment_t0(c.ctx, C.int(i)))*10) / 1000.0,
			End:   float64(int64(C.whisper_full_get_segment_t1(c.ctx, C.int(i)))*10) / 1000.0,
		}
	}

	return segments, detectedLanguage, languageProbability, nil
}

// loadSamples decodes a WAV file into float32 PCM samples normalized to
// [-1, 1], the format whisper.cpp expects. Grounded on go-audio/wav's use in
// the whisper.cpp Go bindings benchmark test and in AshBuk/speak-to-ai's
// whisper engine (SPEC_FULL §4.12).
func loadSamples(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open wav file: %w", err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if decoder == nil {
		return nil, fmt.Errorf("failed to create wav decoder")
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to read pcm buffer: %w", err)
	}

	samples := make([]float32, buf.NumFrames())
	for i := 0; i < buf.NumFrames(); i++ {
		samples[i] = float32(buf.Data[i]) / 32768.0
	}
	return samples, nil
}

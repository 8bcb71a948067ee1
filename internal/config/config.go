// Package config holds the static and environment-driven tuning surface for
// the transcription service (spec §6). It follows the teacher repo's
// CallTranscriberConfig shape: a plain struct with FromEnv, SetDefaults,
// IsValid and ToMap methods.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// Device is the inference device requested for a model.
type Device string

const (
	DeviceCPU  Device = "cpu"
	DeviceCUDA Device = "cuda"
)

func (d Device) IsValid() bool {
	switch d {
	case DeviceCPU, DeviceCUDA:
		return true
	default:
		return false
	}
}

// ComputeType is the numeric precision used by a loaded model.
type ComputeType string

const (
	ComputeFloat16 ComputeType = "float16"
	ComputeFloat32 ComputeType = "float32"
	ComputeInt8    ComputeType = "int8"
)

// Compat lists, per device, the compute types supported by that device, in
// preference order. COMPAT[device][0] is the coercion target used by
// ModelKey normalisation (spec §3).
var Compat = map[Device][]ComputeType{
	DeviceCPU:  {ComputeFloat32, ComputeInt8},
	DeviceCUDA: {ComputeFloat16, ComputeInt8, ComputeFloat32},
}

// SupportedModels is the set of model_name values accepted by the
// /api/fasterwhisper/transcribe endpoint (spec §6).
var SupportedModels = []string{"tiny", "base", "small", "medium", "large-v2", "large-v3"}

func IsSupportedModel(name string) bool {
	for _, m := range SupportedModels {
		if m == name {
			return true
		}
	}
	return false
}

// AllowedAudioTypes is the set of multipart content-types accepted in
// batch_only mode (spec §4.7).
var AllowedAudioTypes = map[string]bool{
	"audio/wav":   true,
	"audio/x-wav": true,
	"audio/mpeg":  true,
	"audio/mp4":   true,
	"audio/flac":  true,
	"audio/ogg":   true,
	"audio/webm":  true,
}

// Config is the full tuning surface, sourced from the environment with
// defaults applied by SetDefaults.
type Config struct {
	// Model / engine defaults.
	ModelName   string
	Device      Device
	ComputeType ComputeType
	BeamSize    int
	ModelsDir   string

	// HTTP server.
	Host    string
	Port    int
	Workers int

	// Slicer tuning (spec §4.2, all in ms unless noted).
	MinSliceLength int
	MaxSliceLength int
	MinInterval    int
	ThresholdDB    float64
	HopSize        int
	MaxSilKept     int

	// Compactor / concurrency tuning (spec §4.3, §4.4).
	MaxTotalSlices     int
	MaxConcurrent      int
	MinConcurrent      int
	MaxConcurrentLimit int
	SlicesPerThread    int
	ConsiderSystemLoad bool

	// SliceTriggerSec is the duration above which auto_slice kicks in for a
	// single file (spec §4.7's requires_slicing threshold). Kept distinct
	// from the "short" kind cutoff used to classify FileInfo (spec §3).
	SliceTriggerSec float64
	ShortKindSec    float64
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// FromEnv builds a Config from the process environment (spec §6). Values
// left unset are zero; call SetDefaults afterwards.
func FromEnv() (Config, error) {
	var cfg Config

	cfg.ModelName = os.Getenv("MODEL_NAME")
	if v := os.Getenv("DEVICE"); v != "" {
		cfg.Device = Device(v)
	}
	if v := os.Getenv("COMPUTE_TYPE"); v != "" {
		cfg.ComputeType = ComputeType(v)
	}
	cfg.BeamSize = envInt("BEAM_SIZE", 0)
	cfg.ModelsDir = strings.TrimSuffix(os.Getenv("MODELS_DIR"), "/")

	cfg.Host = os.Getenv("HOST")
	cfg.Port = envInt("PORT", 0)
	cfg.Workers = envInt("WORKERS", 0)

	cfg.MinSliceLength = envInt("MIN_SLICE_LENGTH", 0)
	cfg.MaxSliceLength = envInt("MAX_SLICE_LENGTH", 0)
	cfg.MinInterval = envInt("MIN_INTERVAL", 0)
	cfg.ThresholdDB = envFloat("THRESHOLD", 0)
	cfg.HopSize = envInt("HOP_SIZE", 0)
	cfg.MaxSilKept = envInt("MAX_SIL_KEPT", 0)

	cfg.MaxTotalSlices = envInt("MAX_TOTAL_SLICES", 0)
	cfg.MaxConcurrent = envInt("MAX_CONCURRENT", 0)
	cfg.MinConcurrent = envInt("MIN_CONCURRENT", 0)
	cfg.MaxConcurrentLimit = envInt("MAX_CONCURRENT_LIMIT", 0)
	cfg.SlicesPerThread = envInt("SLICES_PER_THREAD", 0)
	cfg.ConsiderSystemLoad = envBool("CONSIDER_SYSTEM_LOAD", false)

	return cfg, nil
}

// SetDefaults fills in every field left zero by FromEnv, mirroring the
// teacher's CallTranscriberConfig.SetDefaults.
func (cfg *Config) SetDefaults() {
	if cfg.ModelName == "" {
		cfg.ModelName = "base"
	}
	if cfg.Device == "" {
		cfg.Device = DeviceCPU
	}
	if cfg.ComputeType == "" {
		cfg.ComputeType = Compat[cfg.Device][0]
	}
	if cfg.BeamSize == 0 {
		cfg.BeamSize = 5
	}
	if cfg.ModelsDir == "" {
		cfg.ModelsDir = "./models"
	}

	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.Port == 0 {
		cfg.Port = 8000
	}
	if cfg.Workers == 0 {
		cfg.Workers = max(1, runtime.NumCPU()/2)
	}

	if cfg.MinSliceLength == 0 {
		cfg.MinSliceLength = 5000
	}
	if cfg.MaxSliceLength == 0 {
		cfg.MaxSliceLength = 15000
	}
	if cfg.MinInterval == 0 {
		cfg.MinInterval = 300
	}
	if cfg.ThresholdDB == 0 {
		cfg.ThresholdDB = -40
	}
	if cfg.HopSize == 0 {
		cfg.HopSize = 10
	}
	if cfg.MaxSilKept == 0 {
		cfg.MaxSilKept = 500
	}

	if cfg.MaxTotalSlices == 0 {
		cfg.MaxTotalSlices = 50
	}
	if cfg.MinConcurrent == 0 {
		cfg.MinConcurrent = 1
	}
	if cfg.MaxConcurrentLimit == 0 {
		cfg.MaxConcurrentLimit = 32
	}
	if cfg.SlicesPerThread == 0 {
		cfg.SlicesPerThread = 3
	}

	if cfg.SliceTriggerSec == 0 {
		cfg.SliceTriggerSec = 480
	}
	if cfg.ShortKindSec == 0 {
		cfg.ShortKindSec = 300
	}
}

// IsValid validates a fully-defaulted Config, per the range constraints
// implied by spec §6/§4.4.
func (cfg Config) IsValid() error {
	if cfg == (Config{}) {
		return fmt.Errorf("config cannot be empty")
	}

	if !cfg.Device.IsValid() {
		return fmt.Errorf("invalid DEVICE: %q", cfg.Device)
	}

	compat := Compat[cfg.Device]
	valid := false
	for _, c := range compat {
		if c == cfg.ComputeType {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("COMPUTE_TYPE %q is not valid for device %q", cfg.ComputeType, cfg.Device)
	}

	if cfg.BeamSize < 1 {
		return fmt.Errorf("BEAM_SIZE must be >= 1")
	}

	if cfg.MinSliceLength < cfg.MinInterval || cfg.MinInterval < cfg.HopSize {
		return fmt.Errorf("slicer config must satisfy min_length >= min_interval >= hop_size")
	}
	if cfg.MaxSilKept < cfg.HopSize {
		return fmt.Errorf("MAX_SIL_KEPT must be >= HOP_SIZE")
	}

	if cfg.MaxTotalSlices < 1 {
		return fmt.Errorf("MAX_TOTAL_SLICES must be >= 1")
	}
	if cfg.MinConcurrent < 1 || cfg.MinConcurrent > cfg.MaxConcurrentLimit {
		return fmt.Errorf("MIN_CONCURRENT must be in [1, MAX_CONCURRENT_LIMIT]")
	}
	if cfg.MaxConcurrent != 0 && (cfg.MaxConcurrent < cfg.MinConcurrent || cfg.MaxConcurrent > cfg.MaxConcurrentLimit) {
		return fmt.Errorf("MAX_CONCURRENT must be in [MIN_CONCURRENT, MAX_CONCURRENT_LIMIT]")
	}
	if cfg.SlicesPerThread < 1 {
		return fmt.Errorf("SLICES_PER_THREAD must be >= 1")
	}

	return nil
}

// CoerceComputeType applies the silent-coercion rule from spec §3's ModelKey
// invariant: an incompatible compute_type is replaced by COMPAT[device][0]
// and a warning is reported via the bool return.
func CoerceComputeType(device Device, compute ComputeType) (ComputeType, bool) {
	for _, c := range Compat[device] {
		if c == compute {
			return compute, false
		}
	}
	return Compat[device][0], true
}

// ToMap renders the tuned and static parameters for GET /config (spec §6).
func (cfg Config) ToMap() map[string]any {
	return map[string]any{
		"model_name":            cfg.ModelName,
		"device":                string(cfg.Device),
		"compute_type":          string(cfg.ComputeType),
		"beam_size":             cfg.BeamSize,
		"models_dir":            cfg.ModelsDir,
		"workers":               cfg.Workers,
		"min_slice_length_ms":   cfg.MinSliceLength,
		"max_slice_length_ms":   cfg.MaxSliceLength,
		"min_interval_ms":       cfg.MinInterval,
		"threshold_db":          cfg.ThresholdDB,
		"hop_size_ms":           cfg.HopSize,
		"max_sil_kept_ms":       cfg.MaxSilKept,
		"max_total_slices":      cfg.MaxTotalSlices,
		"max_concurrent":        cfg.MaxConcurrent,
		"min_concurrent":        cfg.MinConcurrent,
		"max_concurrent_limit":  cfg.MaxConcurrentLimit,
		"slices_per_thread":     cfg.SlicesPerThread,
		"consider_system_load":  cfg.ConsiderSystemLoad,
		"slice_trigger_sec":     cfg.SliceTriggerSec,
		"short_kind_sec":        cfg.ShortKindSec,
		"supported_models":      SupportedModels,
	}
}

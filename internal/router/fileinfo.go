// Package router implements StrategyRouter (spec §4.7): it classifies a
// batch of uploaded files, picks batch_only/slice_only/mixed, and
// orchestrates ModelCache, AudioSlicer, SliceCompactor, ConcurrencyOptimizer,
// Dispatcher, Aggregator and TranscribeAdapter to produce results.
package router

// Kind classifies a file by duration (spec §3).
type Kind string

const (
	KindShort Kind = "short"
	KindLong  Kind = "long"
)

// FileInfo is one ingress audio file (spec §3).
type FileInfo struct {
	Filename        string
	TempPath        string
	ContentType     string
	DurationSec     float64
	Kind            Kind
	RequiresSlicing bool
}

// NewFileInfo classifies a decoded upload per spec §3: short if duration <=
// shortKindSec, requires_slicing when autoSlice is set and duration >
// sliceTriggerSec.
func NewFileInfo(filename, tempPath, contentType string, durationSec float64, autoSlice bool, shortKindSec, sliceTriggerSec float64) FileInfo {
	kind := KindLong
	if durationSec <= shortKindSec {
		kind = KindShort
	}
	return FileInfo{
		Filename:        filename,
		TempPath:        tempPath,
		ContentType:     contentType,
		DurationSec:     durationSec,
		Kind:            kind,
		RequiresSlicing: autoSlice && durationSec > sliceTriggerSec,
	}
}

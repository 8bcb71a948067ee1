package router

import "github.com/whisperpipe/transcribe-api/internal/engine"

const (
	ProcessingModeBatch  = "batch_parallel"
	ProcessingModeSliced = "sliced_parallel"
)

// FileResult is the per-file outcome the HTTP layer serializes (spec §3
// "FileResult").
type FileResult struct {
	Filename            string
	Transcript          string
	Language            string
	LanguageProbability float64
	Segments            []engine.Segment
	TotalSegments       int
	SliceCount          int `json:",omitempty"`
	ProcessingMode      string
	OriginalDuration    float64
	Warning             string `json:",omitempty"`
	Error               string `json:",omitempty"`
}

// Response is the top-level result of one StrategyRouter invocation.
type Response struct {
	Strategy       Strategy
	ProcessedFiles int
	Files          []FileResult
}

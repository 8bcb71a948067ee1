package slicer

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Waveform is a decoded PCM signal: one []float64 per channel, each
// normalized to [-1, 1], plus its sample rate (spec §4.2 step 3).
type Waveform struct {
	SampleRate int
	Channels   [][]float64
}

// Frames returns the number of samples per channel.
func (w Waveform) Frames() int {
	if len(w.Channels) == 0 {
		return 0
	}
	return len(w.Channels[0])
}

// LoadWAV decodes a WAV file into a Waveform, grounded on go-audio/wav's
// decode idiom (SPEC_FULL §4.12).
func LoadWAV(path string) (Waveform, error) {
	f, err := os.Open(path)
	if err != nil {
		return Waveform{}, fmt.Errorf("failed to open wav file: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if dec == nil || !dec.IsValidFile() {
		return Waveform{}, fmt.Errorf("invalid wav file: %s", path)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Waveform{}, fmt.Errorf("failed to decode pcm buffer: %w", err)
	}

	numChannels := buf.Format.NumChannels
	if numChannels < 1 {
		numChannels = 1
	}
	frames := len(buf.Data) / numChannels

	channels := make([][]float64, numChannels)
	for c := range channels {
		channels[c] = make([]float64, frames)
	}
	maxAmp := float64(int(1) << (buf.SourceBitDepth - 1))
	if maxAmp == 0 {
		maxAmp = 32768.0
	}
	for i := 0; i < frames; i++ {
		for c := 0; c < numChannels; c++ {
			channels[c][i] = float64(buf.Data[i*numChannels+c]) / maxAmp
		}
	}

	return Waveform{SampleRate: buf.Format.SampleRate, Channels: channels}, nil
}

// Analysis averages all channels down to a single mono signal for silence
// detection, while the original multi-channel Waveform is kept for slicing
// (spec §4.2 step 3).
func (w Waveform) Analysis() []float64 {
	frames := w.Frames()
	mono := make([]float64, frames)
	if len(w.Channels) == 1 {
		copy(mono, w.Channels[0])
		return mono
	}
	for i := 0; i < frames; i++ {
		var sum float64
		for _, ch := range w.Channels {
			sum += ch[i]
		}
		mono[i] = sum / float64(len(w.Channels))
	}
	return mono
}

// Sub returns a new Waveform containing samples [start, end) of every
// channel.
func (w Waveform) Sub(start, end int) Waveform {
	out := Waveform{SampleRate: w.SampleRate, Channels: make([][]float64, len(w.Channels))}
	for c, ch := range w.Channels {
		if end > len(ch) {
			end = len(ch)
		}
		if start > end {
			start = end
		}
		s := make([]float64, end-start)
		copy(s, ch[start:end])
		out.Channels[c] = s
	}
	return out
}

// DurationSec returns the waveform's duration in seconds.
func (w Waveform) DurationSec() float64 {
	if w.SampleRate == 0 {
		return 0
	}
	return float64(w.Frames()) / float64(w.SampleRate)
}

// WriteWAV encodes a Waveform to path as 16-bit PCM, the format the
// TranscribeAdapter's engine expects on disk (spec §4.2 step 8).
func WriteWAV(path string, w Waveform) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create wav file: %w", err)
	}
	defer f.Close()

	numChannels := len(w.Channels)
	if numChannels == 0 {
		return fmt.Errorf("cannot write wav with no channels")
	}
	frames := w.Frames()

	enc := wav.NewEncoder(f, w.SampleRate, 16, numChannels, 1)

	intBuf := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: numChannels, SampleRate: w.SampleRate},
		Data:   make([]int, frames*numChannels),
	}
	for i := 0; i < frames; i++ {
		for c := 0; c < numChannels; c++ {
			v := w.Channels[c][i]
			if v > 1 {
				v = 1
			}
			if v < -1 {
				v = -1
			}
			intBuf.Data[i*numChannels+c] = int(v * 32767.0)
		}
	}

	if err := enc.Write(intBuf); err != nil {
		return fmt.Errorf("failed to write pcm data: %w", err)
	}
	return enc.Close()
}

package trigger

import (
	"fmt"

	"github.jpl.nasa.gov/bdube/simsync/util"
)

// span asserts a high level over the sample interval [start, end).
// Channels are described as lists of spans and rasterized once; everything
// outside a span is low.
type span struct {
	start, end int
}

// waveform is the shared representation of frames and loops: NumLines
// channels of boolean levels, all the same length.
type waveform struct {
	channels [NumLines][]bool
}

// Len returns the number of samples per channel.
func (w *waveform) Len() int {
	return len(w.channels[0])
}

// Channel returns the level sequence for a given line.  The returned slice
// is the backing storage; callers must not modify it.
func (w *waveform) Channel(line int) []bool {
	return w.channels[line]
}

// Level returns the level of one line at one sample index.
func (w *waveform) Level(line, sample int) bool {
	return w.channels[line][sample]
}

// Pack converts the waveform to one port bitmask per sample, bit i carrying
// line i.  This is the layout a port-grouped digital output task consumes.
func (w *waveform) Pack() []uint16 {
	n := w.Len()
	out := make([]uint16, n)
	for line := 0; line < NumLines; line++ {
		ch := w.channels[line]
		for i := 0; i < n; i++ {
			if ch[i] {
				out[i] = util.SetBit16(out[i], uint(line), true)
			}
		}
	}
	return out
}

// rasterize allocates a channel of n samples and asserts the given spans.
func rasterize(n int, spans ...span) []bool {
	ch := make([]bool, n)
	for _, s := range spans {
		for i := s.start; i < s.end && i < n; i++ {
			ch[i] = true
		}
	}
	return ch
}

// Frame is the five-line sample pattern for a single exposure cycle.  It is
// generated once per Config and reused for every frame in a loop.
type Frame struct {
	waveform
}

// NewFrame generates the waveform for one frame:
//
//	camera trigger: high for [0, exposure)
//	laser trigger:  identical to the camera trigger
//	SLM enable:     high for the whole frame
//	SLM trigger:    pulse at the start of the frame, "change pattern now"
//	SLM finish:     pulse at [exposure, exposure+edge), then the
//	                post-exposure gap runs out the frame
//
// The config is validated first; the error, if non-nil, is a ConfigError.
func NewFrame(cfg Config) (*Frame, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var (
		expo  = cfg.ExposureSamples()
		edge  = cfg.TriggerEdgeWidth
		total = cfg.SamplesPerFrame()
		f     Frame
	)
	f.channels[CamTriggerLine] = rasterize(total, span{0, expo})
	f.channels[LaserTriggerLine] = rasterize(total, span{0, expo})
	f.channels[SLMEnableLine] = rasterize(total, span{0, total})
	f.channels[SLMTriggerLine] = rasterize(total, span{0, edge})
	f.channels[SLMFinishLine] = rasterize(total, span{expo, expo + edge})
	return &f, nil
}

// String describes the frame briefly, for logs.
func (f *Frame) String() string {
	return fmt.Sprintf("Frame{%d samples x %d lines}", f.Len(), NumLines)
}

package trigger

import "fmt"

// Loop is the full multi-frame waveform for one acquisition loop:
// FramesPerLoop copies of a Frame with the SLM enable line merged into a
// single continuous high span.
type Loop struct {
	waveform

	frames          int
	samplesPerFrame int
}

// NewLoop concatenates frames per the config and rewrites the SLM enable
// line: high from sample 0 through the last frame's exposure and finish
// pulse, low for the trailing gap.  The low tail de-asserts enable after the
// loop completes so the port idles low between loops.
//
// frame must have been generated from the same config; a length mismatch is
// reported as a ConfigError.
func NewLoop(cfg Config, frame *Frame) (*Loop, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	spf := cfg.SamplesPerFrame()
	if frame.Len() != spf {
		return nil, ConfigError(fmt.Sprintf("frame length %d does not match config (%d samples per frame)", frame.Len(), spf))
	}
	var (
		n     = cfg.FramesPerLoop
		total = n * spf
		l     = Loop{frames: n, samplesPerFrame: spf}
	)
	for line := 0; line < NumLines; line++ {
		ch := make([]bool, total)
		src := frame.Channel(line)
		for i := 0; i < n; i++ {
			copy(ch[i*spf:], src)
		}
		l.channels[line] = ch
	}
	// enable bracket: one continuous high span, then the trailing gap low
	l.channels[SLMEnableLine] = rasterize(total, span{0, total - cfg.PostExposureGap})
	return &l, nil
}

// Frames returns the number of frames concatenated into the loop.
func (l *Loop) Frames() int {
	return l.frames
}

// SamplesPerFrame returns the per-frame sample count of the loop.
func (l *Loop) SamplesPerFrame() int {
	return l.samplesPerFrame
}

// String describes the loop briefly, for logs.
func (l *Loop) String() string {
	return fmt.Sprintf("Loop{%d frames x %d samples}", l.frames, l.samplesPerFrame)
}

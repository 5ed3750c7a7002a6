package trigger_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.jpl.nasa.gov/bdube/simsync/trigger"
)

func mustFrame(t *testing.T, cfg trigger.Config) *trigger.Frame {
	t.Helper()
	f, err := trigger.NewFrame(cfg)
	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}
	return f
}

func mustLoop(t *testing.T, cfg trigger.Config, f *trigger.Frame) *trigger.Loop {
	t.Helper()
	l, err := trigger.NewLoop(cfg, f)
	if err != nil {
		t.Fatalf("NewLoop: %v", err)
	}
	return l
}

func TestFrameLength(t *testing.T) {
	cfg := validConfig()
	f := mustFrame(t, cfg)
	if f.Len() != cfg.SamplesPerFrame() {
		t.Errorf("frame length %d, expected %d", f.Len(), cfg.SamplesPerFrame())
	}
	// independent of loop counts
	cfg.FramesPerLoop = 3
	cfg.NumLoops = 7
	f2 := mustFrame(t, cfg)
	if f2.Len() != f.Len() {
		t.Errorf("frame length changed with loop counts: %d != %d", f2.Len(), f.Len())
	}
}

func TestFrameCameraLaserIdentical(t *testing.T) {
	f := mustFrame(t, validConfig())
	cam := f.Channel(trigger.CamTriggerLine)
	las := f.Channel(trigger.LaserTriggerLine)
	if diff := cmp.Diff(cam, las); diff != "" {
		t.Errorf("camera and laser triggers differ (-cam +laser):\n%s", diff)
	}
}

func TestFrameSpans(t *testing.T) {
	cfg := validConfig()
	f := mustFrame(t, cfg)
	var (
		expo = cfg.ExposureSamples()
		edge = cfg.TriggerEdgeWidth
	)
	// camera high exactly over the exposure window
	for _, idx := range []int{0, 1, expo - 1} {
		if !f.Level(trigger.CamTriggerLine, idx) {
			t.Errorf("camera low at sample %d inside exposure", idx)
		}
	}
	for _, idx := range []int{expo, expo + edge, f.Len() - 1} {
		if f.Level(trigger.CamTriggerLine, idx) {
			t.Errorf("camera high at sample %d after exposure", idx)
		}
	}
	// SLM enable high for the whole frame
	for i := 0; i < f.Len(); i++ {
		if !f.Level(trigger.SLMEnableLine, i) {
			t.Fatalf("SLM enable low at sample %d within a frame", i)
		}
	}
	// SLM trigger pulse occupies [0, edge)
	if !f.Level(trigger.SLMTriggerLine, 0) || !f.Level(trigger.SLMTriggerLine, edge-1) {
		t.Error("SLM trigger pulse missing at frame start")
	}
	if f.Level(trigger.SLMTriggerLine, edge) {
		t.Error("SLM trigger pulse extends past its width")
	}
	// SLM finish pulse occupies [expo, expo+edge)
	if f.Level(trigger.SLMFinishLine, expo-1) {
		t.Error("SLM finish pulse overlaps the exposure")
	}
	if !f.Level(trigger.SLMFinishLine, expo) || !f.Level(trigger.SLMFinishLine, expo+edge-1) {
		t.Error("SLM finish pulse missing after exposure")
	}
	if f.Level(trigger.SLMFinishLine, expo+edge) {
		t.Error("SLM finish pulse extends into the settling gap")
	}
}

func TestFrameGenerationIsPure(t *testing.T) {
	cfg := validConfig()
	a := mustFrame(t, cfg)
	b := mustFrame(t, cfg)
	if diff := cmp.Diff(a.Pack(), b.Pack()); diff != "" {
		t.Errorf("two generations from one config differ:\n%s", diff)
	}
}

func TestLoopLength(t *testing.T) {
	cfg := validConfig()
	f := mustFrame(t, cfg)
	l := mustLoop(t, cfg, f)
	if l.Len() != cfg.FramesPerLoop*f.Len() {
		t.Errorf("loop length %d, expected %d", l.Len(), cfg.FramesPerLoop*f.Len())
	}
	if l.Len() != 90990 {
		t.Errorf("reference scenario loop length %d, expected 90990", l.Len())
	}
}

func TestLoopEnableBracket(t *testing.T) {
	cfg := validConfig()
	l := mustLoop(t, cfg, mustFrame(t, cfg))
	boundary := l.Len() - cfg.PostExposureGap
	for i := 0; i < l.Len(); i++ {
		want := i < boundary
		if l.Level(trigger.SLMEnableLine, i) != want {
			t.Fatalf("SLM enable at sample %d = %v, expected %v (bracket boundary %d)",
				i, !want, want, boundary)
		}
	}
}

func TestLoopRepeatsFramePattern(t *testing.T) {
	cfg := validConfig()
	f := mustFrame(t, cfg)
	l := mustLoop(t, cfg, f)
	spf := f.Len()
	for frame := 0; frame < cfg.FramesPerLoop; frame++ {
		base := frame * spf
		for _, line := range []int{trigger.CamTriggerLine, trigger.LaserTriggerLine, trigger.SLMTriggerLine, trigger.SLMFinishLine} {
			for _, offset := range []int{0, spf / 2, spf - 1} {
				if l.Level(line, base+offset) != f.Level(line, offset) {
					t.Fatalf("line %d frame %d offset %d does not match the frame pattern", line, frame, offset)
				}
			}
		}
	}
}

func TestLoopGenerationDeterministic(t *testing.T) {
	cfg := validConfig()
	a := mustLoop(t, cfg, mustFrame(t, cfg))
	b := mustLoop(t, cfg, mustFrame(t, cfg))
	if diff := cmp.Diff(a.Pack(), b.Pack()); diff != "" {
		t.Errorf("loop generation not deterministic:\n%s", diff)
	}
}

func TestLoopFrameMismatchRejected(t *testing.T) {
	cfg := validConfig()
	f := mustFrame(t, cfg)
	cfg2 := cfg
	cfg2.ExposureTime = cfg.ExposureTime * 2
	if _, err := trigger.NewLoop(cfg2, f); err == nil {
		t.Error("expected mismatched frame to be rejected")
	}
}

func TestPackBitmasks(t *testing.T) {
	cfg := validConfig()
	f := mustFrame(t, cfg)
	packed := f.Pack()
	var (
		expo = cfg.ExposureSamples()
		edge = cfg.TriggerEdgeWidth
	)
	cases := []struct {
		idx  int
		want uint16
	}{
		// start of frame: camera + laser + enable + SLM trigger
		{0, 1<<trigger.CamTriggerLine | 1<<trigger.LaserTriggerLine | 1<<trigger.SLMEnableLine | 1<<trigger.SLMTriggerLine},
		// mid exposure: camera + laser + enable
		{expo / 2, 1<<trigger.CamTriggerLine | 1<<trigger.LaserTriggerLine | 1<<trigger.SLMEnableLine},
		// finish pulse: enable + SLM finish
		{expo, 1<<trigger.SLMEnableLine | 1<<trigger.SLMFinishLine},
		// settling gap: enable only
		{expo + edge, 1 << trigger.SLMEnableLine},
	}
	for _, tc := range cases {
		if packed[tc.idx] != tc.want {
			t.Errorf("packed[%d] = %05b, expected %05b", tc.idx, packed[tc.idx], tc.want)
		}
	}
}

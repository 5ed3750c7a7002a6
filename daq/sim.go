package daq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.jpl.nasa.gov/bdube/simsync/util"
)

// Simulated is an Adapter backed by no hardware at all.  Playback takes the
// true wall-clock duration of the buffer (divided by TimeScale), and the
// synthesized camera-ready line rests at ReadyLow until ReadyDelay after
// input preparation, then sits at ReadyHigh.
//
// It enforces the same exclusivity rules a real driver would: one output
// task per device port, one input task per device channel.
type Simulated struct {
	// TimeScale divides playback and polling durations so tests can run a
	// multi-second acquisition in milliseconds.  Zero means 1 (real time).
	TimeScale float64

	// ReadyDelay is how long the ready line stays low after PrepareInput
	ReadyDelay time.Duration

	// ReadyLow and ReadyHigh are the synthesized voltage levels
	ReadyLow, ReadyHigh float64

	mu    sync.Mutex
	inUse map[string]bool
}

// NewSimulated returns a Simulated adapter with a 3.3V ready level and no
// ready delay, running at real time.
func NewSimulated() *Simulated {
	return &Simulated{
		ReadyHigh: 3.3,
		inUse:     map[string]bool{},
	}
}

func (s *Simulated) scale(d time.Duration) time.Duration {
	if s.TimeScale <= 0 {
		return d
	}
	return time.Duration(float64(d) / s.TimeScale)
}

// claim marks a device resource as owned, or reports ErrDeviceBusy
func (s *Simulated) claim(resource string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inUse[resource] {
		return ErrDeviceBusy
	}
	s.inUse[resource] = true
	return nil
}

func (s *Simulated) free(resource string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inUse, resource)
}

// PrepareOutput claims the device's digital port and returns a task whose
// Start sleeps out the buffer duration.
func (s *Simulated) PrepareOutput(device string, rate float64, buffer []uint16) (OutputTask, error) {
	if rate <= 0 {
		return nil, &SetupError{Op: "prepare-output", Err: fmt.Errorf("sample rate %v is not positive", rate)}
	}
	if len(buffer) == 0 {
		return nil, &SetupError{Op: "prepare-output", Err: errors.New("empty buffer")}
	}
	resource := device + "/port0"
	if err := s.claim(resource); err != nil {
		return nil, &SetupError{Op: "prepare-output", Err: err}
	}
	dur := util.SecsToDuration(float64(len(buffer)) / rate)
	return &simOutput{sim: s, resource: resource, playback: dur}, nil
}

// PrepareInput claims the device's analog channel and returns a task
// synthesizing the camera-ready voltage.
func (s *Simulated) PrepareInput(device string, channel int, rate float64) (InputTask, error) {
	if rate <= 0 {
		return nil, &SetupError{Op: "prepare-input", Err: fmt.Errorf("sample rate %v is not positive", rate)}
	}
	if channel < 0 {
		return nil, &SetupError{Op: "prepare-input", Err: fmt.Errorf("channel %d is negative", channel)}
	}
	resource := fmt.Sprintf("%s/ai%d", device, channel)
	if err := s.claim(resource); err != nil {
		return nil, &SetupError{Op: "prepare-input", Err: err}
	}
	return &simInput{sim: s, resource: resource, readyAt: time.Now().Add(s.scale(s.ReadyDelay))}, nil
}

type simOutput struct {
	sim      *Simulated
	resource string
	playback time.Duration

	mu       sync.Mutex
	released bool
}

func (t *simOutput) Start(ctx context.Context) error {
	t.mu.Lock()
	released := t.released
	t.mu.Unlock()
	if released {
		return &RuntimeError{Op: "start-output", Err: errors.New("task already released")}
	}
	timer := time.NewTimer(t.sim.scale(t.playback))
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return &RuntimeError{Op: "start-output", Err: ctx.Err()}
	}
}

func (t *simOutput) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.released {
		return
	}
	t.released = true
	t.sim.free(t.resource)
}

type simInput struct {
	sim      *Simulated
	resource string
	readyAt  time.Time

	mu       sync.Mutex
	released bool
}

// simBatchSize is how many samples a simulated read returns at most
const simBatchSize = 16

func (t *simInput) ReadSamples(max int, poll time.Duration) ([]float64, error) {
	t.mu.Lock()
	released := t.released
	t.mu.Unlock()
	if released {
		return nil, &RuntimeError{Op: "read-samples", Err: errors.New("task already released")}
	}
	if max < 1 {
		return nil, &RuntimeError{Op: "read-samples", Err: fmt.Errorf("max %d is not positive", max)}
	}
	time.Sleep(t.sim.scale(poll))
	level := t.sim.ReadyLow
	if !time.Now().Before(t.readyAt) {
		level = t.sim.ReadyHigh
	}
	// the synthesized voltage obeys the 0-10V input range of the ADC
	level = util.Clamp(level, 0, 10)
	n := max
	if n > simBatchSize {
		n = simBatchSize
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = level
	}
	return out, nil
}

func (t *simInput) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.released {
		return
	}
	t.released = true
	t.sim.free(t.resource)
}

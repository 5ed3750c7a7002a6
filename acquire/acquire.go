/*Package acquire sequences hardware-triggered SIM acquisitions.

An Orchestrator owns one run against one DAQ device: it generates the frame
and loop waveforms once, prepares the output and input tasks, then for each
loop waits for the camera-ready voltage, replays the loop buffer under the
hardware clock, and records the outcome.  The state machine is

	Idle -> Configured -> WaitingReady -> Executing -> LoopComplete
	                          ^                             |
	                          +--------- next loop ---------+
	                                                        v
	                                                  Done | Failed

Done and Failed are terminal; teardown runs on every exit path of Run, so no
hardware handle outlives a run regardless of outcome.
*/
package acquire

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.jpl.nasa.gov/bdube/simsync/daq"
	"github.jpl.nasa.gov/bdube/simsync/ready"
	"github.jpl.nasa.gov/bdube/simsync/trigger"
)

// ErrAlreadyRunning is returned by StartAsync when a run is in flight
var ErrAlreadyRunning = errors.New("acquire: a run is already in progress")

// State describes where the orchestrator is in its lifecycle
type State int

// states of the acquisition sequence, in order of occurrence
const (
	Idle State = iota
	Configured
	WaitingReady
	Executing
	LoopComplete
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Configured:
		return "configured"
	case WaitingReady:
		return "waiting-ready"
	case Executing:
		return "executing"
	case LoopComplete:
		return "loop-complete"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// FailureReason classifies why a loop did not succeed
type FailureReason int

// reasons a loop can fail, or NotRun when the run stopped before reaching it
const (
	FailureNone FailureReason = iota
	FailureReadyTimeout
	FailureHardware
	FailureCancelled
	FailureNotRun
)

func (f FailureReason) String() string {
	switch f {
	case FailureNone:
		return ""
	case FailureReadyTimeout:
		return "ready-timeout"
	case FailureHardware:
		return "hardware"
	case FailureCancelled:
		return "cancelled"
	case FailureNotRun:
		return "not-run"
	default:
		return fmt.Sprintf("FailureReason(%d)", int(f))
	}
}

// MarshalJSON encodes the reason as its string form
func (f FailureReason) MarshalJSON() ([]byte, error) {
	return []byte(`"` + f.String() + `"`), nil
}

// LoopResult records the outcome of one loop
type LoopResult struct {
	// Index is the zero-based loop index
	Index int `json:"index"`

	// Success is true if the loop's waveform played back completely
	Success bool `json:"success"`

	// Failure is why the loop did not succeed; empty on success
	Failure FailureReason `json:"failure"`
}

// Result aggregates a whole run
type Result struct {
	// Success is true iff every loop succeeded
	Success bool `json:"success"`

	// SetupFailed is true when the run aborted before any loop ran
	SetupFailed bool `json:"setupFailed"`

	// FirstFailure is the index of the first unsuccessful loop, -1 if none
	FirstFailure int `json:"firstFailure"`

	// Loops always holds one entry per configured loop; loops the run never
	// reached are marked not-run
	Loops []LoopResult `json:"loops"`

	// Error holds the fatal error text, if any
	Error string `json:"error,omitempty"`
}

// Orchestrator drives one acquisition run.  Construct with New; the zero
// value is not useful.
type Orchestrator struct {
	// ContinueOnReadyTimeout continues with the next loop after a ready
	// timeout instead of aborting the run.  The default (false) aborts,
	// since loss of the ready signal usually indicates a persistent
	// hardware fault.
	ContinueOnReadyTimeout bool

	cfg     trigger.Config
	adapter daq.Adapter
	monitor *ready.Monitor

	mu      sync.Mutex
	state   State
	frame   *trigger.Frame
	loop    *trigger.Loop
	out     daq.OutputTask
	in      daq.InputTask
	running bool
	cancel  context.CancelFunc
	last    *Result
}

// New returns an orchestrator for the given config and hardware adapter.
// The config is validated here so a bad one never reaches Setup.
func New(cfg trigger.Config, adapter daq.Adapter) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Orchestrator{
		cfg:     cfg,
		adapter: adapter,
		monitor: ready.NewMonitor(cfg.ReadyThreshold, cfg.ReadyTimeout),
		state:   Idle,
	}, nil
}

// Config returns the orchestrator's configuration
func (o *Orchestrator) Config() trigger.Config {
	return o.cfg
}

// Monitor returns the ready monitor so callers can tune batch size or
// debounce before the run starts
func (o *Orchestrator) Monitor() *ready.Monitor {
	return o.monitor
}

// State returns the current state of the run
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// LastResult returns the most recent run result, and false if no run has
// completed yet
func (o *Orchestrator) LastResult() (Result, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.last == nil {
		return Result{}, false
	}
	return *o.last, true
}

// Setup generates the waveforms and prepares the hardware tasks.  It is
// idempotent: a second call on a configured orchestrator is a no-op.  On
// failure every partially acquired handle is released and the orchestrator
// stays Idle.
func (o *Orchestrator) Setup() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.out != nil && o.in != nil {
		// already configured
		return nil
	}
	// waveform generation is pure and precedes all hardware access
	frame, err := trigger.NewFrame(o.cfg)
	if err != nil {
		return err
	}
	loop, err := trigger.NewLoop(o.cfg, frame)
	if err != nil {
		return err
	}
	out, err := o.adapter.PrepareOutput(o.cfg.DeviceName, o.cfg.SampleRate, loop.Pack())
	if err != nil {
		return err
	}
	in, err := o.adapter.PrepareInput(o.cfg.DeviceName, o.cfg.ReadyChannel, o.cfg.SampleRate)
	if err != nil {
		out.Release()
		return err
	}
	o.frame = frame
	o.loop = loop
	o.out = out
	o.in = in
	o.state = Configured
	log.Printf("acquire: configured %s: %d loops of %s", o.cfg.DeviceName, o.cfg.NumLoops, loop)
	return nil
}

// Teardown releases the hardware tasks.  It is safe to call any number of
// times and is always executed by Run.
func (o *Orchestrator) Teardown() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.out != nil {
		o.out.Release()
		o.out = nil
	}
	if o.in != nil {
		o.in.Release()
		o.in = nil
	}
}

// Run executes the full state machine and returns the aggregated result.
// The result is always populated, one entry per loop.  The error is non-nil
// for fatal conditions (invalid config, hardware setup or runtime failure,
// cancellation); a ready timeout under the default abort policy yields a
// failed Result with a nil error, since it is a reported condition rather
// than a fault of the run machinery.
//
// Hardware handles are released before Run returns, on every path.
func (o *Orchestrator) Run(ctx context.Context) (Result, error) {
	res := Result{FirstFailure: -1, Loops: make([]LoopResult, o.cfg.NumLoops)}
	for i := range res.Loops {
		res.Loops[i] = LoopResult{Index: i, Failure: FailureNotRun}
	}
	finish := func(err error) (Result, error) {
		o.Teardown()
		if err != nil {
			res.Error = err.Error()
		}
		res.Success = true
		for _, lr := range res.Loops {
			if !lr.Success {
				res.Success = false
				if res.FirstFailure == -1 {
					res.FirstFailure = lr.Index
				}
			}
		}
		o.mu.Lock()
		o.last = &res
		o.mu.Unlock()
		return res, err
	}

	if err := o.Setup(); err != nil {
		res.SetupFailed = true
		o.setState(Failed)
		return finish(err)
	}
	defer o.Teardown()
	// snapshot the handles; a concurrent Teardown nils the fields
	o.mu.Lock()
	out, in := o.out, o.in
	o.mu.Unlock()

	var lastLoopStart time.Time
	for i := 0; i < o.cfg.NumLoops; i++ {
		// cancellation is honored between loops only; playback is atomic
		// once started
		if err := ctx.Err(); err != nil {
			res.Loops[i].Failure = FailureCancelled
			o.setState(Failed)
			return finish(fmt.Errorf("run cancelled before loop %d: %w", i, err))
		}
		if err := o.paceLoop(ctx, i, lastLoopStart); err != nil {
			res.Loops[i].Failure = FailureCancelled
			o.setState(Failed)
			return finish(err)
		}
		lastLoopStart = time.Now()

		o.setState(WaitingReady)
		evt, err := o.monitor.WaitForReady(ctx, in)
		if err != nil {
			if ctx.Err() != nil {
				res.Loops[i].Failure = FailureCancelled
				o.setState(Failed)
				return finish(fmt.Errorf("run cancelled during ready wait of loop %d: %w", i, err))
			}
			res.Loops[i].Failure = FailureHardware
			o.setState(Failed)
			return finish(fmt.Errorf("ready monitor failed on loop %d: %w", i, err))
		}
		if !evt.Ready {
			log.Printf("acquire: loop %d ready wait timed out after %v (%d samples inspected)",
				i, evt.Elapsed, evt.SamplesInspected)
			res.Loops[i].Failure = FailureReadyTimeout
			if !o.ContinueOnReadyTimeout {
				o.setState(Failed)
				return finish(nil)
			}
			continue
		}

		o.setState(Executing)
		if err := out.Start(ctx); err != nil {
			// the hardware's playback is atomic; an abort here only stops
			// the wait for completion
			if ctx.Err() != nil {
				res.Loops[i].Failure = FailureCancelled
			} else {
				res.Loops[i].Failure = FailureHardware
			}
			o.setState(Failed)
			return finish(fmt.Errorf("output playback failed on loop %d: %w", i, err))
		}
		res.Loops[i].Success = true
		res.Loops[i].Failure = FailureNone
		o.setState(LoopComplete)
		log.Printf("acquire: loop %d/%d complete", i+1, o.cfg.NumLoops)
	}
	o.setState(Done)
	return finish(nil)
}

// paceLoop sleeps out the remainder of the configured loop spacing, measured
// start to start.  An overrunning loop logs a warning and the next loop
// starts immediately.
func (o *Orchestrator) paceLoop(ctx context.Context, index int, lastStart time.Time) error {
	if o.cfg.LoopSpacing <= 0 || index == 0 {
		return nil
	}
	remain := o.cfg.LoopSpacing - time.Since(lastStart)
	if remain <= 0 {
		log.Printf("acquire: loop %d overran the %v spacing, starting loop %d immediately",
			index-1, o.cfg.LoopSpacing, index)
		return nil
	}
	timer := time.NewTimer(remain)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("run cancelled during loop spacing before loop %d: %w", index, ctx.Err())
	}
}

// StartAsync launches Run on a background goroutine with a cancel hook for
// Abort.  It returns ErrAlreadyRunning if a run is in flight.
func (o *Orchestrator) StartAsync() error {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(context.Background())
	o.running = true
	o.cancel = cancel
	o.mu.Unlock()
	go func() {
		defer cancel()
		if _, err := o.Run(ctx); err != nil {
			log.Printf("acquire: run finished with error: %v", err)
		}
		o.mu.Lock()
		o.running = false
		o.cancel = nil
		o.mu.Unlock()
	}()
	return nil
}

// Abort requests cancellation of an in-flight run.  The run stops at the
// next loop boundary; it is a no-op when nothing is running.
func (o *Orchestrator) Abort() {
	o.mu.Lock()
	cancel := o.cancel
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Running reports whether a background run is in flight
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

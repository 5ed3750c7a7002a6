/*Package ready decides when the camera can accept the next trigger.

The camera exposes readiness as an analog voltage; a Monitor polls batches of
samples from a SampleSource and reports ready as soon as a sample rises
strictly above the threshold (strictly, to match the camera's hysteresis:
a sample sitting exactly at threshold does not count).  A timeout produces a
reported Event with Ready false, not an error; only a failing sample source
is an error.

Polling is capped with a rate limiter so a fast source cannot spin the CPU;
the poll interval also sets the detection latency, about one cycle.
*/
package ready

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// defaults for Monitor fields left at zero
const (
	// DefaultBatchSize is how many samples to request per poll
	DefaultBatchSize = 100

	// DefaultPollInterval is the pacing of polls, and so the worst-case
	// latency from threshold crossing to detection
	DefaultPollInterval = 10 * time.Millisecond

	// DefaultMinConsecutive requires a single qualifying sample; raise it
	// to debounce a noisy line
	DefaultMinConsecutive = 1
)

// SampleSource produces the next available analog samples, blocking up to
// poll for data.  daq.InputTask satisfies it.
type SampleSource interface {
	ReadSamples(max int, poll time.Duration) ([]float64, error)
}

// Event is the outcome of one wait for the ready line.
type Event struct {
	// Ready is true if a sample rose above the threshold before the timeout
	Ready bool `json:"ready"`

	// Elapsed is how long the wait took
	Elapsed time.Duration `json:"elapsed"`

	// SamplesInspected counts every sample compared during the wait
	SamplesInspected int `json:"samplesInspected"`
}

// Monitor watches a sample source for the ready condition.  The zero value
// is not useful; use NewMonitor or populate Threshold and Timeout.
type Monitor struct {
	// Threshold is the comparison level in volts.  Samples must exceed it
	// strictly.
	Threshold float64

	// Timeout bounds the whole wait
	Timeout time.Duration

	// MinConsecutive is the number of consecutive qualifying samples
	// required before declaring ready.  Values above 1 debounce a noisy
	// signal sitting near the threshold.
	MinConsecutive int

	// BatchSize is how many samples to request per poll
	BatchSize int

	// PollInterval caps the polling rate
	PollInterval time.Duration
}

// NewMonitor returns a Monitor with the package defaults for batch size,
// poll interval, and debounce.
func NewMonitor(threshold float64, timeout time.Duration) *Monitor {
	return &Monitor{
		Threshold:      threshold,
		Timeout:        timeout,
		MinConsecutive: DefaultMinConsecutive,
		BatchSize:      DefaultBatchSize,
		PollInterval:   DefaultPollInterval,
	}
}

// WaitForReady polls src until a sample exceeds the threshold, the timeout
// elapses, or the context is cancelled.  A timeout is reported in the Event
// with a nil error; source failures and cancellation return a non-nil error
// alongside the partial Event.
func (m *Monitor) WaitForReady(ctx context.Context, src SampleSource) (Event, error) {
	var (
		batch   = m.BatchSize
		poll    = m.PollInterval
		needed  = m.MinConsecutive
		evt     Event
		started = time.Now()
	)
	if batch < 1 {
		batch = DefaultBatchSize
	}
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	if needed < 1 {
		needed = DefaultMinConsecutive
	}
	limiter := rate.NewLimiter(rate.Every(poll), 1)
	consecutive := 0
	for {
		if err := limiter.Wait(ctx); err != nil {
			evt.Elapsed = time.Since(started)
			// the limiter reports its own error for a deadline it cannot
			// meet; surface the context's error when there is one so
			// callers can classify cancellation
			if cerr := ctx.Err(); cerr != nil {
				return evt, cerr
			}
			return evt, err
		}
		samples, err := src.ReadSamples(batch, poll)
		if err != nil {
			evt.Elapsed = time.Since(started)
			return evt, err
		}
		for _, s := range samples {
			evt.SamplesInspected++
			if s > m.Threshold {
				consecutive++
				if consecutive >= needed {
					evt.Ready = true
					evt.Elapsed = time.Since(started)
					return evt, nil
				}
			} else {
				consecutive = 0
			}
		}
		if time.Since(started) >= m.Timeout {
			evt.Elapsed = time.Since(started)
			return evt, nil
		}
	}
}

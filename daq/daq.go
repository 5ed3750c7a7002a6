/*Package daq defines the contract between the acquisition core and the
hardware I/O layer that owns the physical device.

The core never touches a driver directly; it hands a packed waveform buffer
to an OutputTask and reads voltage batches from an InputTask.  Concrete
adapters (NI-DAQmx bindings, vendor SDKs) live outside this repository; the
Simulated adapter in this package stands in for them in tests and demos.

Task handles are exclusively owned: preparing a task on a device resource
that is already claimed fails fast with ErrDeviceBusy rather than queueing.
*/
package daq

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrDeviceBusy is returned when a device resource is already claimed by
// another task.  It is never retried silently; the caller decides.
var ErrDeviceBusy = errors.New("device resource is claimed by another task")

// SetupError indicates the device could not be reached or configured.
// It is fatal for the run; nothing was started.
type SetupError struct {
	// Op is the adapter operation that failed, e.g. "prepare-output"
	Op string

	// Err is the underlying cause
	Err error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("daq: setup: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause for use with errors.Is/As
func (e *SetupError) Unwrap() error {
	return e.Err
}

// RuntimeError indicates a prepared task failed while running.
// It is fatal for the current loop.
type RuntimeError struct {
	// Op is the adapter operation that failed, e.g. "start-output"
	Op string

	// Err is the underlying cause
	Err error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("daq: runtime: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause for use with errors.Is/As
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// An OutputTask is a prepared, hardware-clocked digital output generation.
// The buffer is loaded at preparation time; Start replays it once per call.
type OutputTask interface {
	// Start begins clocked playback of the prepared buffer and blocks until
	// the hardware confirms the last sample was generated.  The context
	// bounds the wait; its cancellation surfaces as a RuntimeError.
	Start(ctx context.Context) error

	// Release frees the hardware resources behind the task.  It is
	// idempotent and never fails.
	Release()
}

// An InputTask is a prepared, continuously-sampled analog input.
type InputTask interface {
	// ReadSamples returns up to max of the next available voltage samples,
	// blocking up to poll for data to arrive.  The returned batch is never
	// empty when the error is nil.
	ReadSamples(max int, poll time.Duration) ([]float64, error)

	// Release frees the hardware resources behind the task.  It is
	// idempotent and never fails.
	Release()
}

// Adapter prepares clocked I/O tasks on one DAQ device.
type Adapter interface {
	// PrepareOutput creates an output task on the device's digital port,
	// clocked at rate Hz, loaded with one port bitmask per sample.
	PrepareOutput(device string, rate float64, buffer []uint16) (OutputTask, error)

	// PrepareInput creates an input task sampling one analog channel at
	// rate Hz.
	PrepareInput(device string, channel int, rate float64) (InputTask, error)
}

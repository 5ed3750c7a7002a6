/*Package trigger generates the hardware-timed digital waveforms that
synchronize a camera, a laser, and a spatial light modulator (SLM) during a
structured illumination acquisition.

Waveforms are expressed on five logical lines of one digital output port:

	line 0: camera trigger (level, active high, asserted for the exposure)
	line 1: laser trigger (level, shares the camera's edge pair)
	line 2: SLM enable (level, high for the whole loop)
	line 3: SLM trigger (rising pulse, "change pattern now")
	line 4: SLM finish (rising pulse, "pattern retirement safe point")

Generation is pure: the same Config always produces byte-identical output,
and nothing in this package touches hardware.  The packed form (one port
bitmask per sample clock tick, bit i = line i) is what the output task of a
DAQ consumes.
*/
package trigger

import (
	"fmt"
	"time"

	"github.jpl.nasa.gov/bdube/simsync/mathx"
)

// digital output line assignments.  These mirror the physical wiring and are
// not renegotiable at runtime.
const (
	// CamTriggerLine is the camera trigger output
	CamTriggerLine = 0

	// LaserTriggerLine is the laser TTL modulation input
	LaserTriggerLine = 1

	// SLMEnableLine gates the SLM's pattern sequencing
	SLMEnableLine = 2

	// SLMTriggerLine advances the SLM to the next pattern
	SLMTriggerLine = 3

	// SLMFinishLine marks the pattern retirement safe point
	SLMFinishLine = 4

	// NumLines is the number of logical output lines
	NumLines = 5
)

// default tuning values.  All of them may be overridden per Config.
const (
	// DefaultSampleRate is the output sample clock, Hz (10us resolution)
	DefaultSampleRate = 100000

	// DefaultTriggerEdgeWidth is the width of the SLM trigger and finish
	// pulses in samples
	DefaultTriggerEdgeWidth = 10

	// DefaultPostExposureGap is the settling time appended after each
	// exposure, in samples.  It bounds the achievable frame rate.
	DefaultPostExposureGap = 100

	// DefaultReadyThreshold is the camera-ready comparison level in volts,
	// on a 0-10V input range
	DefaultReadyThreshold = 2.5

	// DefaultReadyTimeout is how long to wait for the camera-ready line
	// before declaring the wait failed
	DefaultReadyTimeout = 5 * time.Second
)

// ConfigError describes a Config that cannot produce a valid waveform.
// It is always detected before any hardware access.
type ConfigError string

func (e ConfigError) Error() string {
	return "trigger: invalid configuration: " + string(e)
}

// Config holds the parameters for one acquisition run.  It is treated as
// immutable once validated; the generators and the orchestrator only read it.
type Config struct {
	// DeviceName is the DAQ device identifier, e.g. "Dev1"
	DeviceName string

	// ExposureTime is the camera exposure per frame.  Microsecond granularity.
	ExposureTime time.Duration

	// FramesPerLoop is the number of triggered exposures per loop
	// (9 for a typical SIM reconstruction)
	FramesPerLoop int

	// NumLoops is the number of complete loops to acquire
	NumLoops int

	// SampleRate is the output sample clock in Hz
	SampleRate float64

	// TriggerEdgeWidth is the SLM trigger/finish pulse width in samples
	TriggerEdgeWidth int

	// PostExposureGap is the settling gap after each exposure in samples
	PostExposureGap int

	// ReadyChannel is the analog input channel carrying the camera-ready
	// voltage
	ReadyChannel int

	// ReadyThreshold is the camera-ready comparison level in volts
	ReadyThreshold float64

	// ReadyTimeout bounds each wait for the camera-ready signal
	ReadyTimeout time.Duration

	// LoopSpacing is the target interval between the starts of consecutive
	// loops.  Zero disables pacing.
	LoopSpacing time.Duration
}

// ApplyDefaults fills the zero-valued tuning fields of c with the package
// defaults.  The required fields (device, exposure, frames, loops) are never
// touched; Validate rejects them if missing.
func (c *Config) ApplyDefaults() {
	if c.SampleRate == 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.TriggerEdgeWidth == 0 {
		c.TriggerEdgeWidth = DefaultTriggerEdgeWidth
	}
	if c.PostExposureGap == 0 {
		c.PostExposureGap = DefaultPostExposureGap
	}
	if c.ReadyThreshold == 0 {
		c.ReadyThreshold = DefaultReadyThreshold
	}
	if c.ReadyTimeout == 0 {
		c.ReadyTimeout = DefaultReadyTimeout
	}
}

// ExposureSamples converts the exposure time to a count of output samples.
// The conversion is exposure_us * sample_rate / 1e6, rounded half-up; the
// exposure duration commanded to the hardware is therefore within one sample
// period of the requested one.
func (c Config) ExposureSamples() int {
	return mathx.RoundHalfUp(c.ExposureTime.Seconds() * c.SampleRate)
}

// SamplesPerFrame is the total length of one frame waveform:
// exposure + finish pulse + post-exposure gap.
func (c Config) SamplesPerFrame() int {
	return c.ExposureSamples() + c.TriggerEdgeWidth + c.PostExposureGap
}

// LoopSamples is the total length of one loop waveform.
func (c Config) LoopSamples() int {
	return c.FramesPerLoop * c.SamplesPerFrame()
}

// Validate checks the config and returns a ConfigError describing the first
// violation found, or nil.  A config that passes Validate always generates.
func (c Config) Validate() error {
	if c.DeviceName == "" {
		return ConfigError("device name is empty")
	}
	if c.ExposureTime <= 0 {
		return ConfigError("exposure time must be positive")
	}
	if c.FramesPerLoop < 1 {
		return ConfigError(fmt.Sprintf("frames per loop must be >= 1, got %d", c.FramesPerLoop))
	}
	if c.NumLoops < 1 {
		return ConfigError(fmt.Sprintf("num loops must be >= 1, got %d", c.NumLoops))
	}
	if c.SampleRate <= 0 {
		return ConfigError("sample rate must be positive")
	}
	if c.TriggerEdgeWidth < 1 {
		return ConfigError("trigger edge width must be >= 1 sample")
	}
	if c.PostExposureGap < 1 {
		return ConfigError("post exposure gap must be >= 1 sample")
	}
	if c.ReadyChannel < 0 {
		return ConfigError("ready channel must be >= 0")
	}
	if c.ReadyThreshold <= 0 || c.ReadyThreshold >= 10 {
		return ConfigError("ready threshold must lie inside the 0-10V input range")
	}
	if c.ReadyTimeout <= 0 {
		return ConfigError("ready timeout must be positive")
	}
	es := c.ExposureSamples()
	if es < 1 {
		return ConfigError("exposure shorter than one sample period")
	}
	if es < c.TriggerEdgeWidth {
		// the SLM trigger and finish pulses would overlap
		return ConfigError(fmt.Sprintf("exposure (%d samples) shorter than trigger edge width (%d samples)", es, c.TriggerEdgeWidth))
	}
	return nil
}

// Package mathx provides the deterministic rounding rules shared by the
// waveform generators.  Sample counts are always derived from durations with
// RoundHalfUp so the same config produces the same waveform everywhere.
package mathx

// Round rounds a float to the nearest "unit" (0.1 for tenth, 0.01 for hundredth, and so on).
func Round(x, unit float64) float64 {
	return float64(int64(x/unit+0.5)) * unit
}

// RoundHalfUp rounds a nonnegative float to the nearest integer, ties going up.
// e.g. 1.5 => 2, 1.49 => 1.  Behavior for negative inputs is unspecified;
// sample counts are never negative.
func RoundHalfUp(x float64) int {
	return int(x + 0.5)
}

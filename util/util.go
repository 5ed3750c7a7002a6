// Package util contains misc internal utilities.
package util

import "time"

// SetBit16 sets or clears a given bit in a 16-bit port mask.
func SetBit16(mask uint16, bitIndex uint, on bool) uint16 {
	if on {
		return mask | (1 << bitIndex)
	}
	return mask &^ (1 << bitIndex)
}

// GetBit16 returns the value of a given bit in a 16-bit port mask
func GetBit16(mask uint16, bitIndex uint) bool {
	return (mask & (1 << bitIndex)) != 0
}

// SecsToDuration converts a float number of seconds to a time.Duration
func SecsToDuration(secs float64) time.Duration {
	return time.Duration(secs * float64(time.Second))
}

// Clamp limits x to low < x < high, returning the nearer bound when x is
// out of range
func Clamp(x, low, high float64) float64 {
	if x < low {
		return low
	}
	if x > high {
		return high
	}
	return x
}

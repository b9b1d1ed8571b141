package utils

import (
	"math"
)

// DegToRad converts degrees to radians.
func DegToRad(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// RadToDeg converts radians to degrees.
func RadToDeg(radians float64) float64 {
	return radians * 180 / math.Pi
}

// Clamp restricts v to the closed interval [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Lerp linearly interpolates between from and to. by=0 returns from, by=1 returns to.
func Lerp(from, to, by float64) float64 {
	return from + (to-from)*by
}

// SampleRandomFloat samples a float uniformly within [lo, hi] given a source of [0, 1) values.
func SampleRandomFloat(lo, hi float64, unit func() float64) float64 {
	return lo + unit()*(hi-lo)
}

// MetersToMM converts meters to millimeters.
func MetersToMM(meters float64) float64 {
	return meters * 1000
}

// MMToMeters converts millimeters to meters.
func MMToMeters(mm float64) float64 {
	return mm / 1000
}

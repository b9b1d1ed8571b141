package referenceframe

import (
	"math"

	"go.viam.com/armsim/utils"
)

// nearLimitFraction is the share of the half-range from center beyond which a joint is reported
// as near its limit.
const nearLimitFraction = 0.9

// Limit represents the limits of motion of a revolute joint, in radians.
type Limit struct {
	Min float64
	Max float64
}

// Clamp returns v restricted to [Min, Max].
func (l Limit) Clamp(v float64) float64 {
	return utils.Clamp(v, l.Min, l.Max)
}

// Contains reports whether v lies within the limit, inclusive.
func (l Limit) Contains(v float64) bool {
	return v >= l.Min && v <= l.Max
}

// Normalize maps v onto [0, 1] across the limit range. Degenerate or unbounded ranges map to 0.5.
func (l Limit) Normalize(v float64) float64 {
	span := l.Max - l.Min
	if span <= 0 || math.IsInf(span, 0) || math.IsNaN(span) {
		return 0.5
	}
	return (v - l.Min) / span
}

// NearLimit reports whether v is within the outer tenth of the range on either side.
func (l Limit) NearLimit(v float64) bool {
	halfRange := (l.Max - l.Min) / 2
	if math.IsInf(halfRange, 0) {
		return false
	}
	center := (l.Max + l.Min) / 2
	return math.Abs(v-center) > halfRange*nearLimitFraction
}

// JointStatus classifies a joint angle against its limit.
type JointStatus int

// Joint statuses, in increasing severity.
const (
	StatusOK JointStatus = iota
	StatusNearLimit
	StatusOutOfRange
)

func (s JointStatus) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNearLimit:
		return "near-limit"
	case StatusOutOfRange:
		return "out-of-range"
	default:
		return "unknown"
	}
}

// Status classifies v against the limit.
func (l Limit) Status(v float64) JointStatus {
	switch {
	case !l.Contains(v):
		return StatusOutOfRange
	case l.NearLimit(v):
		return StatusNearLimit
	default:
		return StatusOK
	}
}

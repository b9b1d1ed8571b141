// Package ros contains the ROS message shapes armsim publishes and reads, and helpers for
// pulling them out of rosbag recordings.
package ros

import (
	"time"
)

// JointStatesTopic is the topic joint angle vectors are published on.
const JointStatesTopic = "/joint_states"

// DefaultFrameID is the frame joint states are reported in.
const DefaultFrameID = "base_link"

// Time is a ROS timestamp.
type Time struct {
	Secs  int64 `json:"secs"`
	Nsecs int64 `json:"nsecs"`
}

// NewTime converts t to a ROS timestamp.
func NewTime(t time.Time) Time {
	return Time{Secs: t.Unix(), Nsecs: int64(t.Nanosecond())}
}

// Time converts the stamp back to a time.Time.
func (t Time) Time() time.Time {
	return time.Unix(t.Secs, t.Nsecs)
}

// Header is the standard ROS message header.
type Header struct {
	Seq     uint32 `json:"seq"`
	Stamp   Time   `json:"stamp"`
	FrameID string `json:"frame_id"`
}

// JointState is a sensor_msgs/JointState message. Position is in radians.
type JointState struct {
	Header   Header    `json:"header"`
	Name     []string  `json:"name"`
	Position []float64 `json:"position"`
	Velocity []float64 `json:"velocity,omitempty"`
	Effort   []float64 `json:"effort,omitempty"`
}

// Copy returns a deep copy so subscribers may keep or modify the message.
func (js JointState) Copy() JointState {
	out := js
	out.Name = append([]string(nil), js.Name...)
	out.Position = append([]float64(nil), js.Position...)
	out.Velocity = append([]float64(nil), js.Velocity...)
	out.Effort = append([]float64(nil), js.Effort...)
	return out
}

// Package body holds the skeletal tracking data model shared by the pipeline stages.
//
// Positions are millimetres. Until a frame passes through the transform stage the
// positions are sensor-local; afterwards they are world-space.
package body

import (
	"fmt"
	"time"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// JointCount is the number of joints in every skeleton.
const JointCount = 32

// ConfidenceLevel is the tracking engine's per-joint certainty classification.
type ConfidenceLevel int

const (
	ConfidenceNone ConfidenceLevel = iota
	ConfidenceLow
	ConfidenceMedium
	ConfidenceHigh
)

func (c ConfidenceLevel) String() string {
	switch c {
	case ConfidenceNone:
		return "none"
	case ConfidenceLow:
		return "low"
	case ConfidenceMedium:
		return "medium"
	case ConfidenceHigh:
		return "high"
	default:
		return fmt.Sprintf("confidence(%d)", int(c))
	}
}

// Joint is one tracked joint.
type Joint struct {
	Position    r3.Vector       `json:"position"`
	Orientation quat.Number     `json:"orientation"`
	Confidence  ConfidenceLevel `json:"confidence"`
}

// Skeleton is indexed by JointID. The array type keeps the joint count fixed.
type Skeleton [JointCount]Joint

// Body is one tracked person. ID is unique within a Frame only.
type Body struct {
	ID       uint32   `json:"id"`
	Skeleton Skeleton `json:"skeleton"`
}

// Frame is the tracking result for one capture.
type Frame struct {
	Sequence  uint64        `json:"sequence"`
	Timestamp time.Duration `json:"timestamp"`
	Bodies    []Body        `json:"bodies"`
}

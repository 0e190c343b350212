// Package transform maps sensor-local joint positions into the world frame.
//
// Only translation by the sensor's global offset is applied. The sensor is
// assumed to be mounted axis-aligned with the world frame; if a rotation is
// ever needed it must be added here explicitly, together with the matching
// orientation change.
package transform

import (
	"github.com/golang/geo/r3"

	"github.com/bryanchriswhite/BodyStreamer/internal/body"
)

// ToWorld returns local + offset componentwise.
func ToWorld(local, offset r3.Vector) r3.Vector {
	return local.Add(offset)
}

// Joint translates a joint's position. Orientation and confidence pass through.
func Joint(j body.Joint, offset r3.Vector) body.Joint {
	j.Position = ToWorld(j.Position, offset)
	return j
}

// Skeleton translates every joint of s.
func Skeleton(s body.Skeleton, offset r3.Vector) body.Skeleton {
	for i := range s {
		s[i] = Joint(s[i], offset)
	}
	return s
}

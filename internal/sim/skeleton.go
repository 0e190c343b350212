package sim

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"github.com/bryanchriswhite/BodyStreamer/internal/body"
)

// Standing pose in the depth camera frame: x right, y down, z away from the
// sensor, millimetres, pelvis about two metres in front of the camera.
var standing = [body.JointCount]r3.Vector{
	body.Pelvis:        {X: 0, Y: 0, Z: 2000},
	body.SpineNavel:    {X: 0, Y: -200, Z: 2000},
	body.SpineChest:    {X: 0, Y: -380, Z: 2010},
	body.Neck:          {X: 0, Y: -560, Z: 2020},
	body.ClavicleLeft:  {X: -40, Y: -520, Z: 2020},
	body.ShoulderLeft:  {X: -180, Y: -500, Z: 2020},
	body.ElbowLeft:     {X: -210, Y: -230, Z: 2020},
	body.WristLeft:     {X: -220, Y: 20, Z: 2000},
	body.HandLeft:      {X: -225, Y: 90, Z: 1995},
	body.HandTipLeft:   {X: -230, Y: 160, Z: 1990},
	body.ThumbLeft:     {X: -195, Y: 70, Z: 1970},
	body.ClavicleRight: {X: 40, Y: -520, Z: 2020},
	body.ShoulderRight: {X: 180, Y: -500, Z: 2020},
	body.ElbowRight:    {X: 210, Y: -230, Z: 2020},
	body.WristRight:    {X: 220, Y: 20, Z: 2000},
	body.HandRight:     {X: 225, Y: 90, Z: 1995},
	body.HandTipRight:  {X: 230, Y: 160, Z: 1990},
	body.ThumbRight:    {X: 195, Y: 70, Z: 1970},
	body.HipLeft:       {X: -90, Y: 20, Z: 2000},
	body.KneeLeft:      {X: -95, Y: 440, Z: 2010},
	body.AnkleLeft:     {X: -100, Y: 850, Z: 2020},
	body.FootLeft:      {X: -100, Y: 900, Z: 1900},
	body.HipRight:      {X: 90, Y: 20, Z: 2000},
	body.KneeRight:     {X: 95, Y: 440, Z: 2010},
	body.AnkleRight:    {X: 100, Y: 850, Z: 2020},
	body.FootRight:     {X: 100, Y: 900, Z: 1900},
	body.Head:          {X: 0, Y: -680, Z: 2020},
	body.Nose:          {X: 0, Y: -670, Z: 1920},
	body.EyeLeft:       {X: -35, Y: -700, Z: 1935},
	body.EarLeft:       {X: -75, Y: -690, Z: 2020},
	body.EyeRight:      {X: 35, Y: -700, Z: 1935},
	body.EarRight:      {X: 75, Y: -690, Z: 2020},
}

var identity = quat.Number{Real: 1}

// StandingSkeleton returns the reference pose with every joint at high confidence.
func StandingSkeleton() body.Skeleton {
	var s body.Skeleton
	for i := range s {
		s[i] = body.Joint{
			Position:    standing[i],
			Orientation: identity,
			Confidence:  body.ConfidenceHigh,
		}
	}
	return s
}

// WalkingBody returns body id at capture n: the standing pose drifting sideways
// with arms and legs swinging. The output depends only on id and n.
func WalkingBody(id uint32, n int) body.Body {
	s := StandingSkeleton()
	phase := float64(n) * 2 * math.Pi / 30
	swing := 120 * math.Sin(phase)
	drift := r3.Vector{X: 600*math.Sin(phase/8) + float64(id)*700 - 700}

	for i := range s {
		s[i].Position = s[i].Position.Add(drift)
	}
	for _, j := range []body.JointID{body.ElbowLeft, body.KneeRight} {
		s[j].Position.Z += swing / 2
	}
	for _, j := range []body.JointID{body.WristLeft, body.HandLeft, body.HandTipLeft, body.ThumbLeft, body.AnkleRight, body.FootRight} {
		s[j].Position.Z += swing
	}
	for _, j := range []body.JointID{body.ElbowRight, body.KneeLeft} {
		s[j].Position.Z -= swing / 2
	}
	for _, j := range []body.JointID{body.WristRight, body.HandRight, body.HandTipRight, body.ThumbRight, body.AnkleLeft, body.FootLeft} {
		s[j].Position.Z -= swing
	}
	return body.Body{ID: id, Skeleton: s}
}

// Crowd returns count walking bodies with ids 1..count.
func Crowd(count int) func(n int) []body.Body {
	return func(n int) []body.Body {
		bodies := make([]body.Body, count)
		for i := range bodies {
			bodies[i] = WalkingBody(uint32(i+1), n)
		}
		return bodies
	}
}

package transform

import (
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/num/quat"

	"github.com/bryanchriswhite/BodyStreamer/internal/body"
)

func TestToWorldIdentity(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		p := r3.Vector{X: rng.NormFloat64() * 1000, Y: rng.NormFloat64() * 1000, Z: rng.Float64() * 5000}
		assert.Equal(t, p, ToWorld(p, r3.Vector{}))
	}
}

func TestToWorldTranslates(t *testing.T) {
	tests := []struct {
		name   string
		local  r3.Vector
		offset r3.Vector
		want   r3.Vector
	}{
		{"positive offset", r3.Vector{X: 1, Y: 2, Z: 3}, r3.Vector{X: 10, Y: 20, Z: 30}, r3.Vector{X: 11, Y: 22, Z: 33}},
		{"negative offset", r3.Vector{X: 100, Y: -50, Z: 2000}, r3.Vector{X: -100, Y: 50, Z: -2000}, r3.Vector{}},
		{"unknown sentinel is applied as-is", r3.Vector{X: 5, Y: 5, Z: 5}, r3.Vector{X: -1, Y: -1, Z: -1}, r3.Vector{X: 4, Y: 4, Z: 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToWorld(tt.local, tt.offset))
		})
	}
}

func TestJointKeepsOrientation(t *testing.T) {
	j := body.Joint{
		Position:    r3.Vector{X: 1, Y: 2, Z: 3},
		Orientation: quat.Number{Real: 0.5, Imag: 0.5, Jmag: 0.5, Kmag: 0.5},
		Confidence:  body.ConfidenceMedium,
	}
	got := Joint(j, r3.Vector{X: 10, Y: 20, Z: 30})
	assert.Equal(t, r3.Vector{X: 11, Y: 22, Z: 33}, got.Position)
	assert.Equal(t, j.Orientation, got.Orientation)
	assert.Equal(t, j.Confidence, got.Confidence)
}

func TestSkeletonLeavesInputUntouched(t *testing.T) {
	var s body.Skeleton
	for i := range s {
		s[i].Position = r3.Vector{X: float64(i), Y: float64(2 * i), Z: float64(3 * i)}
	}
	offset := r3.Vector{X: 10, Y: 20, Z: 30}

	got := Skeleton(s, offset)
	for i := range got {
		assert.Equal(t, s[i].Position.Add(offset), got[i].Position)
	}
	assert.Equal(t, r3.Vector{}, s[0].Position)
}

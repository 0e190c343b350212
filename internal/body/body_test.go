package body

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSkeletonHasFixedJointCount(t *testing.T) {
	var s Skeleton
	assert.Len(t, s, JointCount)
	assert.Equal(t, 32, JointCount)
}

func TestJointNames(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < JointCount; i++ {
		name := JointID(i).String()
		require.NotEmpty(t, name)
		assert.False(t, seen[name], "duplicate joint name %q", name)
		seen[name] = true
	}

	assert.Equal(t, "pelvis", Pelvis.String())
	assert.Equal(t, "ear_right", EarRight.String())
	assert.Equal(t, "joint(32)", JointID(32).String())
	assert.Equal(t, "joint(-1)", JointID(-1).String())
}

func TestBonesCoverEveryJoint(t *testing.T) {
	// Every joint except the root is the child of exactly one bone.
	children := make(map[JointID]int)
	for _, b := range Bones {
		children[b.Child]++
	}
	assert.Len(t, Bones, JointCount-1)
	for i := 0; i < JointCount; i++ {
		j := JointID(i)
		if j == Pelvis {
			assert.Zero(t, children[j])
			continue
		}
		assert.Equal(t, 1, children[j], "joint %s", j)
	}
}

func TestConfidenceLevelString(t *testing.T) {
	assert.Equal(t, "none", ConfidenceNone.String())
	assert.Equal(t, "low", ConfidenceLow.String())
	assert.Equal(t, "medium", ConfidenceMedium.String())
	assert.Equal(t, "high", ConfidenceHigh.String())
	assert.Equal(t, "confidence(7)", ConfidenceLevel(7).String())
}

package body

import "fmt"

// JointID indexes a Skeleton using the body tracking SDK's anatomical order.
type JointID int

const (
	Pelvis JointID = iota
	SpineNavel
	SpineChest
	Neck
	ClavicleLeft
	ShoulderLeft
	ElbowLeft
	WristLeft
	HandLeft
	HandTipLeft
	ThumbLeft
	ClavicleRight
	ShoulderRight
	ElbowRight
	WristRight
	HandRight
	HandTipRight
	ThumbRight
	HipLeft
	KneeLeft
	AnkleLeft
	FootLeft
	HipRight
	KneeRight
	AnkleRight
	FootRight
	Head
	Nose
	EyeLeft
	EarLeft
	EyeRight
	EarRight
)

var jointNames = [JointCount]string{
	"pelvis", "spine_navel", "spine_chest", "neck",
	"clavicle_left", "shoulder_left", "elbow_left", "wrist_left", "hand_left", "handtip_left", "thumb_left",
	"clavicle_right", "shoulder_right", "elbow_right", "wrist_right", "hand_right", "handtip_right", "thumb_right",
	"hip_left", "knee_left", "ankle_left", "foot_left",
	"hip_right", "knee_right", "ankle_right", "foot_right",
	"head", "nose", "eye_left", "ear_left", "eye_right", "ear_right",
}

func (j JointID) String() string {
	if j < 0 || int(j) >= JointCount {
		return fmt.Sprintf("joint(%d)", int(j))
	}
	return jointNames[j]
}

// Bone connects two joints of the skeleton hierarchy.
type Bone struct {
	Parent JointID
	Child  JointID
}

// Bones lists the parent/child pairs of the joint hierarchy, rooted at the pelvis.
var Bones = []Bone{
	{Pelvis, SpineNavel}, {SpineNavel, SpineChest}, {SpineChest, Neck}, {Neck, Head},
	{Head, Nose}, {Head, EyeLeft}, {Head, EarLeft}, {Head, EyeRight}, {Head, EarRight},
	{SpineChest, ClavicleLeft}, {ClavicleLeft, ShoulderLeft}, {ShoulderLeft, ElbowLeft},
	{ElbowLeft, WristLeft}, {WristLeft, HandLeft}, {HandLeft, HandTipLeft}, {WristLeft, ThumbLeft},
	{SpineChest, ClavicleRight}, {ClavicleRight, ShoulderRight}, {ShoulderRight, ElbowRight},
	{ElbowRight, WristRight}, {WristRight, HandRight}, {HandRight, HandTipRight}, {WristRight, ThumbRight},
	{Pelvis, HipLeft}, {HipLeft, KneeLeft}, {KneeLeft, AnkleLeft}, {AnkleLeft, FootLeft},
	{Pelvis, HipRight}, {HipRight, KneeRight}, {KneeRight, AnkleRight}, {AnkleRight, FootRight},
}

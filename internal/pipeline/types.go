package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/bryanchriswhite/BodyStreamer/internal/body"
	"github.com/bryanchriswhite/BodyStreamer/internal/device"
	"github.com/bryanchriswhite/BodyStreamer/internal/position"
	"github.com/bryanchriswhite/BodyStreamer/internal/tracking"
	"github.com/bryanchriswhite/BodyStreamer/internal/transmit"
	"github.com/bryanchriswhite/BodyStreamer/internal/wire"
)

// State is the controller lifecycle state.
type State int32

const (
	Idle State = iota
	Running
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// MarshalText lets State appear by name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// FaultPolicy decides what happens to the rest of a body when one joint fails
// to send.
type FaultPolicy string

const (
	// SkipJoint drops the failed joint and sends the next one.
	SkipJoint FaultPolicy = "skip_joint"
	// AbortBody drops the remaining joints of the body.
	AbortBody FaultPolicy = "abort_body"
)

// ParseFaultPolicy parses "skip_joint" or "abort_body".
func ParseFaultPolicy(s string) (FaultPolicy, error) {
	switch p := FaultPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case SkipJoint, AbortBody:
		return p, nil
	}
	return "", fmt.Errorf("unknown fault policy %q (use skip_joint or abort_body)", s)
}

// Config holds the session settings.
type Config struct {
	DeviceIndex int
	Device      device.Config
	Tracker     tracking.Config

	// CaptureWait bounds GetCapture; TrackerWait bounds enqueue and dequeue.
	CaptureWait device.WaitPolicy
	TrackerWait device.WaitPolicy

	Refresh       position.Refresh
	UnknownOffset position.UnknownPolicy
	FaultPolicy   FaultPolicy
}

// DefaultConfig waits infinitely everywhere, reads the offset once per session
// and skips joints that fail to send.
func DefaultConfig() Config {
	return Config{
		Device:        device.DefaultConfig(),
		Tracker:       tracking.DefaultConfig(),
		CaptureWait:   device.WaitInfinite,
		TrackerWait:   device.WaitInfinite,
		Refresh:       position.RefreshSession,
		UnknownOffset: position.UnknownSentinel,
		FaultPolicy:   SkipJoint,
	}
}

// Deps are the collaborators a Controller drives.
type Deps struct {
	Source      device.Source
	Trackers    tracking.Factory
	Position    position.Provider
	Serializer  *wire.Serializer
	Transmitter transmit.Transmitter
}

// Observer receives every world-space frame after it has been transmitted.
// Observe runs on the pipeline goroutine and must not block.
type Observer interface {
	Observe(frame body.Frame)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(frame body.Frame)

func (f ObserverFunc) Observe(frame body.Frame) { f(frame) }

// Stats are cumulative counters for one session.
type Stats struct {
	Frames        uint64 `json:"frames"`
	Bodies        uint64 `json:"bodies"`
	Datagrams     uint64 `json:"datagrams"`
	SendFailed    uint64 `json:"send_failed"`
	Truncated     uint64 `json:"truncated"`
	AbortedBodies uint64 `json:"aborted_bodies"`
}

// Summary describes a finished session.
type Summary struct {
	Session  string
	Stats    Stats
	Duration time.Duration

	// Fault is the capture or tracking fault that ended the session, if any.
	Fault error
}

// StartupError is returned by Run when the session could not start.
type StartupError struct {
	Stage string
	Err   error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("startup failed at %s: %v", e.Stage, e.Err)
}

func (e *StartupError) Unwrap() error {
	return e.Err
}

// Package device defines the contract for depth/color capture devices.
//
// Vendor SDKs are reached only through blocking calls that either succeed, time
// out, or fail. Implementations report a timeout as ErrTimeout and any other
// failure as a wrapped error.
package device

import (
	"errors"
	"math"
	"time"
)

var (
	// ErrTimeout is returned when a bounded wait expires before the call completes.
	ErrTimeout = errors.New("wait timed out")

	// ErrNoDevice is returned when no capture device is attached.
	ErrNoDevice = errors.New("no capture devices attached")

	// ErrUnsupported is returned by adapters compiled without their vendor SDK.
	ErrUnsupported = errors.New("capture backend not compiled in")
)

// WaitPolicy is how long a blocking call may suspend. WaitInfinite blocks until
// the call completes.
type WaitPolicy time.Duration

// WaitInfinite blocks without a deadline.
const WaitInfinite WaitPolicy = -1

// WaitFor returns a bounded policy. Non-positive durations mean WaitInfinite.
func WaitFor(d time.Duration) WaitPolicy {
	if d <= 0 {
		return WaitInfinite
	}
	return WaitPolicy(d)
}

// IsInfinite reports whether the policy has no deadline.
func (w WaitPolicy) IsInfinite() bool {
	return w < 0
}

// Milliseconds returns the timeout in the SDK convention, -1 for infinite.
// Bounded policies are clamped to [1, math.MaxInt32] so they never read as
// non-blocking or infinite.
func (w WaitPolicy) Milliseconds() int32 {
	if w.IsInfinite() {
		return -1
	}
	ms := time.Duration(w) / time.Millisecond
	switch {
	case ms < 1:
		return 1
	case ms > math.MaxInt32:
		return math.MaxInt32
	}
	return int32(ms)
}

func (w WaitPolicy) String() string {
	if w.IsInfinite() {
		return "infinite"
	}
	return time.Duration(w).String()
}

// Capture is an opaque handle to one synchronized acquisition. Release must be
// called exactly once, as soon as the capture has been handed to the tracker.
type Capture interface {
	Release()
}

// Calibration is the sensor calibration for one depth mode. Native carries the
// SDK's own calibration blob for the tracker that consumes it.
type Calibration struct {
	DepthMode       DepthMode
	ColorResolution ColorResolution
	Native          []byte
}

// Device is an opened capture device.
type Device interface {
	// SerialNumber returns the hardware serial number.
	SerialNumber() (string, error)

	// StartCameras begins streaming with the given configuration.
	StartCameras(cfg Config) error

	// Calibration returns the calibration for a depth mode with the color camera off.
	Calibration(mode DepthMode) (Calibration, error)

	// GetCapture blocks for the next capture according to wait.
	// It returns ErrTimeout if a bounded wait expires.
	GetCapture(wait WaitPolicy) (Capture, error)

	// StopCameras stops streaming. Safe to call if cameras never started.
	StopCameras()

	// Close releases the device handle.
	Close()
}

// Source enumerates and opens devices.
type Source interface {
	// Name returns a human-readable name for this backend
	Name() string

	// InstalledCount returns the number of attached devices.
	InstalledCount() int

	// Open opens the device at index.
	Open(index int) (Device, error)
}

// Package tracking wraps a body tracking engine behind a one-slot
// producer/consumer contract.
//
// The engine accepts one capture at a time and asynchronously produces a body
// frame for it. Any worker concurrency inside the engine stays hidden behind
// Enqueue and Dequeue.
package tracking

import (
	"fmt"
	"strings"
	"time"

	"github.com/bryanchriswhite/BodyStreamer/internal/body"
	"github.com/bryanchriswhite/BodyStreamer/internal/device"
)

// Result is the engine's native body frame. Release must be called exactly once.
type Result interface {
	NumBodies() int
	BodyID(index int) uint32
	Skeleton(index int) (body.Skeleton, error)
	Timestamp() time.Duration
	Release()
}

// Engine is the raw tracker as exposed by the vendor SDK. Enqueue and Pop
// return device.ErrTimeout when a bounded wait expires.
type Engine interface {
	Enqueue(capture device.Capture, wait device.WaitPolicy) error
	Pop(wait device.WaitPolicy) (Result, error)
	Shutdown()
	Destroy()
}

// Factory creates trackers from a sensor calibration.
type Factory interface {
	Create(calibration device.Calibration, cfg Config) (Engine, error)
}

// SensorOrientation tells the engine how the sensor is mounted.
type SensorOrientation int

const (
	OrientationDefault SensorOrientation = iota
	OrientationClockwise90
	OrientationCounterClockwise90
	OrientationFlip180
)

// ProcessingMode selects where the skeleton model runs.
type ProcessingMode int

const (
	ProcessingGPU ProcessingMode = iota
	ProcessingCPU
	ProcessingGPUCUDA
	ProcessingGPUTensorRT
	ProcessingGPUDirectML
)

// Config configures tracker creation.
type Config struct {
	SensorOrientation SensorOrientation
	ProcessingMode    ProcessingMode
	GPUDeviceID       int
	ModelPath         string
}

// DefaultConfig mirrors the SDK's default tracker configuration.
func DefaultConfig() Config {
	return Config{
		SensorOrientation: OrientationDefault,
		ProcessingMode:    ProcessingGPU,
	}
}

var orientationNames = map[string]SensorOrientation{
	"default":            OrientationDefault,
	"clockwise90":        OrientationClockwise90,
	"counterclockwise90": OrientationCounterClockwise90,
	"flip180":            OrientationFlip180,
}

var processingModeNames = map[string]ProcessingMode{
	"gpu":      ProcessingGPU,
	"cpu":      ProcessingCPU,
	"cuda":     ProcessingGPUCUDA,
	"tensorrt": ProcessingGPUTensorRT,
	"directml": ProcessingGPUDirectML,
}

// ParseSensorOrientation parses "default", "clockwise90", "counterclockwise90" or "flip180".
func ParseSensorOrientation(s string) (SensorOrientation, error) {
	if o, ok := orientationNames[strings.ToLower(strings.TrimSpace(s))]; ok {
		return o, nil
	}
	return 0, fmt.Errorf("unknown sensor orientation %q", s)
}

// ParseProcessingMode parses "gpu", "cpu", "cuda", "tensorrt" or "directml".
func ParseProcessingMode(s string) (ProcessingMode, error) {
	if m, ok := processingModeNames[strings.ToLower(strings.TrimSpace(s))]; ok {
		return m, nil
	}
	return 0, fmt.Errorf("unknown processing mode %q", s)
}

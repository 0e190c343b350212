package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang/geo/r3"

	"github.com/bryanchriswhite/BodyStreamer/internal/device"
	"github.com/bryanchriswhite/BodyStreamer/internal/pipeline"
	"github.com/bryanchriswhite/BodyStreamer/internal/position"
	"github.com/bryanchriswhite/BodyStreamer/internal/tracking"
	"github.com/bryanchriswhite/BodyStreamer/internal/wire"
)

// PositionSource names a position provider.
type PositionSource string

const (
	PositionNone   PositionSource = "none"
	PositionStatic PositionSource = "static"
	PositionSerial PositionSource = "serial"
)

// Config represents the application configuration
type Config struct {
	LogLevel  string `json:"log_level" yaml:"log_level"`
	LogPretty bool   `json:"log_pretty" yaml:"log_pretty"`

	// Simulate replaces the sensor and tracker with a scripted rig.
	Simulate bool `json:"simulate" yaml:"simulate"`

	Device   DeviceConfig   `json:"device" yaml:"device"`
	Tracker  TrackerConfig  `json:"tracker" yaml:"tracker"`
	Position PositionConfig `json:"position" yaml:"position"`
	Transmit TransmitConfig `json:"transmit" yaml:"transmit"`
	Monitor  MonitorConfig  `json:"monitor" yaml:"monitor"`
}

// DeviceConfig selects and configures the capture device.
type DeviceConfig struct {
	Index           int    `json:"index" yaml:"index"`
	DepthMode       string `json:"depth_mode" yaml:"depth_mode"`
	ColorResolution string `json:"color_resolution" yaml:"color_resolution"`
	ColorFormat     string `json:"color_format" yaml:"color_format"`
	FPS             int    `json:"fps" yaml:"fps"`

	// CaptureTimeout of zero waits forever.
	CaptureTimeout time.Duration `json:"capture_timeout" yaml:"capture_timeout"`
}

// TrackerConfig configures the body tracker.
type TrackerConfig struct {
	SensorOrientation string        `json:"sensor_orientation" yaml:"sensor_orientation"`
	ProcessingMode    string        `json:"processing_mode" yaml:"processing_mode"`
	GPUDeviceID       int           `json:"gpu_device_id" yaml:"gpu_device_id"`
	ModelPath         string        `json:"model_path,omitempty" yaml:"model_path,omitempty"`
	WaitTimeout       time.Duration `json:"wait_timeout" yaml:"wait_timeout"`
}

// Vector is a point in millimetres.
type Vector struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// R3 converts v to an r3.Vector.
func (v Vector) R3() r3.Vector {
	return r3.Vector{X: v.X, Y: v.Y, Z: v.Z}
}

// PositionConfig selects where the sensor's global offset comes from.
type PositionConfig struct {
	Source        PositionSource        `json:"source" yaml:"source"`
	Refresh       string                `json:"refresh" yaml:"refresh"`
	UnknownOffset string                `json:"unknown_offset" yaml:"unknown_offset"`
	StaticOffset  Vector                `json:"static_offset" yaml:"static_offset"`
	Serial        position.SerialConfig `json:"serial" yaml:"serial"`
}

// TransmitConfig is the datagram destination and message format.
type TransmitConfig struct {
	Host        string `json:"host" yaml:"host"`
	Port        int    `json:"port" yaml:"port"`
	BufferSize  int    `json:"buffer_size" yaml:"buffer_size"`
	Precision   int    `json:"precision" yaml:"precision"`
	FaultPolicy string `json:"fault_policy" yaml:"fault_policy"`
}

// MonitorConfig configures the optional HTTP status server.
type MonitorConfig struct {
	Enabled    bool `json:"enabled" yaml:"enabled"`
	Port       int  `json:"port" yaml:"port"`
	PreviewFPS int  `json:"preview_fps" yaml:"preview_fps"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		LogLevel: "info",
		Device: DeviceConfig{
			Index:           0,
			DepthMode:       "nfov_unbinned",
			ColorResolution: "3072p",
			ColorFormat:     "bgra32",
			FPS:             30,
		},
		Tracker: TrackerConfig{
			SensorOrientation: "default",
			ProcessingMode:    "gpu",
		},
		Position: PositionConfig{
			Source:        PositionNone,
			Refresh:       string(position.RefreshSession),
			UnknownOffset: string(position.UnknownSentinel),
			Serial: position.SerialConfig{
				BaudRate: 115200,
				Scale:    1,
				MaxAge:   2 * time.Second,
			},
		},
		Transmit: TransmitConfig{
			Host:        "127.0.0.1",
			Port:        9000,
			BufferSize:  wire.DefaultCapacity,
			Precision:   wire.DefaultPrecision,
			FaultPolicy: string(pipeline.SkipJoint),
		},
		Monitor: MonitorConfig{
			Enabled:    false,
			Port:       8080,
			PreviewFPS: 10,
		},
	}
}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error
	check := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if c.Device.Index < 0 {
		check(fmt.Errorf("device.index must not be negative"))
	}
	if c.Device.CaptureTimeout < 0 {
		check(fmt.Errorf("device.capture_timeout must not be negative"))
	}
	if c.Tracker.WaitTimeout < 0 {
		check(fmt.Errorf("tracker.wait_timeout must not be negative"))
	}
	if c.Tracker.GPUDeviceID < 0 {
		check(fmt.Errorf("tracker.gpu_device_id must not be negative"))
	}
	_, err := c.DeviceSettings()
	check(err)
	_, err = c.TrackerSettings()
	check(err)

	switch c.Position.Source {
	case PositionNone, PositionStatic:
	case PositionSerial:
		if c.Position.Serial.Port == "" {
			check(fmt.Errorf("position.serial.port is required for the serial source"))
		}
		if c.Position.Serial.MaxAge < 0 {
			check(fmt.Errorf("position.serial.max_age must not be negative"))
		}
	default:
		check(fmt.Errorf("unknown position.source %q (use none, static or serial)", c.Position.Source))
	}
	_, err = position.ParseRefresh(c.Position.Refresh)
	check(err)
	_, err = position.ParseUnknownPolicy(c.Position.UnknownOffset)
	check(err)

	if strings.TrimSpace(c.Transmit.Host) == "" {
		check(fmt.Errorf("transmit.host is required"))
	}
	if c.Transmit.Port < 1 || c.Transmit.Port > 65535 {
		check(fmt.Errorf("transmit.port %d out of range [1, 65535]", c.Transmit.Port))
	}
	if c.Transmit.BufferSize < wire.MinCapacity || c.Transmit.BufferSize > wire.MaxCapacity {
		check(fmt.Errorf("transmit.buffer_size %d out of range [%d, %d]", c.Transmit.BufferSize, wire.MinCapacity, wire.MaxCapacity))
	}
	if c.Transmit.Precision < 0 || c.Transmit.Precision > 17 {
		check(fmt.Errorf("transmit.precision %d out of range [0, 17]", c.Transmit.Precision))
	}
	_, err = pipeline.ParseFaultPolicy(c.Transmit.FaultPolicy)
	check(err)

	if c.Monitor.Enabled {
		if c.Monitor.Port < 1 || c.Monitor.Port > 65535 {
			check(fmt.Errorf("monitor.port %d out of range [1, 65535]", c.Monitor.Port))
		}
		if c.Monitor.PreviewFPS < 1 {
			check(fmt.Errorf("monitor.preview_fps must be at least 1"))
		}
	}

	return errors.Join(errs...)
}

// DeviceSettings converts the device section into a device.Config.
func (c *Config) DeviceSettings() (device.Config, error) {
	var out device.Config
	var err error
	if out.DepthMode, err = device.ParseDepthMode(c.Device.DepthMode); err != nil {
		return out, fmt.Errorf("device.depth_mode: %w", err)
	}
	if out.ColorResolution, err = device.ParseColorResolution(c.Device.ColorResolution); err != nil {
		return out, fmt.Errorf("device.color_resolution: %w", err)
	}
	if out.ColorFormat, err = device.ParseColorFormat(c.Device.ColorFormat); err != nil {
		return out, fmt.Errorf("device.color_format: %w", err)
	}
	if out.FPS, err = device.ParseFPS(c.Device.FPS); err != nil {
		return out, fmt.Errorf("device.fps: %w", err)
	}
	return out, nil
}

// TrackerSettings converts the tracker section into a tracking.Config.
func (c *Config) TrackerSettings() (tracking.Config, error) {
	out := tracking.Config{
		GPUDeviceID: c.Tracker.GPUDeviceID,
		ModelPath:   c.Tracker.ModelPath,
	}
	var err error
	if out.SensorOrientation, err = tracking.ParseSensorOrientation(c.Tracker.SensorOrientation); err != nil {
		return out, fmt.Errorf("tracker.sensor_orientation: %w", err)
	}
	if out.ProcessingMode, err = tracking.ParseProcessingMode(c.Tracker.ProcessingMode); err != nil {
		return out, fmt.Errorf("tracker.processing_mode: %w", err)
	}
	return out, nil
}

// PipelineSettings builds the controller configuration. The config must be valid.
func (c *Config) PipelineSettings() (pipeline.Config, error) {
	if err := c.Validate(); err != nil {
		return pipeline.Config{}, err
	}
	dev, _ := c.DeviceSettings()
	trk, _ := c.TrackerSettings()
	refresh, _ := position.ParseRefresh(c.Position.Refresh)
	unknown, _ := position.ParseUnknownPolicy(c.Position.UnknownOffset)
	policy, _ := pipeline.ParseFaultPolicy(c.Transmit.FaultPolicy)

	return pipeline.Config{
		DeviceIndex:   c.Device.Index,
		Device:        dev,
		Tracker:       trk,
		CaptureWait:   device.WaitFor(c.Device.CaptureTimeout),
		TrackerWait:   device.WaitFor(c.Tracker.WaitTimeout),
		Refresh:       refresh,
		UnknownOffset: unknown,
		FaultPolicy:   policy,
	}, nil
}

// PositionProvider builds the configured provider.
func (c *Config) PositionProvider() (position.Provider, error) {
	switch c.Position.Source {
	case PositionNone, "":
		return position.None{}, nil
	case PositionStatic:
		return position.Static{Offset: c.Position.StaticOffset.R3()}, nil
	case PositionSerial:
		return position.NewSerial(c.Position.Serial), nil
	default:
		return nil, fmt.Errorf("unknown position.source %q", c.Position.Source)
	}
}

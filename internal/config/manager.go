package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/bryanchriswhite/BodyStreamer/internal/logger"
)

// EnvPrefix prefixes environment overrides, e.g. BODYSTREAM_TRANSMIT_PORT.
const EnvPrefix = "BODYSTREAM"

// Manager handles configuration
type Manager struct {
	configPath string
	config     *Config
	mu         sync.RWMutex
}

// DefaultPath returns $HOME/.config/bodystream/config.yaml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "bodystream", "config.yaml"), nil
}

// NewManager loads configFile, or the default path when configFile is empty.
// A missing default file yields the built-in defaults; a missing explicit
// file is an error.
func NewManager(configFile string) (*Manager, error) {
	path := configFile
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	m := &Manager{configPath: path}
	if err := m.load(); err != nil {
		if !errors.Is(err, os.ErrNotExist) || configFile != "" {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		logger.WithComponent("config").Info().
			Str("path", m.configPath).
			Msg("Config file not found, using defaults")
		m.config = Defaults()
	} else {
		logger.WithComponent("config").Info().
			Str("path", m.configPath).
			Msg("Config loaded")
	}
	return m, nil
}

// load reads the configuration from disk over the defaults
func (m *Manager) load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return err
	}
	cfg, err := Parse(data)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return nil
}

// Parse decodes YAML over the defaults. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Defaults()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Get returns a copy of the current configuration
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.config == nil {
		return Defaults()
	}
	cfg := *m.config
	return &cfg
}

// Update replaces the configuration in memory.
func (m *Manager) Update(cfg *Config) {
	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
}

// Save writes the current configuration to disk
func (m *Manager) Save() error {
	cfg := m.Get()

	configDir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		logger.WithComponent("config").Error().
			Err(err).
			Str("path", m.configPath).
			Msg("Failed to write config")
		return err
	}

	logger.WithComponent("config").Info().
		Str("path", m.configPath).
		Msg("Config saved")
	return nil
}

// GetConfigPath returns the path to the config file
func (m *Manager) GetConfigPath() string {
	return m.configPath
}

// Set applies one key given in string form, as from the command line.
func (m *Manager) Set(key, value string) error {
	if _, ok := overrides[key]; !ok {
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	v := viper.New()
	v.Set(key, value)

	cfg := m.Get()
	overrides[key](cfg, v)
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.Update(cfg)
	return nil
}

// Lookup returns the value at a dotted key as it appears in the YAML file.
func (m *Manager) Lookup(key string) (any, error) {
	data, err := yaml.Marshal(m.Get())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	var node any
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	for _, part := range strings.Split(key, ".") {
		tree, ok := node.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("configuration key not found: %s", key)
		}
		if node, ok = tree[part]; !ok {
			return nil, fmt.Errorf("configuration key not found: %s", key)
		}
	}
	return node, nil
}

// override copies one viper key into the config.
type override func(c *Config, v *viper.Viper)

var overrides = map[string]override{
	"log_level":                  func(c *Config, v *viper.Viper) { c.LogLevel = v.GetString("log_level") },
	"log_pretty":                 func(c *Config, v *viper.Viper) { c.LogPretty = v.GetBool("log_pretty") },
	"simulate":                   func(c *Config, v *viper.Viper) { c.Simulate = v.GetBool("simulate") },
	"device.index":               func(c *Config, v *viper.Viper) { c.Device.Index = v.GetInt("device.index") },
	"device.depth_mode":          func(c *Config, v *viper.Viper) { c.Device.DepthMode = v.GetString("device.depth_mode") },
	"device.color_resolution":    func(c *Config, v *viper.Viper) { c.Device.ColorResolution = v.GetString("device.color_resolution") },
	"device.color_format":        func(c *Config, v *viper.Viper) { c.Device.ColorFormat = v.GetString("device.color_format") },
	"device.fps":                 func(c *Config, v *viper.Viper) { c.Device.FPS = v.GetInt("device.fps") },
	"device.capture_timeout":     func(c *Config, v *viper.Viper) { c.Device.CaptureTimeout = v.GetDuration("device.capture_timeout") },
	"tracker.sensor_orientation": func(c *Config, v *viper.Viper) { c.Tracker.SensorOrientation = v.GetString("tracker.sensor_orientation") },
	"tracker.processing_mode":    func(c *Config, v *viper.Viper) { c.Tracker.ProcessingMode = v.GetString("tracker.processing_mode") },
	"tracker.gpu_device_id":      func(c *Config, v *viper.Viper) { c.Tracker.GPUDeviceID = v.GetInt("tracker.gpu_device_id") },
	"tracker.model_path":         func(c *Config, v *viper.Viper) { c.Tracker.ModelPath = v.GetString("tracker.model_path") },
	"tracker.wait_timeout":       func(c *Config, v *viper.Viper) { c.Tracker.WaitTimeout = v.GetDuration("tracker.wait_timeout") },
	"position.source":            func(c *Config, v *viper.Viper) { c.Position.Source = PositionSource(v.GetString("position.source")) },
	"position.refresh":           func(c *Config, v *viper.Viper) { c.Position.Refresh = v.GetString("position.refresh") },
	"position.unknown_offset":    func(c *Config, v *viper.Viper) { c.Position.UnknownOffset = v.GetString("position.unknown_offset") },
	"position.static_offset.x":   func(c *Config, v *viper.Viper) { c.Position.StaticOffset.X = v.GetFloat64("position.static_offset.x") },
	"position.static_offset.y":   func(c *Config, v *viper.Viper) { c.Position.StaticOffset.Y = v.GetFloat64("position.static_offset.y") },
	"position.static_offset.z":   func(c *Config, v *viper.Viper) { c.Position.StaticOffset.Z = v.GetFloat64("position.static_offset.z") },
	"position.serial.port":       func(c *Config, v *viper.Viper) { c.Position.Serial.Port = v.GetString("position.serial.port") },
	"position.serial.baud_rate":  func(c *Config, v *viper.Viper) { c.Position.Serial.BaudRate = v.GetInt("position.serial.baud_rate") },
	"position.serial.scale":      func(c *Config, v *viper.Viper) { c.Position.Serial.Scale = v.GetFloat64("position.serial.scale") },
	"position.serial.max_age":    func(c *Config, v *viper.Viper) { c.Position.Serial.MaxAge = v.GetDuration("position.serial.max_age") },
	"transmit.host":              func(c *Config, v *viper.Viper) { c.Transmit.Host = v.GetString("transmit.host") },
	"transmit.port":              func(c *Config, v *viper.Viper) { c.Transmit.Port = v.GetInt("transmit.port") },
	"transmit.buffer_size":       func(c *Config, v *viper.Viper) { c.Transmit.BufferSize = v.GetInt("transmit.buffer_size") },
	"transmit.precision":         func(c *Config, v *viper.Viper) { c.Transmit.Precision = v.GetInt("transmit.precision") },
	"transmit.fault_policy":      func(c *Config, v *viper.Viper) { c.Transmit.FaultPolicy = v.GetString("transmit.fault_policy") },
	"monitor.enabled":            func(c *Config, v *viper.Viper) { c.Monitor.Enabled = v.GetBool("monitor.enabled") },
	"monitor.port":               func(c *Config, v *viper.Viper) { c.Monitor.Port = v.GetInt("monitor.port") },
	"monitor.preview_fps":        func(c *Config, v *viper.Viper) { c.Monitor.PreviewFPS = v.GetInt("monitor.preview_fps") },
}

// Keys lists every overridable key in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// BindEnv makes every key overridable from BODYSTREAM_* environment variables.
func BindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range Keys() {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}

// ApplyOverrides copies every key set in v (by flag or environment) over the
// loaded configuration and returns the keys that were applied.
func (m *Manager) ApplyOverrides(v *viper.Viper) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.config == nil {
		m.config = Defaults()
	}
	var applied []string
	for _, key := range Keys() {
		if !v.IsSet(key) {
			continue
		}
		overrides[key](m.config, v)
		applied = append(applied, key)
	}
	if len(applied) > 0 {
		logger.WithComponent("config").Debug().
			Strs("keys", applied).
			Msg("Applied config overrides")
	}
	return applied
}

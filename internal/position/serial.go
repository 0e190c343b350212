package position

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang/geo/r3"
	"go.bug.st/serial"

	"github.com/bryanchriswhite/BodyStreamer/internal/logger"
)

// SerialConfig describes a beacon attached to a serial port. The beacon writes
// one "x,y,z" line per position fix.
type SerialConfig struct {
	Port     string        `yaml:"port" json:"port"`
	BaudRate int           `yaml:"baud_rate" json:"baud_rate"`
	Scale    float64       `yaml:"scale" json:"scale"`
	MaxAge   time.Duration `yaml:"max_age" json:"max_age"`
}

// PortOpener opens a serial port. It is replaced in tests.
type PortOpener func(path string, mode *serial.Mode) (io.ReadCloser, error)

func openSerialPort(path string, mode *serial.Mode) (io.ReadCloser, error) {
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}
	return port, nil
}

// Serial tracks the latest fix reported by a serial beacon.
type Serial struct {
	cfg  SerialConfig
	open PortOpener
	now  func() time.Time

	mu      sync.Mutex
	port    io.ReadCloser
	latest  r3.Vector
	fixedAt time.Time
	have    bool
	bad     int

	done chan struct{}
}

// NewSerial creates a serial beacon provider. Scale converts beacon units to
// millimetres; zero means the beacon already reports millimetres.
func NewSerial(cfg SerialConfig) *Serial {
	return newSerial(cfg, openSerialPort, time.Now)
}

func newSerial(cfg SerialConfig, open PortOpener, now func() time.Time) *Serial {
	if cfg.BaudRate <= 0 {
		cfg.BaudRate = 115200
	}
	if cfg.Scale == 0 {
		cfg.Scale = 1
	}
	return &Serial{cfg: cfg, open: open, now: now}
}

// Name returns the provider name.
func (s *Serial) Name() string {
	return "serial:" + s.cfg.Port
}

// Connect opens the port and starts reading fixes in the background.
func (s *Serial) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port != nil {
		return nil
	}
	if s.cfg.Port == "" {
		return errors.New("serial beacon port not configured")
	}

	mode := &serial.Mode{
		BaudRate: s.cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := s.open(s.cfg.Port, mode)
	if err != nil {
		return fmt.Errorf("failed to open beacon port %s: %w", s.cfg.Port, err)
	}
	s.port = port
	s.done = make(chan struct{})

	go s.readLoop(port, s.done)

	logger.WithComponent("position").Info().
		Str("port", s.cfg.Port).
		Int("baud_rate", s.cfg.BaudRate).
		Msg("Beacon connected")
	return nil
}

func (s *Serial) readLoop(port io.Reader, done chan struct{}) {
	defer close(done)
	log := logger.WithComponent("position")

	scanner := bufio.NewScanner(port)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		pos, err := ParseFix(line)
		if err != nil {
			s.mu.Lock()
			s.bad++
			s.mu.Unlock()
			log.Debug().Err(err).Str("line", line).Msg("Ignoring beacon line")
			continue
		}
		s.mu.Lock()
		s.latest = pos.Mul(s.cfg.Scale)
		s.fixedAt = s.now()
		s.have = true
		s.mu.Unlock()
	}
	if err := scanner.Err(); err != nil {
		log.Warn().Err(err).Msg("Beacon read loop ended")
	}
}

// Position returns the latest fix unless it is older than MaxAge.
func (s *Serial) Position() (r3.Vector, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.have {
		return Unknown, false
	}
	if s.cfg.MaxAge > 0 && s.now().Sub(s.fixedAt) > s.cfg.MaxAge {
		return Unknown, false
	}
	return s.latest, true
}

// Rejected returns the number of unparseable lines seen.
func (s *Serial) Rejected() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bad
}

// Disconnect closes the port and waits for the reader to stop.
func (s *Serial) Disconnect() error {
	s.mu.Lock()
	port, done := s.port, s.done
	s.port = nil
	s.mu.Unlock()

	if port == nil {
		return nil
	}
	err := port.Close()
	<-done
	return err
}

// ParseFix parses "x,y,z". Semicolons or whitespace also separate fields.
func ParseFix(line string) (r3.Vector, error) {
	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t'
	})
	if len(fields) != 3 {
		return r3.Vector{}, fmt.Errorf("expected 3 fields, got %d", len(fields))
	}
	var v [3]float64
	for i, f := range fields {
		x, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return r3.Vector{}, fmt.Errorf("field %d: %w", i, err)
		}
		v[i] = x
	}
	return r3.Vector{X: v[0], Y: v[1], Z: v[2]}, nil
}

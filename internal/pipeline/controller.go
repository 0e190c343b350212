// Package pipeline drives the capture, track, transform and transmit loop.
//
// A Controller runs one session on the calling goroutine. Each iteration takes
// one capture, hands it to the tracker, pops the matching body frame and
// streams every joint of every body. Stop requests are honoured only between
// iterations, so a capture already in flight always completes.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/BodyStreamer/internal/body"
	"github.com/bryanchriswhite/BodyStreamer/internal/device"
	"github.com/bryanchriswhite/BodyStreamer/internal/logger"
	"github.com/bryanchriswhite/BodyStreamer/internal/position"
	"github.com/bryanchriswhite/BodyStreamer/internal/tracking"
	"github.com/bryanchriswhite/BodyStreamer/internal/transform"
	"github.com/bryanchriswhite/BodyStreamer/internal/wire"
)

// ErrAlreadyRun is returned when Run is called a second time.
var ErrAlreadyRun = errors.New("pipeline session already run")

// Controller owns the device and tracker for one session.
type Controller struct {
	cfg  Config
	deps Deps
	id   string
	log  *zerolog.Logger

	state   atomic.Int32
	stopReq atomic.Bool
	started atomic.Bool

	frames        atomic.Uint64
	bodies        atomic.Uint64
	datagrams     atomic.Uint64
	sendFailed    atomic.Uint64
	truncated     atomic.Uint64
	abortedBodies atomic.Uint64

	mu          sync.RWMutex
	offset      r3.Vector
	offsetKnown bool
	observers   []Observer
}

// New validates deps and creates an idle controller.
func New(cfg Config, deps Deps) (*Controller, error) {
	switch {
	case deps.Source == nil:
		return nil, errors.New("pipeline: capture source is required")
	case deps.Trackers == nil:
		return nil, errors.New("pipeline: tracker factory is required")
	case deps.Serializer == nil:
		return nil, errors.New("pipeline: serializer is required")
	case deps.Transmitter == nil:
		return nil, errors.New("pipeline: transmitter is required")
	}
	if deps.Position == nil {
		deps.Position = position.None{}
	}
	if cfg.FaultPolicy == "" {
		cfg.FaultPolicy = SkipJoint
	}
	if cfg.Refresh == "" {
		cfg.Refresh = position.RefreshSession
	}
	if cfg.UnknownOffset == "" {
		cfg.UnknownOffset = position.UnknownSentinel
	}

	id := uuid.New().String()
	c := &Controller{
		cfg:    cfg,
		deps:   deps,
		id:     id,
		log:    logger.WithSession("pipeline", id),
		offset: position.Unknown,
	}
	if cfg.UnknownOffset == position.UnknownIdentity {
		c.offset = r3.Vector{}
	}
	return c, nil
}

// AddObserver registers o for world-space frames. Call before Run.
func (c *Controller) AddObserver(o Observer) {
	c.mu.Lock()
	c.observers = append(c.observers, o)
	c.mu.Unlock()
}

// SessionID returns the session's unique id.
func (c *Controller) SessionID() string {
	return c.id
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Offset returns the offset applied to the next frame and whether it came
// from a known position.
func (c *Controller) Offset() (r3.Vector, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.offset, c.offsetKnown
}

// Stats returns a snapshot of the session counters.
func (c *Controller) Stats() Stats {
	return Stats{
		Frames:        c.frames.Load(),
		Bodies:        c.bodies.Load(),
		Datagrams:     c.datagrams.Load(),
		SendFailed:    c.sendFailed.Load(),
		Truncated:     c.truncated.Load(),
		AbortedBodies: c.abortedBodies.Load(),
	}
}

// Stop requests the loop to end at the next iteration boundary. It is safe to
// call from any goroutine, any number of times.
func (c *Controller) Stop() {
	c.stopReq.Store(true)
	c.state.CompareAndSwap(int32(Running), int32(Stopping))
}

// Run starts the session and loops until ctx is done, Stop is called, or a
// capture or tracking fault occurs. Startup faults are returned as
// *StartupError. A fault that ends a running session is reported in
// Summary.Fault and Run returns a nil error.
func (c *Controller) Run(ctx context.Context) (Summary, error) {
	if !c.started.CompareAndSwap(false, true) {
		return Summary{}, ErrAlreadyRun
	}
	begin := time.Now()

	stopWatch := context.AfterFunc(ctx, c.Stop)
	defer stopWatch()

	s, err := c.startup()
	if err != nil {
		c.state.Store(int32(Stopped))
		c.log.Error().Err(err).Msg("Pipeline failed to start")
		return Summary{Session: c.id, Duration: time.Since(begin)}, err
	}
	defer s.teardown()

	c.state.Store(int32(Running))
	if c.stopReq.Load() {
		c.state.Store(int32(Stopping))
	}
	c.log.Info().
		Str("destination", c.deps.Transmitter.Destination()).
		Str("fault_policy", string(c.cfg.FaultPolicy)).
		Str("capture_wait", c.cfg.CaptureWait.String()).
		Str("tracker_wait", c.cfg.TrackerWait.String()).
		Msg("Pipeline running")

	var fault error
	for !c.stopReq.Load() && ctx.Err() == nil {
		if err := c.iterate(s); err != nil {
			fault = err
			c.log.Error().Err(err).Uint64("frames", c.frames.Load()).Msg("Pipeline stopped by fault")
			break
		}
	}
	if fault == nil {
		c.state.Store(int32(Stopping))
	}

	s.teardown()
	c.state.Store(int32(Stopped))

	summary := Summary{
		Session:  c.id,
		Stats:    c.Stats(),
		Duration: time.Since(begin),
		Fault:    fault,
	}
	c.log.Info().
		Uint64("frames", summary.Stats.Frames).
		Uint64("datagrams", summary.Stats.Datagrams).
		Dur("duration", summary.Duration).
		Msg("Finished body tracking")
	return summary, nil
}

// session holds the resources acquired by startup.
type session struct {
	dev      device.Device
	tracker  *tracking.Adapter
	started  bool
	provider position.Provider
	log      *zerolog.Logger
	once     sync.Once
}

// teardown releases everything in reverse order of acquisition. Only the
// first call has effect.
func (s *session) teardown() {
	s.once.Do(func() {
		if s.tracker != nil {
			s.tracker.Close()
		}
		if s.dev != nil {
			if s.started {
				s.dev.StopCameras()
			}
			s.dev.Close()
		}
		if s.provider != nil {
			if err := s.provider.Disconnect(); err != nil {
				s.log.Warn().Err(err).Msg("Failed to disconnect position provider")
			}
		}
		s.log.Debug().Msg("Session resources released")
	})
}

func (c *Controller) startup() (*session, error) {
	src := c.deps.Source
	s := &session{log: c.log}

	count := src.InstalledCount()
	if count == 0 {
		return nil, &StartupError{Stage: "discover", Err: device.ErrNoDevice}
	}
	c.log.Info().Str("source", src.Name()).Int("devices", count).Msg("Capture devices found")

	dev, err := src.Open(c.cfg.DeviceIndex)
	if err != nil {
		return nil, &StartupError{Stage: "open device", Err: err}
	}
	s.dev = dev

	fail := func(stage string, err error) (*session, error) {
		s.teardown()
		return nil, &StartupError{Stage: stage, Err: err}
	}

	if serial, err := dev.SerialNumber(); err != nil {
		c.log.Warn().Err(err).Msg("Failed to read device serial number")
	} else {
		c.log.Info().Int("index", c.cfg.DeviceIndex).Str("serial", serial).Msg("Device opened")
	}

	if err := dev.StartCameras(c.cfg.Device); err != nil {
		return fail("start cameras", err)
	}
	s.started = true
	c.log.Debug().
		Stringer("depth_mode", c.cfg.Device.DepthMode).
		Stringer("color_resolution", c.cfg.Device.ColorResolution).
		Stringer("color_format", c.cfg.Device.ColorFormat).
		Stringer("fps", c.cfg.Device.FPS).
		Msg("Cameras started")

	cal, err := dev.Calibration(c.cfg.Device.DepthMode)
	if err != nil {
		return fail("calibration", err)
	}

	engine, err := c.deps.Trackers.Create(cal, c.cfg.Tracker)
	if err != nil {
		return fail("create tracker", err)
	}
	s.tracker = tracking.NewAdapter(engine)

	if err := c.deps.Position.Connect(); err != nil {
		return fail("connect position", err)
	}
	s.provider = c.deps.Position
	c.refreshOffset()

	return s, nil
}

func (c *Controller) refreshOffset() {
	offset, known := position.Offset(c.deps.Position, c.cfg.UnknownOffset)

	c.mu.Lock()
	changed := offset != c.offset || known != c.offsetKnown
	c.offset, c.offsetKnown = offset, known
	c.mu.Unlock()

	if changed {
		c.log.Info().
			Str("provider", c.deps.Position.Name()).
			Bool("known", known).
			Float64("x", offset.X).
			Float64("y", offset.Y).
			Float64("z", offset.Z).
			Msg("Global offset updated")
	}
}

// iterate runs one capture through the pipeline. Any returned error is fatal.
func (c *Controller) iterate(s *session) error {
	capture, err := s.dev.GetCapture(c.cfg.CaptureWait)
	if err != nil {
		if errors.Is(err, device.ErrTimeout) {
			return fmt.Errorf("get capture (wait %s): %w", c.cfg.CaptureWait, err)
		}
		return fmt.Errorf("get capture: %w", err)
	}
	seq := c.frames.Load() + 1
	c.log.Debug().Uint64("frame", seq).Msg("Start processing frame")

	res, err := s.tracker.Enqueue(capture, c.cfg.TrackerWait)
	capture.Release()
	if res != tracking.Accepted {
		return fmt.Errorf("enqueue capture %s: %w", res, err)
	}

	frame, dres, err := s.tracker.Dequeue(c.cfg.TrackerWait)
	if dres != tracking.Ready {
		return fmt.Errorf("pop body frame %s: %w", dres, err)
	}
	frame.Sequence = seq

	if c.cfg.Refresh == position.RefreshIteration {
		c.refreshOffset()
	}
	offset, _ := c.Offset()

	c.log.Debug().Uint64("frame", seq).Int("bodies", len(frame.Bodies)).Msg("Bodies detected")

	world := body.Frame{
		Sequence:  seq,
		Timestamp: frame.Timestamp,
		Bodies:    make([]body.Body, 0, len(frame.Bodies)),
	}
	for _, b := range frame.Bodies {
		world.Bodies = append(world.Bodies, c.streamBody(seq, b, offset))
	}
	frame.Release()

	c.frames.Store(seq)
	c.bodies.Add(uint64(len(world.Bodies)))

	c.mu.RLock()
	observers := c.observers
	c.mu.RUnlock()
	for _, o := range observers {
		o.Observe(world)
	}
	return nil
}

// streamBody transforms b into world space and sends one datagram per joint.
// Send failures are handled by the fault policy and never retried.
func (c *Controller) streamBody(seq uint64, b body.Body, offset r3.Vector) body.Body {
	world := body.Body{ID: b.ID, Skeleton: transform.Skeleton(b.Skeleton, offset)}
	c.log.Debug().Uint32("body_id", b.ID).Msg("Streaming body")

	for i, joint := range world.Skeleton {
		if e := c.log.Debug(); e.Enabled() {
			e.Uint32("body_id", b.ID).
				Stringer("joint", body.JointID(i)).
				Float64("x", joint.Position.X).
				Float64("y", joint.Position.Y).
				Float64("z", joint.Position.Z).
				Floats64("orientation", []float64{joint.Orientation.Real, joint.Orientation.Imag, joint.Orientation.Jmag, joint.Orientation.Kmag}).
				Stringer("confidence", joint.Confidence).
				Msg("Joint")
		}

		payload, truncated := c.deps.Serializer.Encode(wire.Message{
			Frame:    seq,
			BodyID:   b.ID,
			Joint:    i,
			Position: joint.Position,
		})
		if truncated {
			if c.truncated.Add(1) == 1 {
				c.log.Warn().
					Int("capacity", c.deps.Serializer.Capacity()).
					Msg("Joint message truncated to buffer capacity")
			}
		}

		if err := c.deps.Transmitter.Send(payload); err != nil {
			c.sendFailed.Add(1)
			c.log.Warn().Err(err).Uint64("frame", seq).Uint32("body_id", b.ID).Int("joint", i).Msg("Failed to send joint")
			if c.cfg.FaultPolicy == AbortBody {
				c.abortedBodies.Add(1)
				break
			}
			continue
		}
		c.datagrams.Add(1)
	}
	return world
}

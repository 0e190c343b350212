// Package sim provides a deterministic capture device and tracker.
//
// A Rig plays back a Script: it produces captures on demand, turns each one
// into the scripted bodies, injects faults at chosen captures and counts every
// resource acquisition and release so callers can check lifetimes.
package sim

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bryanchriswhite/BodyStreamer/internal/body"
	"github.com/bryanchriswhite/BodyStreamer/internal/device"
	"github.com/bryanchriswhite/BodyStreamer/internal/tracking"
)

// ErrExhausted is returned by GetCapture once a Script's Frames have all been produced.
var ErrExhausted = errors.New("simulated capture script exhausted")

// Script describes what a Rig produces. Capture numbers are 1-based; a zero
// *At field never fires.
type Script struct {
	// Frames limits the number of captures; 0 means unlimited.
	Frames int

	// Bodies returns the bodies tracked in capture n. Nil means one walking body.
	Bodies func(n int) []body.Body

	// Interval paces GetCapture like a real camera. Zero returns immediately.
	Interval time.Duration

	// OnCapture runs inside GetCapture after capture n is produced.
	OnCapture func(n int)

	NoDevices      bool
	OpenErr        error
	StartErr       error
	CalibrationErr error
	CreateErr      error

	CaptureErrAt     int
	CaptureTimeoutAt int
	EnqueueErrAt     int
	EnqueueTimeoutAt int
	PopErrAt         int
	PopTimeoutAt     int
	SkeletonErrAt    int
}

// Counters records resource lifetimes.
type Counters struct {
	Opened           int
	Closed           int
	CamerasStarted   int
	CamerasStopped   int
	TrackersCreated  int
	TrackerShutdowns int
	TrackerDestroys  int
	Captures         int
	CapturesReleased int
	Enqueued         int
	Popped           int
	ResultsReleased  int
}

// Rig is a simulated device source and tracker factory.
type Rig struct {
	script Script

	mu       sync.Mutex
	counters Counters
	last     time.Time
}

// NewRig creates a rig for script.
func NewRig(script Script) *Rig {
	if script.Bodies == nil {
		script.Bodies = func(n int) []body.Body {
			return []body.Body{WalkingBody(1, n)}
		}
	}
	return &Rig{script: script}
}

// Counters returns a snapshot of the lifetime counters.
func (r *Rig) Counters() Counters {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters
}

func (r *Rig) update(f func(c *Counters)) {
	r.mu.Lock()
	f(&r.counters)
	r.mu.Unlock()
}

// Name implements device.Source.
func (r *Rig) Name() string {
	return "simulated"
}

// InstalledCount implements device.Source.
func (r *Rig) InstalledCount() int {
	if r.script.NoDevices {
		return 0
	}
	return 1
}

// Open implements device.Source.
func (r *Rig) Open(index int) (device.Device, error) {
	if r.script.NoDevices || index != 0 {
		return nil, fmt.Errorf("open device %d: %w", index, device.ErrNoDevice)
	}
	if r.script.OpenErr != nil {
		return nil, r.script.OpenErr
	}
	r.update(func(c *Counters) { c.Opened++ })
	return &simDevice{rig: r}, nil
}

// Create implements tracking.Factory.
func (r *Rig) Create(calibration device.Calibration, cfg tracking.Config) (tracking.Engine, error) {
	if r.script.CreateErr != nil {
		return nil, r.script.CreateErr
	}
	r.update(func(c *Counters) { c.TrackersCreated++ })
	return &simEngine{rig: r}, nil
}

type simDevice struct {
	rig     *Rig
	started bool
	n       int
}

func (d *simDevice) SerialNumber() (string, error) {
	return "SIM000000001", nil
}

func (d *simDevice) StartCameras(cfg device.Config) error {
	if d.rig.script.StartErr != nil {
		return d.rig.script.StartErr
	}
	d.started = true
	d.rig.update(func(c *Counters) { c.CamerasStarted++ })
	return nil
}

func (d *simDevice) Calibration(mode device.DepthMode) (device.Calibration, error) {
	if d.rig.script.CalibrationErr != nil {
		return device.Calibration{}, d.rig.script.CalibrationErr
	}
	return device.Calibration{DepthMode: mode, ColorResolution: device.ColorOff}, nil
}

func (d *simDevice) GetCapture(wait device.WaitPolicy) (device.Capture, error) {
	s := d.rig.script
	if !d.started {
		return nil, errors.New("cameras not started")
	}
	if s.Frames > 0 && d.n >= s.Frames {
		return nil, ErrExhausted
	}
	d.n++
	n := d.n

	switch n {
	case s.CaptureErrAt:
		return nil, fmt.Errorf("simulated capture %d failed", n)
	case s.CaptureTimeoutAt:
		return nil, device.ErrTimeout
	}

	if s.Interval > 0 {
		d.rig.pace(s.Interval)
	}
	d.rig.update(func(c *Counters) { c.Captures++ })
	if s.OnCapture != nil {
		s.OnCapture(n)
	}
	return &simCapture{rig: d.rig, n: n}, nil
}

func (d *simDevice) StopCameras() {
	if !d.started {
		return
	}
	d.started = false
	d.rig.update(func(c *Counters) { c.CamerasStopped++ })
}

func (d *simDevice) Close() {
	d.rig.update(func(c *Counters) { c.Closed++ })
}

func (r *Rig) pace(interval time.Duration) {
	r.mu.Lock()
	next := r.last.Add(interval)
	r.mu.Unlock()
	if wait := time.Until(next); wait > 0 {
		time.Sleep(wait)
	}
	r.mu.Lock()
	r.last = time.Now()
	r.mu.Unlock()
}

type simCapture struct {
	rig  *Rig
	n    int
	once sync.Once
}

func (c *simCapture) Release() {
	c.once.Do(func() {
		c.rig.update(func(c *Counters) { c.CapturesReleased++ })
	})
}

type simEngine struct {
	rig     *Rig
	pending int
}

func (e *simEngine) Enqueue(capture device.Capture, wait device.WaitPolicy) error {
	sc, ok := capture.(*simCapture)
	if !ok {
		return fmt.Errorf("unexpected capture type %T", capture)
	}
	s := e.rig.script
	switch sc.n {
	case s.EnqueueErrAt:
		return fmt.Errorf("simulated enqueue of capture %d failed", sc.n)
	case s.EnqueueTimeoutAt:
		return device.ErrTimeout
	}
	e.pending = sc.n
	e.rig.update(func(c *Counters) { c.Enqueued++ })
	return nil
}

func (e *simEngine) Pop(wait device.WaitPolicy) (tracking.Result, error) {
	s := e.rig.script
	n := e.pending
	if n == 0 {
		return nil, errors.New("nothing enqueued")
	}
	switch n {
	case s.PopErrAt:
		return nil, fmt.Errorf("simulated pop of capture %d failed", n)
	case s.PopTimeoutAt:
		return nil, device.ErrTimeout
	}
	e.pending = 0
	e.rig.update(func(c *Counters) { c.Popped++ })
	return &simResult{
		rig:          e.rig,
		bodies:       s.Bodies(n),
		timestamp:    time.Duration(n) * 33333 * time.Microsecond,
		failSkeleton: n == s.SkeletonErrAt,
	}, nil
}

func (e *simEngine) Shutdown() {
	e.rig.update(func(c *Counters) { c.TrackerShutdowns++ })
}

func (e *simEngine) Destroy() {
	e.rig.update(func(c *Counters) { c.TrackerDestroys++ })
}

type simResult struct {
	rig          *Rig
	bodies       []body.Body
	timestamp    time.Duration
	failSkeleton bool
	once         sync.Once
}

func (r *simResult) NumBodies() int { return len(r.bodies) }

func (r *simResult) BodyID(i int) uint32 { return r.bodies[i].ID }

func (r *simResult) Timestamp() time.Duration { return r.timestamp }

func (r *simResult) Skeleton(i int) (body.Skeleton, error) {
	if r.failSkeleton {
		return body.Skeleton{}, errors.New("simulated skeleton read failure")
	}
	return r.bodies[i].Skeleton, nil
}

func (r *simResult) Release() {
	r.once.Do(func() {
		r.rig.update(func(c *Counters) { c.ResultsReleased++ })
	})
}

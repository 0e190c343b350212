package tracking

import (
	"errors"
	"fmt"
	"sync"

	"github.com/bryanchriswhite/BodyStreamer/internal/body"
	"github.com/bryanchriswhite/BodyStreamer/internal/device"
)

var (
	// ErrSlotOccupied is returned when a capture is enqueued before the previous
	// result was dequeued.
	ErrSlotOccupied = errors.New("tracker already has a capture in flight")

	// ErrNothingInFlight is returned when dequeuing with no capture enqueued.
	ErrNothingInFlight = errors.New("no capture in flight")

	// ErrContractViolation is returned when the engine times out under an
	// infinite wait, which it must never do.
	ErrContractViolation = errors.New("tracker timed out under infinite wait")
)

// EnqueueResult is the outcome of handing a capture to the tracker.
type EnqueueResult int

const (
	Accepted EnqueueResult = iota
	EnqueueTimeout
	Rejected
)

func (r EnqueueResult) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case EnqueueTimeout:
		return "timeout"
	case Rejected:
		return "rejected"
	default:
		return fmt.Sprintf("enqueue_result(%d)", int(r))
	}
}

// DequeueResult is the outcome of waiting for a body frame.
type DequeueResult int

const (
	Ready DequeueResult = iota
	DequeueTimeout
	Failed
)

func (r DequeueResult) String() string {
	switch r {
	case Ready:
		return "ready"
	case DequeueTimeout:
		return "timeout"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("dequeue_result(%d)", int(r))
	}
}

// BodyFrame is a dequeued result with its bodies materialised. It holds the
// engine's native frame until Release.
type BodyFrame struct {
	body.Frame

	native Result
	once   sync.Once
}

// Release returns the native frame to the engine. Extra calls are no-ops.
func (f *BodyFrame) Release() {
	f.once.Do(func() {
		if f.native != nil {
			f.native.Release()
		}
	})
}

// Adapter enforces at most one capture in flight and maps engine errors onto
// tri-state outcomes. It is not safe for concurrent use; the pipeline drives it
// from a single goroutine.
type Adapter struct {
	engine   Engine
	inFlight bool
	released bool
}

// NewAdapter wraps an engine.
func NewAdapter(engine Engine) *Adapter {
	return &Adapter{engine: engine}
}

// Enqueue hands a capture to the tracker. The capture is not released here.
func (a *Adapter) Enqueue(capture device.Capture, wait device.WaitPolicy) (EnqueueResult, error) {
	if a.inFlight {
		return Rejected, ErrSlotOccupied
	}

	err := a.engine.Enqueue(capture, wait)
	switch {
	case err == nil:
		a.inFlight = true
		return Accepted, nil
	case errors.Is(err, device.ErrTimeout):
		if wait.IsInfinite() {
			return Rejected, fmt.Errorf("enqueue capture: %w", ErrContractViolation)
		}
		return EnqueueTimeout, err
	default:
		return Rejected, fmt.Errorf("enqueue capture: %w", err)
	}
}

// Dequeue waits for the body frame of the in-flight capture.
func (a *Adapter) Dequeue(wait device.WaitPolicy) (*BodyFrame, DequeueResult, error) {
	if !a.inFlight {
		return nil, Failed, ErrNothingInFlight
	}

	res, err := a.engine.Pop(wait)
	switch {
	case err == nil:
	case errors.Is(err, device.ErrTimeout):
		if wait.IsInfinite() {
			return nil, Failed, fmt.Errorf("pop body frame: %w", ErrContractViolation)
		}
		return nil, DequeueTimeout, err
	default:
		return nil, Failed, fmt.Errorf("pop body frame: %w", err)
	}
	a.inFlight = false

	frame := &BodyFrame{native: res}
	frame.Timestamp = res.Timestamp()
	n := res.NumBodies()
	frame.Bodies = make([]body.Body, 0, n)
	for i := 0; i < n; i++ {
		skel, err := res.Skeleton(i)
		if err != nil {
			frame.Release()
			return nil, Failed, fmt.Errorf("get skeleton of body %d: %w", i, err)
		}
		frame.Bodies = append(frame.Bodies, body.Body{ID: res.BodyID(i), Skeleton: skel})
	}
	return frame, Ready, nil
}

// Close shuts the engine down and destroys it. Only the first call has effect.
func (a *Adapter) Close() {
	if a.released {
		return
	}
	a.released = true
	a.engine.Shutdown()
	a.engine.Destroy()
}

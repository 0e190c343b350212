// Package position supplies the sensor's global offset: where the sensor sits
// in world coordinates, in millimetres.
package position

import (
	"fmt"
	"strings"

	"github.com/golang/geo/r3"
)

// Unknown is the sentinel offset reported while no position is available.
var Unknown = r3.Vector{X: -1, Y: -1, Z: -1}

// Provider is an external positioning source.
type Provider interface {
	// Name returns a human-readable name for this provider
	Name() string

	// Connect opens the underlying source.
	Connect() error

	// Position returns the latest sensor position, or Unknown and false.
	Position() (r3.Vector, bool)

	// Disconnect releases the source. Safe to call more than once.
	Disconnect() error
}

// UnknownPolicy decides what offset to apply while the position is unknown.
type UnknownPolicy string

const (
	// UnknownSentinel applies the Unknown sentinel as a regular offset.
	UnknownSentinel UnknownPolicy = "sentinel"
	// UnknownIdentity applies a zero offset.
	UnknownIdentity UnknownPolicy = "identity"
)

// Refresh decides how often the offset is read from the provider.
type Refresh string

const (
	RefreshSession   Refresh = "session"
	RefreshIteration Refresh = "iteration"
)

// ParseUnknownPolicy parses "sentinel" or "identity".
func ParseUnknownPolicy(s string) (UnknownPolicy, error) {
	switch p := UnknownPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case UnknownSentinel, UnknownIdentity:
		return p, nil
	}
	return "", fmt.Errorf("unknown offset policy %q (use sentinel or identity)", s)
}

// ParseRefresh parses "session" or "iteration".
func ParseRefresh(s string) (Refresh, error) {
	switch r := Refresh(strings.ToLower(strings.TrimSpace(s))); r {
	case RefreshSession, RefreshIteration:
		return r, nil
	}
	return "", fmt.Errorf("unknown position refresh %q (use session or iteration)", s)
}

// Offset reads p and applies policy when the position is unavailable.
func Offset(p Provider, policy UnknownPolicy) (offset r3.Vector, known bool) {
	if pos, ok := p.Position(); ok {
		return pos, true
	}
	if policy == UnknownIdentity {
		return r3.Vector{}, false
	}
	return Unknown, false
}

// None never knows the position.
type None struct{}

func (None) Name() string { return "none" }
func (None) Connect() error { return nil }
func (None) Position() (r3.Vector, bool) { return Unknown, false }
func (None) Disconnect() error { return nil }

// Static reports a fixed, configured position.
type Static struct {
	Offset r3.Vector
}

func (s Static) Name() string { return "static" }
func (s Static) Connect() error { return nil }
func (s Static) Position() (r3.Vector, bool) { return s.Offset, true }
func (s Static) Disconnect() error { return nil }

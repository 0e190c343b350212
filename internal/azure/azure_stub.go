//go:build !k4a
// +build !k4a

package azure

import (
	"fmt"

	"github.com/bryanchriswhite/BodyStreamer/internal/device"
	"github.com/bryanchriswhite/BodyStreamer/internal/tracking"
)

var errNotBuilt = fmt.Errorf("%w: rebuild with -tags=k4a to use an Azure Kinect", device.ErrUnsupported)

// New is a stub that fails when the SDKs are not compiled in.
func New() (*SDK, error) {
	return nil, errNotBuilt
}

// InstalledCount reports no devices.
func (*SDK) InstalledCount() int {
	return 0
}

// Open always fails.
func (*SDK) Open(index int) (device.Device, error) {
	return nil, errNotBuilt
}

// Create always fails.
func (*SDK) Create(calibration device.Calibration, cfg tracking.Config) (tracking.Engine, error) {
	return nil, errNotBuilt
}

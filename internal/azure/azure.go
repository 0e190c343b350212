// Package azure connects the pipeline to the Azure Kinect Sensor SDK and the
// Azure Kinect Body Tracking SDK.
//
// The SDKs are reached through cgo and are only compiled in with -tags=k4a.
// Without the tag New reports device.ErrUnsupported.
package azure

import (
	"github.com/bryanchriswhite/BodyStreamer/internal/device"
	"github.com/bryanchriswhite/BodyStreamer/internal/tracking"
)

// SDK is the Azure Kinect device source and body tracker factory.
type SDK struct{}

var (
	_ device.Source    = (*SDK)(nil)
	_ tracking.Factory = (*SDK)(nil)
)

// Name implements device.Source.
func (*SDK) Name() string {
	return "azure-kinect"
}

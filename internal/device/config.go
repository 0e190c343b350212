package device

import (
	"fmt"
	"strings"
)

// DepthMode selects the depth camera's field of view and binning.
type DepthMode int

const (
	DepthOff DepthMode = iota
	DepthNFOV2x2Binned
	DepthNFOVUnbinned
	DepthWFOV2x2Binned
	DepthWFOVUnbinned
	DepthPassiveIR
)

var depthModeNames = map[DepthMode]string{
	DepthOff:           "off",
	DepthNFOV2x2Binned: "nfov_2x2binned",
	DepthNFOVUnbinned:  "nfov_unbinned",
	DepthWFOV2x2Binned: "wfov_2x2binned",
	DepthWFOVUnbinned:  "wfov_unbinned",
	DepthPassiveIR:     "passive_ir",
}

// ColorResolution selects the color camera resolution.
type ColorResolution int

const (
	ColorOff ColorResolution = iota
	Color720P
	Color1080P
	Color1440P
	Color1536P
	Color2160P
	Color3072P
)

var colorResolutionNames = map[ColorResolution]string{
	ColorOff:   "off",
	Color720P:  "720p",
	Color1080P: "1080p",
	Color1440P: "1440p",
	Color1536P: "1536p",
	Color2160P: "2160p",
	Color3072P: "3072p",
}

// ColorFormat is the pixel format of color images.
type ColorFormat int

const (
	ColorMJPG ColorFormat = iota
	ColorNV12
	ColorYUY2
	ColorBGRA32
)

var colorFormatNames = map[ColorFormat]string{
	ColorMJPG:   "mjpg",
	ColorNV12:   "nv12",
	ColorYUY2:   "yuy2",
	ColorBGRA32: "bgra32",
}

// FPS is the camera frame rate.
type FPS int

const (
	FPS5 FPS = iota
	FPS15
	FPS30
)

var fpsValues = map[FPS]int{FPS5: 5, FPS15: 15, FPS30: 30}

// Config is the streaming configuration passed to StartCameras.
type Config struct {
	ColorFormat     ColorFormat
	ColorResolution ColorResolution
	DepthMode       DepthMode
	FPS             FPS
}

// DefaultConfig matches the body tracking reference setup: 30 fps, BGRA32 color
// at 3072p and unbinned narrow field-of-view depth.
func DefaultConfig() Config {
	return Config{
		ColorFormat:     ColorBGRA32,
		ColorResolution: Color3072P,
		DepthMode:       DepthNFOVUnbinned,
		FPS:             FPS30,
	}
}

func (d DepthMode) String() string {
	if s, ok := depthModeNames[d]; ok {
		return s
	}
	return fmt.Sprintf("depth_mode(%d)", int(d))
}

func (c ColorResolution) String() string {
	if s, ok := colorResolutionNames[c]; ok {
		return s
	}
	return fmt.Sprintf("color_resolution(%d)", int(c))
}

func (c ColorFormat) String() string {
	if s, ok := colorFormatNames[c]; ok {
		return s
	}
	return fmt.Sprintf("color_format(%d)", int(c))
}

func (f FPS) String() string {
	if v, ok := fpsValues[f]; ok {
		return fmt.Sprintf("%d", v)
	}
	return fmt.Sprintf("fps(%d)", int(f))
}

// ParseDepthMode parses a depth mode name such as "nfov_unbinned".
func ParseDepthMode(s string) (DepthMode, error) {
	return parseName(depthModeNames, s, "depth mode")
}

// ParseColorResolution parses a resolution name such as "1080p".
func ParseColorResolution(s string) (ColorResolution, error) {
	return parseName(colorResolutionNames, s, "color resolution")
}

// ParseColorFormat parses a pixel format name such as "bgra32".
func ParseColorFormat(s string) (ColorFormat, error) {
	return parseName(colorFormatNames, s, "color format")
}

// ParseFPS accepts 5, 15 or 30.
func ParseFPS(n int) (FPS, error) {
	for k, v := range fpsValues {
		if v == n {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unsupported camera fps %d (use 5, 15 or 30)", n)
}

func parseName[K comparable](names map[K]string, s, what string) (K, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for k, name := range names {
		if name == want {
			return k, nil
		}
	}
	var zero K
	return zero, fmt.Errorf("unknown %s %q", what, s)
}

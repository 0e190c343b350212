//go:build k4a
// +build k4a

package azure

/*
#cgo LDFLAGS: -lk4a -lk4abt
#include <stdlib.h>
#include <string.h>
#include <k4a/k4a.h>
#include <k4abt.h>

static k4a_device_configuration_t bs_device_config(k4a_image_format_t format, k4a_color_resolution_t res, k4a_depth_mode_t depth, k4a_fps_t fps) {
	k4a_device_configuration_t c = K4A_DEVICE_CONFIG_INIT_DISABLE_ALL;
	c.color_format = format;
	c.color_resolution = res;
	c.depth_mode = depth;
	c.camera_fps = fps;
	return c;
}

static k4abt_tracker_configuration_t bs_tracker_config(k4abt_sensor_orientation_t orientation, k4abt_tracker_processing_mode_t mode, int32_t gpu, const char *model) {
	k4abt_tracker_configuration_t c = K4ABT_TRACKER_CONFIG_DEFAULT;
	c.sensor_orientation = orientation;
	c.processing_mode = mode;
	c.gpu_device_id = gpu;
	if (model != NULL) {
		c.model_path = model;
	}
	return c;
}

static k4a_result_t bs_skeleton(k4abt_frame_t frame, uint32_t index, float *pos, float *orient, int *conf) {
	k4abt_skeleton_t s;
	k4a_result_t r = k4abt_frame_get_body_skeleton(frame, index, &s);
	if (r != K4A_RESULT_SUCCEEDED) {
		return r;
	}
	for (int j = 0; j < (int)K4ABT_JOINT_COUNT; j++) {
		memcpy(&pos[j * 3], s.joints[j].position.v, 3 * sizeof(float));
		memcpy(&orient[j * 4], s.joints[j].orientation.v, 4 * sizeof(float));
		conf[j] = (int)s.joints[j].confidence_level;
	}
	return r;
}
*/
import "C"

import (
	"errors"
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"github.com/bryanchriswhite/BodyStreamer/internal/body"
	"github.com/bryanchriswhite/BodyStreamer/internal/device"
	"github.com/bryanchriswhite/BodyStreamer/internal/tracking"
)

var depthModes = map[device.DepthMode]C.k4a_depth_mode_t{
	device.DepthOff:           C.K4A_DEPTH_MODE_OFF,
	device.DepthNFOV2x2Binned: C.K4A_DEPTH_MODE_NFOV_2X2BINNED,
	device.DepthNFOVUnbinned:  C.K4A_DEPTH_MODE_NFOV_UNBINNED,
	device.DepthWFOV2x2Binned: C.K4A_DEPTH_MODE_WFOV_2X2BINNED,
	device.DepthWFOVUnbinned:  C.K4A_DEPTH_MODE_WFOV_UNBINNED,
	device.DepthPassiveIR:     C.K4A_DEPTH_MODE_PASSIVE_IR,
}

var colorResolutions = map[device.ColorResolution]C.k4a_color_resolution_t{
	device.ColorOff:   C.K4A_COLOR_RESOLUTION_OFF,
	device.Color720P:  C.K4A_COLOR_RESOLUTION_720P,
	device.Color1080P: C.K4A_COLOR_RESOLUTION_1080P,
	device.Color1440P: C.K4A_COLOR_RESOLUTION_1440P,
	device.Color1536P: C.K4A_COLOR_RESOLUTION_1536P,
	device.Color2160P: C.K4A_COLOR_RESOLUTION_2160P,
	device.Color3072P: C.K4A_COLOR_RESOLUTION_3072P,
}

var colorFormats = map[device.ColorFormat]C.k4a_image_format_t{
	device.ColorMJPG:   C.K4A_IMAGE_FORMAT_COLOR_MJPG,
	device.ColorNV12:   C.K4A_IMAGE_FORMAT_COLOR_NV12,
	device.ColorYUY2:   C.K4A_IMAGE_FORMAT_COLOR_YUY2,
	device.ColorBGRA32: C.K4A_IMAGE_FORMAT_COLOR_BGRA32,
}

var frameRates = map[device.FPS]C.k4a_fps_t{
	device.FPS5:  C.K4A_FRAMES_PER_SECOND_5,
	device.FPS15: C.K4A_FRAMES_PER_SECOND_15,
	device.FPS30: C.K4A_FRAMES_PER_SECOND_30,
}

var orientations = map[tracking.SensorOrientation]C.k4abt_sensor_orientation_t{
	tracking.OrientationDefault:            C.K4ABT_SENSOR_ORIENTATION_DEFAULT,
	tracking.OrientationClockwise90:        C.K4ABT_SENSOR_ORIENTATION_CLOCKWISE90,
	tracking.OrientationCounterClockwise90: C.K4ABT_SENSOR_ORIENTATION_COUNTERCLOCKWISE90,
	tracking.OrientationFlip180:            C.K4ABT_SENSOR_ORIENTATION_FLIP180,
}

var processingModes = map[tracking.ProcessingMode]C.k4abt_tracker_processing_mode_t{
	tracking.ProcessingGPU:         C.K4ABT_TRACKER_PROCESSING_MODE_GPU,
	tracking.ProcessingCPU:         C.K4ABT_TRACKER_PROCESSING_MODE_CPU,
	tracking.ProcessingGPUCUDA:     C.K4ABT_TRACKER_PROCESSING_MODE_GPU_CUDA,
	tracking.ProcessingGPUTensorRT: C.K4ABT_TRACKER_PROCESSING_MODE_GPU_TENSORRT,
	tracking.ProcessingGPUDirectML: C.K4ABT_TRACKER_PROCESSING_MODE_GPU_DIRECTML,
}

// New returns the SDK-backed source and factory.
func New() (*SDK, error) {
	return &SDK{}, nil
}

// InstalledCount implements device.Source.
func (*SDK) InstalledCount() int {
	return int(C.k4a_device_get_installed_count())
}

// Open implements device.Source.
func (*SDK) Open(index int) (device.Device, error) {
	if index < 0 {
		return nil, fmt.Errorf("invalid device index %d", index)
	}
	var h C.k4a_device_t
	if C.k4a_device_open(C.uint32_t(index), &h) != C.K4A_RESULT_SUCCEEDED {
		return nil, fmt.Errorf("open K4A device %d failed", index)
	}
	return &kinect{h: h}, nil
}

// waitError maps an SDK wait result onto the device error convention.
func waitError(r C.k4a_wait_result_t, op string) error {
	switch r {
	case C.K4A_WAIT_RESULT_SUCCEEDED:
		return nil
	case C.K4A_WAIT_RESULT_TIMEOUT:
		return device.ErrTimeout
	default:
		return fmt.Errorf("%s failed", op)
	}
}

type kinect struct {
	h C.k4a_device_t
}

func (k *kinect) SerialNumber() (string, error) {
	var size C.size_t
	if C.k4a_device_get_serialnum(k.h, nil, &size) != C.K4A_BUFFER_RESULT_TOO_SMALL {
		return "", errors.New("query serial number size failed")
	}
	buf := (*C.char)(C.malloc(size))
	defer C.free(unsafe.Pointer(buf))
	if C.k4a_device_get_serialnum(k.h, buf, &size) != C.K4A_BUFFER_RESULT_SUCCEEDED {
		return "", errors.New("read serial number failed")
	}
	return C.GoString(buf), nil
}

func (k *kinect) StartCameras(cfg device.Config) error {
	c := C.bs_device_config(
		colorFormats[cfg.ColorFormat],
		colorResolutions[cfg.ColorResolution],
		depthModes[cfg.DepthMode],
		frameRates[cfg.FPS],
	)
	if C.k4a_device_start_cameras(k.h, &c) != C.K4A_RESULT_SUCCEEDED {
		return errors.New("start K4A cameras failed")
	}
	return nil
}

func (k *kinect) Calibration(mode device.DepthMode) (device.Calibration, error) {
	var cal C.k4a_calibration_t
	if C.k4a_device_get_calibration(k.h, depthModes[mode], C.K4A_COLOR_RESOLUTION_OFF, &cal) != C.K4A_RESULT_SUCCEEDED {
		return device.Calibration{}, errors.New("get depth camera calibration failed")
	}
	return device.Calibration{
		DepthMode:       mode,
		ColorResolution: device.ColorOff,
		Native:          C.GoBytes(unsafe.Pointer(&cal), C.int(C.sizeof_k4a_calibration_t)),
	}, nil
}

func (k *kinect) GetCapture(wait device.WaitPolicy) (device.Capture, error) {
	var h C.k4a_capture_t
	r := C.k4a_device_get_capture(k.h, &h, C.int32_t(wait.Milliseconds()))
	if err := waitError(r, "get depth capture"); err != nil {
		return nil, err
	}
	return &capture{h: h}, nil
}

func (k *kinect) StopCameras() {
	C.k4a_device_stop_cameras(k.h)
}

func (k *kinect) Close() {
	C.k4a_device_close(k.h)
}

type capture struct {
	h    C.k4a_capture_t
	once sync.Once
}

func (c *capture) Release() {
	c.once.Do(func() {
		C.k4a_capture_release(c.h)
	})
}

// Create implements tracking.Factory.
func (*SDK) Create(calibration device.Calibration, cfg tracking.Config) (tracking.Engine, error) {
	if len(calibration.Native) != int(C.sizeof_k4a_calibration_t) {
		return nil, fmt.Errorf("calibration blob is %d bytes, want %d", len(calibration.Native), int(C.sizeof_k4a_calibration_t))
	}
	var cal C.k4a_calibration_t
	C.memcpy(unsafe.Pointer(&cal), unsafe.Pointer(&calibration.Native[0]), C.size_t(len(calibration.Native)))

	var model *C.char
	if cfg.ModelPath != "" {
		model = C.CString(cfg.ModelPath)
		defer C.free(unsafe.Pointer(model))
	}
	tc := C.bs_tracker_config(
		orientations[cfg.SensorOrientation],
		processingModes[cfg.ProcessingMode],
		C.int32_t(cfg.GPUDeviceID),
		model,
	)

	var h C.k4abt_tracker_t
	if C.k4abt_tracker_create(&cal, tc, &h) != C.K4A_RESULT_SUCCEEDED {
		return nil, errors.New("body tracker initialization failed")
	}
	return &tracker{h: h}, nil
}

type tracker struct {
	h C.k4abt_tracker_t
}

func (t *tracker) Enqueue(c device.Capture, wait device.WaitPolicy) error {
	kc, ok := c.(*capture)
	if !ok {
		return fmt.Errorf("unexpected capture type %T", c)
	}
	r := C.k4abt_tracker_enqueue_capture(t.h, kc.h, C.int32_t(wait.Milliseconds()))
	return waitError(r, "add capture to tracker process queue")
}

func (t *tracker) Pop(wait device.WaitPolicy) (tracking.Result, error) {
	var h C.k4abt_frame_t
	r := C.k4abt_tracker_pop_result(t.h, &h, C.int32_t(wait.Milliseconds()))
	if err := waitError(r, "pop body frame result"); err != nil {
		return nil, err
	}
	return &result{h: h}, nil
}

func (t *tracker) Shutdown() {
	C.k4abt_tracker_shutdown(t.h)
}

func (t *tracker) Destroy() {
	C.k4abt_tracker_destroy(t.h)
}

type result struct {
	h    C.k4abt_frame_t
	once sync.Once
}

func (r *result) NumBodies() int {
	return int(C.k4abt_frame_get_num_bodies(r.h))
}

func (r *result) BodyID(i int) uint32 {
	return uint32(C.k4abt_frame_get_body_id(r.h, C.uint32_t(i)))
}

func (r *result) Timestamp() time.Duration {
	return time.Duration(C.k4abt_frame_get_device_timestamp_usec(r.h)) * time.Microsecond
}

func (r *result) Skeleton(i int) (body.Skeleton, error) {
	var (
		pos    [body.JointCount * 3]C.float
		orient [body.JointCount * 4]C.float
		conf   [body.JointCount]C.int
	)
	if C.bs_skeleton(r.h, C.uint32_t(i), &pos[0], &orient[0], &conf[0]) != C.K4A_RESULT_SUCCEEDED {
		return body.Skeleton{}, fmt.Errorf("get skeleton of body %d failed", i)
	}

	var s body.Skeleton
	for j := range s {
		s[j] = body.Joint{
			Position: r3.Vector{
				X: float64(pos[j*3]),
				Y: float64(pos[j*3+1]),
				Z: float64(pos[j*3+2]),
			},
			// The SDK stores w, x, y, z.
			Orientation: quat.Number{
				Real: float64(orient[j*4]),
				Imag: float64(orient[j*4+1]),
				Jmag: float64(orient[j*4+2]),
				Kmag: float64(orient[j*4+3]),
			},
			Confidence: body.ConfidenceLevel(conf[j]),
		}
	}
	return s, nil
}

func (r *result) Release() {
	r.once.Do(func() {
		C.k4abt_frame_release(r.h)
	})
}

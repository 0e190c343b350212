package preview

import (
	"bufio"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanchriswhite/BodyStreamer/internal/body"
	"github.com/bryanchriswhite/BodyStreamer/internal/sim"
)

func TestProject(t *testing.T) {
	r := NewRenderer(640, 480)
	assert.Equal(t, image.Rect(0, 0, 640, 480), r.Bounds())
	assert.Equal(t, image.Pt(320, 240), r.Project(r3.Vector{}, r3.Vector{}))
	assert.Equal(t, image.Pt(340, 220), r.Project(r3.Vector{X: 100, Y: -100}, r3.Vector{}))
	assert.Equal(t, image.Pt(320, 240), r.Project(r3.Vector{X: 500, Y: 500, Z: 9}, r3.Vector{X: 500, Y: 500}))
}

func TestRenderDrawsSkeleton(t *testing.T) {
	r := NewRenderer(640, 480)
	frame := body.Frame{
		Sequence: 7,
		Bodies:   []body.Body{{ID: 1, Skeleton: sim.StandingSkeleton()}},
	}
	img := r.Render(frame)

	center := viewCenter(frame.Bodies)
	pelvis := r.Project(frame.Bodies[0].Skeleton[body.Pelvis].Position, center)
	assert.Equal(t, palette[1], img.RGBAAt(pelvis.X, pelvis.Y))
	assert.Equal(t, background, img.RGBAAt(639, 479))
}

func TestRenderSkipsUntrackedJoints(t *testing.T) {
	r := NewRenderer(640, 480)
	s := sim.StandingSkeleton()
	for i := range s {
		s[i].Confidence = body.ConfidenceNone
	}
	frame := body.Frame{Bodies: []body.Body{{ID: 2, Skeleton: s}}}
	img := r.Render(frame)

	pelvis := r.Project(s[body.Pelvis].Position, viewCenter(frame.Bodies))
	assert.Equal(t, background, img.RGBAAt(pelvis.X, pelvis.Y))
}

func TestRenderEmptyFrame(t *testing.T) {
	img := NewRenderer(0, 0).Render(body.Frame{})
	assert.Equal(t, image.Rect(0, 0, 640, 480), img.Bounds())
	assert.Equal(t, background, img.RGBAAt(320, 240))
}

func TestDrawLineClipsAndReachesEndpoints(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	c := palette[0]

	drawLine(img, image.Pt(1, 1), image.Pt(8, 5), c)
	assert.Equal(t, c, img.RGBAAt(1, 1))
	assert.Equal(t, c, img.RGBAAt(8, 5))

	assert.NotPanics(t, func() {
		drawLine(img, image.Pt(-20, -20), image.Pt(30, 30), c)
	})
	assert.Equal(t, c, img.RGBAAt(5, 5))
}

type fakeOutput struct {
	mu     sync.Mutex
	frames []*image.RGBA
}

func (f *fakeOutput) WriteFrame(frame *image.RGBA) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, frame)
	return nil
}

func (f *fakeOutput) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func TestFlushRendersOnlyNewFrames(t *testing.T) {
	out := &fakeOutput{}
	p := New(NewRenderer(160, 120), out, 10)

	wrote, err := p.Flush()
	require.NoError(t, err)
	assert.False(t, wrote)

	p.Observe(body.Frame{Sequence: 1, Bodies: sim.Crowd(2)(1)})
	p.Observe(body.Frame{Sequence: 2, Bodies: sim.Crowd(2)(2)})
	wrote, err = p.Flush()
	require.NoError(t, err)
	assert.True(t, wrote)

	wrote, err = p.Flush()
	require.NoError(t, err)
	assert.False(t, wrote)
	assert.Equal(t, 1, out.count())
}

func TestRunStopsWithContext(t *testing.T) {
	out := &fakeOutput{}
	p := New(NewRenderer(160, 120), out, 100)
	p.Observe(body.Frame{Sequence: 1})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	assert.Eventually(t, func() bool { return out.count() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func readPart(t *testing.T, r *bufio.Reader) []byte {
	t.Helper()
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "--frame\r\n", line)

	length := -1
	for {
		line, err = r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		if v, ok := strings.CutPrefix(line, "Content-Length: "); ok {
			length, err = strconv.Atoi(v)
			require.NoError(t, err)
		}
	}
	require.Positive(t, length)

	data := make([]byte, length)
	_, err = io.ReadFull(r, data)
	require.NoError(t, err)

	trailer := make([]byte, 2)
	_, err = io.ReadFull(r, trailer)
	require.NoError(t, err)
	require.Equal(t, "\r\n", string(trailer))
	return data
}

func TestMJPEGStream(t *testing.T) {
	m := NewMJPEG(90)
	r := NewRenderer(160, 120)
	require.NoError(t, m.WriteFrame(r.Render(body.Frame{Sequence: 1})))

	srv := httptest.NewServer(m.StreamHandler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "multipart/x-mixed-replace; boundary=frame", resp.Header.Get("Content-Type"))

	br := bufio.NewReader(resp.Body)
	img, err := jpeg.Decode(strings.NewReader(string(readPart(t, br))))
	require.NoError(t, err)
	assert.Equal(t, r.Bounds(), img.Bounds())
	assert.Equal(t, 1, m.Clients())

	require.NoError(t, m.WriteFrame(r.Render(body.Frame{Sequence: 2})))
	img, err = jpeg.Decode(strings.NewReader(string(readPart(t, br))))
	require.NoError(t, err)
	assert.Equal(t, r.Bounds(), img.Bounds())

	frames, last := m.Frames()
	assert.Equal(t, uint64(2), frames)
	assert.False(t, last.IsZero())

	m.Close()
	assert.Eventually(t, func() bool { return m.Clients() == 0 }, time.Second, 5*time.Millisecond)
}

func TestMJPEGClosedRejectsClients(t *testing.T) {
	m := NewMJPEG(0)
	m.Close()
	m.Close()

	rec := httptest.NewRecorder()
	m.StreamHandler()(rec, httptest.NewRequest(http.MethodGet, "/preview/stream", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestViewerHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewMJPEG(80).ViewerHandler("/preview/stream")(rec, httptest.NewRequest(http.MethodGet, "/preview", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `src="/preview/stream"`)
}

func TestShadeBlendsOverBackground(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = 200
	}

	shade(img, image.Rect(0, 0, 2, 10), color.Black, 0.5)
	got := img.RGBAAt(0, 0)
	assert.InDelta(t, 100, int(got.R), 2)
	assert.Equal(t, uint8(200), img.RGBAAt(3, 3).R)

	shade(img, image.Rect(2, 2, 4, 4), color.Black, 0)
	assert.Equal(t, uint8(200), img.RGBAAt(3, 3).R)
}

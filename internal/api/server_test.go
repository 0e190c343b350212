package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanchriswhite/BodyStreamer/internal/body"
	"github.com/bryanchriswhite/BodyStreamer/internal/config"
	"github.com/bryanchriswhite/BodyStreamer/internal/pipeline"
	"github.com/bryanchriswhite/BodyStreamer/internal/preview"
	"github.com/bryanchriswhite/BodyStreamer/internal/sim"
	"github.com/bryanchriswhite/BodyStreamer/internal/transmit"
)

type fakePipeline struct {
	offset r3.Vector
	known  bool
}

func (f *fakePipeline) SessionID() string { return "session-1" }
func (f *fakePipeline) State() pipeline.State { return pipeline.Running }
func (f *fakePipeline) Stats() pipeline.Stats {
	return pipeline.Stats{Frames: 12, Bodies: 24, Datagrams: 768, Truncated: 2}
}
func (f *fakePipeline) Offset() (r3.Vector, bool) { return f.offset, f.known }

type fakeLink struct{}

func (fakeLink) Destination() string { return "127.0.0.1:9000" }
func (fakeLink) Stats() transmit.Stats {
	return transmit.Stats{Sent: 766, Failed: 2, Bytes: 9000}
}

func newTestServer(t *testing.T, p Pipeline, link Link, mjpeg *preview.MJPEG) (*Server, *httptest.Server) {
	t.Helper()
	s := NewServer(p, link, nil, NewHub(), mjpeg)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.hub.Close()
		ts.Close()
	})
	return s, ts
}

func getJSON(t *testing.T, url string) map[string]any {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t, &fakePipeline{}, nil, nil)
	out := getJSON(t, ts.URL+"/api/health")
	assert.Equal(t, "healthy", out["status"])
	assert.Equal(t, Version, out["version"])
}

func TestStatus(t *testing.T) {
	p := &fakePipeline{offset: r3.Vector{X: 10, Y: 20, Z: 30}, known: true}
	_, ts := newTestServer(t, p, fakeLink{}, nil)

	out := getJSON(t, ts.URL+"/api/status")
	assert.Equal(t, "session-1", out["session"])
	assert.Equal(t, "running", out["state"])
	assert.Equal(t, "127.0.0.1:9000", out["destination"])

	stats := out["stats"].(map[string]any)
	assert.EqualValues(t, 12, stats["frames"])
	assert.EqualValues(t, 768, stats["datagrams"])
	assert.EqualValues(t, 2, stats["truncated"])

	tx := out["transmit"].(map[string]any)
	assert.EqualValues(t, 2, tx["failed"])

	assert.Equal(t, map[string]any{"x": 10.0, "y": 20.0, "z": 30.0}, out["offset"])
}

func TestStatusUnknownOffsetWithoutLink(t *testing.T) {
	_, ts := newTestServer(t, &fakePipeline{}, nil, nil)

	out := getJSON(t, ts.URL+"/api/status")
	assert.Nil(t, out["offset"])
	assert.NotContains(t, out, "transmit")
	assert.NotContains(t, out, "destination")
}

func TestConfigEndpoint(t *testing.T) {
	s := NewServer(&fakePipeline{}, nil, nil, nil, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/config", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("transmit:\n  port: 9123\n"), 0o644))
	mgr, err := config.NewManager(path)
	require.NoError(t, err)

	s = NewServer(&fakePipeline{}, nil, mgr, nil, nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/config", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got config.Config
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 9123, got.Transmit.Port)
}

func TestCORSPreflight(t *testing.T) {
	s := NewServer(&fakePipeline{}, nil, nil, nil, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/status", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestPreviewRoutes(t *testing.T) {
	s := NewServer(&fakePipeline{}, nil, nil, nil, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/preview", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	s = NewServer(&fakePipeline{}, nil, nil, nil, preview.NewMJPEG(80))
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/preview", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/preview/stream")

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `href="/preview"`)
}

func TestBodyStream(t *testing.T) {
	s, ts := newTestServer(t, &fakePipeline{}, nil, nil)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/bodies/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return s.hub.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	sent := body.Frame{Sequence: 3, Timestamp: 40 * time.Millisecond, Bodies: sim.Crowd(1)(3)}
	s.hub.Observe(sent)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got body.Frame
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, sent.Sequence, got.Sequence)
	assert.Equal(t, sent.Timestamp, got.Timestamp)
	require.Len(t, got.Bodies, 1)
	assert.Equal(t, sent.Bodies[0].ID, got.Bodies[0].ID)
	assert.InDelta(t, sent.Bodies[0].Skeleton[body.Head].Position.Y, got.Bodies[0].Skeleton[body.Head].Position.Y, 1e-9)

	conn.Close()
	assert.Eventually(t, func() bool { return s.hub.Subscribers() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHubDropsForSlowSubscribers(t *testing.T) {
	h := NewHub()
	ch, ok := h.Subscribe()
	require.True(t, ok)

	for i := 0; i < 10; i++ {
		h.Observe(body.Frame{Sequence: uint64(i + 1)})
	}
	assert.Len(t, ch, cap(ch))
	assert.Equal(t, uint64(1), (<-ch).Sequence)

	h.Unsubscribe(ch)
	h.Unsubscribe(ch)
	assert.Zero(t, h.Subscribers())

	h.Close()
	_, ok = h.Subscribe()
	assert.False(t, ok)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	mjpeg := preview.NewMJPEG(80)
	s := NewServer(&fakePipeline{}, nil, nil, nil, mjpeg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/api/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	_, ok := s.hub.Subscribe()
	assert.False(t, ok)
}

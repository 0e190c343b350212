package preview

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"sync"
	"time"

	"github.com/bryanchriswhite/BodyStreamer/internal/logger"
)

// Output receives rendered preview frames.
type Output interface {
	WriteFrame(frame *image.RGBA) error
}

// MJPEG streams frames as Motion JPEG over HTTP
type MJPEG struct {
	quality int

	mu         sync.RWMutex
	frameCount uint64
	lastUpdate time.Time
	latest     []byte

	clientsMu sync.RWMutex
	clients   map[chan []byte]struct{}
	closed    bool
}

// NewMJPEG creates an MJPEG stream with the given JPEG quality.
func NewMJPEG(quality int) *MJPEG {
	if quality <= 0 || quality > 100 {
		quality = 80
	}
	return &MJPEG{
		quality: quality,
		clients: make(map[chan []byte]struct{}),
	}
}

// WriteFrame encodes frame and sends it to every connected client. Slow
// clients miss frames.
func (m *MJPEG) WriteFrame(frame *image.RGBA) error {
	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, frame, &jpeg.Options{Quality: m.quality}); err != nil {
		return fmt.Errorf("failed to encode JPEG: %w", err)
	}
	jpegData := buf.Bytes()

	m.mu.Lock()
	m.frameCount++
	m.lastUpdate = time.Now()
	m.latest = jpegData
	m.mu.Unlock()

	m.clientsMu.RLock()
	for ch := range m.clients {
		select {
		case ch <- jpegData:
		default:
		}
	}
	m.clientsMu.RUnlock()
	return nil
}

// Close disconnects every client.
func (m *MJPEG) Close() {
	m.clientsMu.Lock()
	defer m.clientsMu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	for ch := range m.clients {
		close(ch)
	}
	m.clients = make(map[chan []byte]struct{})
}

// Clients returns the number of connected stream clients.
func (m *MJPEG) Clients() int {
	m.clientsMu.RLock()
	defer m.clientsMu.RUnlock()
	return len(m.clients)
}

// Frames returns the number of frames written and when the last one arrived.
func (m *MJPEG) Frames() (uint64, time.Time) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.frameCount, m.lastUpdate
}

func (m *MJPEG) subscribe() (chan []byte, bool) {
	frameChan := make(chan []byte, 2)

	m.clientsMu.Lock()
	defer m.clientsMu.Unlock()
	if m.closed {
		return nil, false
	}
	m.clients[frameChan] = struct{}{}

	// Start new clients on the latest frame rather than a blank image
	m.mu.RLock()
	if m.latest != nil {
		frameChan <- m.latest
	}
	m.mu.RUnlock()
	return frameChan, true
}

func (m *MJPEG) unsubscribe(ch chan []byte) int {
	m.clientsMu.Lock()
	defer m.clientsMu.Unlock()
	delete(m.clients, ch)
	return len(m.clients)
}

// StreamHandler serves the multipart JPEG stream.
func (m *MJPEG) StreamHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.WithComponent("preview")

		frameChan, ok := m.subscribe()
		if !ok {
			http.Error(w, "preview stream closed", http.StatusServiceUnavailable)
			return
		}
		log.Info().Int("clients", m.Clients()).Msg("Preview client connected")
		defer func() {
			remaining := m.unsubscribe(frameChan)
			log.Info().Int("clients", remaining).Msg("Preview client disconnected")
		}()

		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")
		w.Header().Set("Connection", "close")
		w.WriteHeader(http.StatusOK)

		ctx := r.Context()
		for {
			var jpegData []byte
			select {
			case <-ctx.Done():
				return
			case data, ok := <-frameChan:
				if !ok {
					return
				}
				jpegData = data
			}

			if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(jpegData)); err != nil {
				return
			}
			if _, err := w.Write(jpegData); err != nil {
				return
			}
			if _, err := fmt.Fprintf(w, "\r\n"); err != nil {
				return
			}
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}
	}
}

// ViewerHandler serves a page that shows the stream full-window.
func (m *MJPEG) ViewerHandler(streamPath string) http.HandlerFunc {
	page := fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>BodyStreamer preview</title>
    <style>
        body { margin: 0; background: #000; display: flex; justify-content: center; align-items: center; min-height: 100vh; }
        img { width: 100vw; height: 100vh; object-fit: contain; }
    </style>
</head>
<body>
    <img src="%s" alt="Skeleton preview">
</body>
</html>`, streamPath)

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(page))
	}
}

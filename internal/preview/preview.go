// Package preview renders the streamed skeletons for a browser monitor.
//
// Preview observes world-space frames from the pipeline and, on its own
// schedule, renders the most recent one to an Output. Observing never blocks
// the pipeline and frames arriving faster than the preview rate are dropped.
package preview

import (
	"context"
	"sync"
	"time"

	"github.com/bryanchriswhite/BodyStreamer/internal/body"
	"github.com/bryanchriswhite/BodyStreamer/internal/logger"
)

// Preview keeps the latest observed frame and renders it periodically.
type Preview struct {
	renderer *Renderer
	out      Output
	interval time.Duration

	mu     sync.Mutex
	latest body.Frame
	dirty  bool
}

// New creates a preview rendering at most fps frames per second.
func New(renderer *Renderer, out Output, fps int) *Preview {
	if fps <= 0 {
		fps = 10
	}
	return &Preview{
		renderer: renderer,
		out:      out,
		interval: time.Second / time.Duration(fps),
	}
}

// Observe records frame for the next render.
func (p *Preview) Observe(frame body.Frame) {
	p.mu.Lock()
	p.latest = frame
	p.dirty = true
	p.mu.Unlock()
}

// Flush renders the pending frame, if any. It reports whether a frame was written.
func (p *Preview) Flush() (bool, error) {
	p.mu.Lock()
	if !p.dirty {
		p.mu.Unlock()
		return false, nil
	}
	frame := p.latest
	p.dirty = false
	p.mu.Unlock()

	if err := p.out.WriteFrame(p.renderer.Render(frame)); err != nil {
		return false, err
	}
	return true, nil
}

// Run renders until ctx is done.
func (p *Preview) Run(ctx context.Context) error {
	log := logger.WithComponent("preview")
	log.Info().Dur("interval", p.interval).Msg("Preview started")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Preview stopped")
			return nil
		case <-ticker.C:
			if _, err := p.Flush(); err != nil {
				log.Warn().Err(err).Msg("Failed to render preview frame")
			}
		}
	}
}

// Package preview drives the render loop: it composes the current sources,
// replaces the running preview incarnation and feeds diagnostics posted by
// the preview into the host log.
package preview

import (
	"context"
	"time"

	"github.com/ajsharma/neon_playground/internal/compose"
)

const (
	// DefaultRenderDelay is the quiet period after the last edit before an
	// automatic render.
	DefaultRenderDelay = 300 * time.Millisecond

	// DefaultIndicatorFade is how long the live indicator stays lit after a
	// render.
	DefaultIndicatorFade = 600 * time.Millisecond
)

// Surface is an isolated render target. Render loads document into a fresh
// execution context and delivers every message the document posts to its
// parent to post, by value. Render returns once the document has settled or
// ctx is cancelled; cancelling ctx discards the incarnation.
type Surface interface {
	Render(ctx context.Context, document string, post func([]byte)) error
}

// SurfaceFunc adapts a function to Surface.
type SurfaceFunc func(ctx context.Context, document string, post func([]byte)) error

// Render calls f.
func (f SurfaceFunc) Render(ctx context.Context, document string, post func([]byte)) error {
	return f(ctx, document, post)
}

// State is the editor state the host carries between renders.
type State struct {
	Sources    compose.SourceSet
	AutoRun    bool
	Renders    int
	LastRender time.Time
	Pending    bool
}

// Live reports whether the live indicator is lit at now.
func (s State) Live(now time.Time, fade time.Duration) bool {
	if s.LastRender.IsZero() {
		return false
	}
	return now.Sub(s.LastRender) < fade
}

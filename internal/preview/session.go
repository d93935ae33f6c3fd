package preview

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ajsharma/neon_playground/internal/bridge"
	"github.com/ajsharma/neon_playground/internal/compose"
)

// ErrClosed is returned by a session after Close.
var ErrClosed = errors.New("preview session is closed")

// Options configures a Session.
type Options struct {
	AutoRun       bool
	RenderDelay   time.Duration
	IndicatorFade time.Duration
	Logger        *zap.Logger

	// OnRender, if set, is called after every render with its outcome.
	OnRender func(RenderInfo)
}

// RenderInfo describes one finished render.
type RenderInfo struct {
	Generation uint64
	Document   string
	Duration   time.Duration
	Err        error
}

// Session owns the editor state, the host log and the current preview
// incarnation. Only the newest incarnation may append to the log.
type Session struct {
	surface  Surface
	receiver *bridge.Receiver
	logger   *zap.Logger
	opts     Options
	debounce *Debouncer
	now      func() time.Time

	base       context.Context
	baseCancel context.CancelFunc
	gen        atomic.Uint64

	mu      sync.Mutex
	state   State
	cancel  context.CancelFunc
	closed  bool
	running sync.WaitGroup
}

// NewSession creates a session rendering to surface and appending
// diagnostics to receiver. A nil receiver gets a fresh log.
func NewSession(surface Surface, receiver *bridge.Receiver, opts Options) *Session {
	if receiver == nil {
		receiver = bridge.NewReceiver(nil)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.RenderDelay <= 0 {
		opts.RenderDelay = DefaultRenderDelay
	}
	if opts.IndicatorFade <= 0 {
		opts.IndicatorFade = DefaultIndicatorFade
	}

	base, cancel := context.WithCancel(context.Background())
	s := &Session{
		surface:    surface,
		receiver:   receiver,
		logger:     opts.Logger,
		opts:       opts,
		now:        time.Now,
		base:       base,
		baseCancel: cancel,
		state:      State{AutoRun: opts.AutoRun},
	}
	s.debounce = NewDebouncer(opts.RenderDelay, s.autoRender)
	return s
}

// Receiver returns the receiver feeding the host log.
func (s *Session) Receiver() *bridge.Receiver {
	return s.receiver
}

// Log returns the host log.
func (s *Session) Log() *bridge.Log {
	return s.receiver.Log()
}

// State returns a copy of the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	st.Pending = s.debounce.Pending()
	return st
}

// Live reports whether the live indicator is currently lit.
func (s *Session) Live() bool {
	return s.State().Live(s.now(), s.opts.IndicatorFade)
}

// SetAutoRun toggles automatic rendering. Turning it off drops a pending
// render.
func (s *Session) SetAutoRun(on bool) {
	s.mu.Lock()
	s.state.AutoRun = on
	s.mu.Unlock()

	if !on {
		s.debounce.Cancel()
	}
}

// Update stores new sources. With auto-run on, a render is scheduled for
// when edits have been quiet for the render delay.
func (s *Session) Update(set compose.SourceSet) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.state.Sources = set
	auto := s.state.AutoRun
	s.mu.Unlock()

	if auto {
		s.debounce.Trigger()
	}
}

// Flush renders now if an automatic render is pending. It reports whether
// one was.
func (s *Session) Flush(ctx context.Context) (bool, error) {
	if !s.debounce.Cancel() {
		return false, nil
	}
	return true, s.Render(ctx)
}

func (s *Session) autoRender() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.running.Add(1)
	s.mu.Unlock()
	defer s.running.Done()

	if err := s.Render(s.base); err != nil {
		s.logger.Warn("Automatic render failed", zap.Error(err))
	}
}

// Render composes the current sources and replaces the running preview
// incarnation with a new one. The previous incarnation is cancelled and can
// no longer append to the log. The new incarnation stays alive after Render
// returns until it is replaced or the session is closed.
func (s *Session) Render(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.cancel != nil {
		s.cancel()
	}

	gen := s.gen.Add(1)
	rctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.base, cancel)
	s.cancel = func() {
		stop()
		cancel()
	}

	document := s.state.Sources.Compose()
	s.state.Renders++
	s.state.LastRender = s.now()
	s.mu.Unlock()

	post := func(raw []byte) {
		if s.gen.Load() != gen {
			return
		}
		s.receiver.Receive(raw)
	}

	start := s.now()
	err := s.surface.Render(rctx, document, post)
	superseded := s.gen.Load() != gen

	if err != nil && superseded && rctx.Err() != nil {
		err = nil
	}
	if err != nil {
		err = fmt.Errorf("render %d: %w", gen, err)
	}

	s.logger.Debug("Rendered preview",
		zap.Uint64("generation", gen),
		zap.Int("document_bytes", len(document)),
		zap.Bool("superseded", superseded),
		zap.Error(err))

	if s.opts.OnRender != nil {
		s.opts.OnRender(RenderInfo{
			Generation: gen,
			Document:   document,
			Duration:   s.now().Sub(start),
			Err:        err,
		})
	}
	return err
}

// Close discards the current incarnation and any pending render, then waits
// for automatic renders in flight.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	s.debounce.Cancel()
	s.gen.Add(1)
	s.baseCancel()
	s.running.Wait()
	return nil
}

package cdp

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ajsharma/neon_playground/internal/bridge"
	"github.com/ajsharma/neon_playground/internal/compose"
)

func TestSurfaceRenderBeforeStart(t *testing.T) {
	s := NewSurface(SurfaceOptions{})
	err := s.Render(context.Background(), "<p>x</p>", func([]byte) {})
	if !errors.Is(err, ErrNotStarted) {
		t.Errorf("Render() error = %v, want ErrNotStarted", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestNewSurfaceDefaults(t *testing.T) {
	s := NewSurface(SurfaceOptions{})
	if s.opts.Port != "9222" {
		t.Errorf("Port = %q, want 9222", s.opts.Port)
	}
	if s.opts.LaunchTimeout != 10*time.Second {
		t.Errorf("LaunchTimeout = %v, want 10s", s.opts.LaunchTimeout)
	}
	if s.logger == nil {
		t.Error("logger should default to a no-op logger")
	}
}

// TestSurfaceRenderLive drives a real Chrome. Set NEON_CHROME_TESTS=1 to run.
func TestSurfaceRenderLive(t *testing.T) {
	if os.Getenv("NEON_CHROME_TESTS") == "" {
		t.Skip("set NEON_CHROME_TESTS=1 to run against a real Chrome")
	}
	if findChrome() == "" {
		t.Skip("chrome not found")
	}

	s := NewSurface(SurfaceOptions{Port: "9333", AutoLaunch: true, Headless: true, Settle: 500 * time.Millisecond})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Close()

	var (
		mu    sync.Mutex
		posts []string
	)
	post := func(raw []byte) {
		mu.Lock()
		posts = append(posts, string(raw))
		mu.Unlock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	doc := compose.Compose("<h1>Hi</h1>", "", "console.warn('careful', 2)")
	if err := s.Render(ctx, doc, post); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	for _, p := range posts {
		if msg, ok := bridge.Decode([]byte(p)); ok && msg.Type == bridge.SeverityWarn {
			if strings.Join(msg.Args, " ") != "careful 2" {
				t.Errorf("args = %v, want [careful 2]", msg.Args)
			}
			return
		}
	}
	t.Errorf("no warn message among posts %v", posts)
}

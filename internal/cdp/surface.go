package cdp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/ajsharma/neon_playground/internal/bridge"
)

// ErrNotStarted is returned when rendering before Start.
var ErrNotStarted = errors.New("chrome surface not started")

// NativeSink receives the original console output of a preview, after the
// shim has delegated to it.
type NativeSink func(sev bridge.Severity, parts []string)

// SurfaceOptions configures a Chrome preview surface.
type SurfaceOptions struct {
	Port       string
	AutoLaunch bool
	Headless   bool
	// Settle is how long Render waits after the host page loads.
	Settle        time.Duration
	LaunchTimeout time.Duration
	Logger        *zap.Logger
	Native        NativeSink
}

// Surface renders composed documents in Chrome. Each render gets a fresh
// target; the target lives until the render's context is cancelled.
type Surface struct {
	opts   SurfaceOptions
	logger *zap.Logger

	chrome        *ChromeProcess
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu      sync.Mutex
	current context.Context
}

// NewSurface creates an unstarted surface.
func NewSurface(opts SurfaceOptions) *Surface {
	if opts.Port == "" {
		opts.Port = "9222"
	}
	if opts.LaunchTimeout <= 0 {
		opts.LaunchTimeout = 10 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Surface{opts: opts, logger: logger}
}

// Start connects to Chrome on the configured port, launching it first when
// AutoLaunch is set.
func (s *Surface) Start(ctx context.Context) error {
	if s.opts.AutoLaunch {
		chrome, err := LaunchChrome(s.opts.Port, s.opts.Headless)
		if err != nil {
			return err
		}
		s.chrome = chrome
		s.logger.Info("launched chrome", zap.Int("pid", chrome.PID()), zap.String("port", s.opts.Port))

		if err := WaitForChrome(s.opts.Port, s.opts.LaunchTimeout); err != nil {
			_ = chrome.Stop()
			return err
		}
	}

	info, err := inspectBrowser(s.opts.Port, s.logger)
	if err != nil {
		s.stopChrome()
		return err
	}

	allocCtx, allocCancel := chromedp.NewRemoteAllocator(ctx, info.WebSocketDebuggerURL)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		s.stopChrome()
		return fmt.Errorf("failed to attach to chrome: %w", err)
	}

	s.allocCancel = allocCancel
	s.browserCtx = browserCtx
	s.browserCancel = browserCancel
	return nil
}

// Render opens a new target, installs the bridge binding and loads the host
// frame page holding document. Binding payloads are passed to post verbatim.
func (s *Surface) Render(ctx context.Context, document string, post func([]byte)) error {
	if s.browserCtx == nil {
		return ErrNotStarted
	}

	hostPage, err := HostFramePage(document)
	if err != nil {
		return err
	}

	tabCtx, cancelTab := chromedp.NewContext(s.browserCtx)
	stop := context.AfterFunc(ctx, cancelTab)

	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		switch ev := ev.(type) {
		case *runtime.EventBindingCalled:
			if ev.Name == BindingName {
				post([]byte(ev.Payload))
			}
		case *runtime.EventConsoleAPICalled:
			if s.opts.Native != nil {
				s.opts.Native(severityOf(ev.Type), formatArgs(ev.Args))
			}
		case *runtime.EventExceptionThrown:
			s.logger.Debug("preview exception", zap.String("text", exceptionText(ev.ExceptionDetails)))
		}
	})

	err = chromedp.Run(tabCtx,
		runtime.Enable(),
		runtime.AddBinding(BindingName),
		page.Enable(),
		chromedp.Navigate(DataURL(hostPage)),
	)
	if err == nil && s.opts.Settle > 0 {
		err = chromedp.Run(tabCtx, chromedp.Sleep(s.opts.Settle))
	}
	if err != nil {
		stop()
		cancelTab()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("failed to load preview: %w", err)
	}

	s.mu.Lock()
	s.current = tabCtx
	s.mu.Unlock()
	return nil
}

// Screenshot captures the current preview as PNG.
func (s *Surface) Screenshot(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	tabCtx := s.current
	s.mu.Unlock()

	if tabCtx == nil || tabCtx.Err() != nil {
		return nil, errors.New("no live preview")
	}

	runCtx, cancel := context.WithCancel(tabCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var buf []byte
	if err := chromedp.Run(runCtx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return buf, nil
}

// Close detaches from Chrome and stops it if this surface launched it.
func (s *Surface) Close() error {
	if s.browserCancel != nil {
		s.browserCancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
	return s.stopChrome()
}

func (s *Surface) stopChrome() error {
	if s.chrome == nil {
		return nil
	}
	err := s.chrome.Stop()
	s.chrome = nil
	return err
}

// inspectBrowser reads the browser's version endpoint and logs what it is
// about to attach to. A failed target listing is logged, not returned.
func inspectBrowser(port string, logger *zap.Logger) (*BrowserInfo, error) {
	info, err := DiscoverBrowserInfo(port)
	if err != nil {
		return nil, err
	}

	fields := []zap.Field{
		zap.String("browser", info.Browser),
		zap.String("protocol", info.ProtocolVersion),
	}
	if tabs, err := DiscoverTabs(port); err != nil {
		logger.Debug("could not list page targets", zap.Error(err))
	} else {
		fields = append(fields, zap.Int("pages", len(tabs)))
		for _, tab := range tabs {
			logger.Debug("page target", zap.String("id", tab.TargetID), zap.String("url", tab.URL))
		}
	}
	logger.Info("connected to chrome", fields...)
	return info, nil
}

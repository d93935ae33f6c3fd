package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajsharma/neon_playground/internal/bridge"
	"github.com/ajsharma/neon_playground/internal/cdp"
	"github.com/ajsharma/neon_playground/internal/config"
	"github.com/ajsharma/neon_playground/internal/preview"
	"github.com/ajsharma/neon_playground/internal/sandbox"
)

// chromeSettle is how long a Chrome render waits for the preview's
// synchronous output before returning.
const chromeSettle = 250 * time.Millisecond

// addSurfaceFlags registers the preview surface flags on cmd.
func addSurfaceFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&flagCfg.Surface, "surface", flagCfg.Surface,
		"Preview surface (sandbox or chrome)")
	f.DurationVar(&flagCfg.ScriptTimeout, "timeout", flagCfg.ScriptTimeout,
		"Sandbox wall-clock budget per render")
	f.IntVar(&flagCfg.MaxTimers, "max-timers", flagCfg.MaxTimers,
		"Sandbox timer callbacks fired per render")
	f.IntVar(&flagCfg.PoolSize, "pool-size", flagCfg.PoolSize,
		"Sandbox runtimes kept ready")
	f.StringVarP(&flagCfg.ChromePort, "port", "p", flagCfg.ChromePort,
		"Chrome remote debugging port")
	f.BoolVar(&flagCfg.AutoLaunch, "launch", flagCfg.AutoLaunch,
		"Launch headless Chrome with debugging enabled")
}

// nativeSink logs the preview's own console output at debug level.
func nativeSink(sev bridge.Severity, parts []string) {
	logger.Debug("Native console", zap.String("severity", string(sev)), zap.Strings("parts", parts))
}

// openSurface builds the configured preview surface. The chrome surface is
// returned separately so callers can take screenshots.
func openSurface(ctx context.Context, native cdp.NativeSink) (preview.Surface, *cdp.Surface, func() error, error) {
	switch cfg.Surface {
	case config.SurfaceChrome:
		chrome := cdp.NewSurface(cdp.SurfaceOptions{
			Port:       cfg.ChromePort,
			AutoLaunch: cfg.AutoLaunch,
			Headless:   true,
			Settle:     chromeSettle,
			Logger:     logger.Named("chrome"),
			Native:     native,
		})
		if err := chrome.Start(ctx); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to start chrome surface: %w", err)
		}
		return chrome, chrome, chrome.Close, nil

	default:
		pool, err := newPool()
		if err != nil {
			return nil, nil, nil, err
		}
		return preview.SurfaceFunc(func(ctx context.Context, document string, post func([]byte)) error {
			res, err := pool.Run(ctx, document, post)
			if res != nil && native != nil {
				for _, c := range res.Console {
					native(bridge.Severity(c.Level), []string{c.Message})
				}
			}
			return err
		}), nil, pool.Close, nil
	}
}

func newPool() (*sandbox.Pool, error) {
	sbCfg := sandbox.DefaultConfig()
	sbCfg.Timeout = cfg.ScriptTimeout
	sbCfg.MaxTimers = cfg.MaxTimers

	pool, err := sandbox.NewPool(sbCfg, cfg.PoolSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create sandbox pool: %w", err)
	}
	logger.Debug("Sandbox pool ready", zap.Int("size", cfg.PoolSize), zap.Duration("timeout", cfg.ScriptTimeout))
	return pool, nil
}

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajsharma/neon_playground/internal/bridge"
	"github.com/ajsharma/neon_playground/internal/compose"
	"github.com/ajsharma/neon_playground/internal/config"
	"github.com/ajsharma/neon_playground/internal/preview"
	"github.com/ajsharma/neon_playground/internal/sandbox"
	"github.com/ajsharma/neon_playground/internal/server"
	"github.com/ajsharma/neon_playground/internal/transcript"
)

// Command flag variables.
var (
	useStarter     bool
	plainOutput    bool
	screenshotPath string
	exportOutput   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the browser playground",
	Args:  cobra.NoArgs,
	RunE:  serve,
}

var runCmd = &cobra.Command{
	Use:   "run [dir]",
	Short: "Render a project once and print its log",
	Long: `Render index.html, style.css and script.js from dir (default: the
current directory) once on the preview surface and print every diagnostic
the preview reported.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runOnce,
}

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Re-render a project whenever its files change",
	Args:  cobra.MaximumNArgs(1),
	RunE:  watch,
}

var exportCmd = &cobra.Command{
	Use:   "export [dir]",
	Short: "Write the composed document to " + compose.ExportFileName,
	Args:  cobra.MaximumNArgs(1),
	RunE:  export,
}

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Write the starter project into dir",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := projectDir(args)
		for _, name := range []string{compose.MarkupFile, compose.StylesFile, compose.ScriptFile} {
			if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
				return fmt.Errorf("%s already exists in %s", name, dir)
			}
		}
		if err := compose.WriteSourceSet(dir, compose.Starter); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote starter project to %s\n", dir)
		return nil
	},
}

func init() {
	// Server flags
	serveCmd.Flags().StringVar(&flagCfg.ListenAddr, "listen", flagCfg.ListenAddr,
		"Address to listen on")
	serveCmd.Flags().BoolVar(&flagCfg.RateLimitEnabled, "rate-limit", flagCfg.RateLimitEnabled,
		"Enable per-IP rate limiting")
	serveCmd.Flags().BoolVar(&flagCfg.AutoRun, "auto-run", flagCfg.AutoRun,
		"Start the editor with auto-run on")
	serveCmd.Flags().DurationVar(&flagCfg.RenderDelay, "delay", flagCfg.RenderDelay,
		"Quiet period before an automatic render")
	serveCmd.Flags().DurationVar(&flagCfg.ScriptTimeout, "timeout", flagCfg.ScriptTimeout,
		"Sandbox wall-clock budget per /api/run")
	serveCmd.Flags().IntVar(&flagCfg.PoolSize, "pool-size", flagCfg.PoolSize,
		"Sandbox runtimes kept ready")

	// Render flags
	for _, cmd := range []*cobra.Command{runCmd, watchCmd} {
		addSurfaceFlags(cmd)
		cmd.Flags().BoolVar(&useStarter, "starter", false, "Render the starter project instead of dir")
		cmd.Flags().BoolVar(&plainOutput, "plain", false, "Print log lines without colors")
	}
	runCmd.Flags().StringVar(&screenshotPath, "screenshot", "",
		"Save a PNG of the preview (chrome surface only)")
	watchCmd.Flags().DurationVar(&flagCfg.RenderDelay, "delay", flagCfg.RenderDelay,
		"Quiet period after the last change before re-rendering")

	exportCmd.Flags().BoolVar(&useStarter, "starter", false, "Export the starter project")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "",
		"Output directory, or - for stdout (default: dir)")
}

func projectDir(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}

func loadSources(args []string) (compose.SourceSet, error) {
	if useStarter {
		return compose.Starter, nil
	}
	return compose.LoadSourceSet(projectDir(args))
}

func formatEntry(e bridge.Entry) string {
	if plainOutput {
		return bridge.Plain(e)
	}
	return bridge.RenderANSI(e)
}

func serve(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	pool, err := newPool()
	if err != nil {
		return err
	}
	defer pool.Close()

	fm, err := newFileManager()
	if err != nil {
		return err
	}
	opts := server.Options{
		Config: cfg,
		Logger: logger.Logger,
		Runner: pool,
	}
	if fm != nil {
		defer fm.Close()
		opts.Transcripts = fm
		opts.Redactor = newRedactor()
	}

	srv, err := server.New(opts)
	if err != nil {
		return err
	}

	logger.Info("neon_playground ready",
		zap.String("version", config.Version),
		zap.String("url", "http://"+cfg.ListenAddr+"/"),
	)
	return srv.Run(ctx)
}

// rig is a preview session with its log printer and optional transcript.
type rig struct {
	session  *preview.Session
	fm       *transcript.FileManager
	recorder *transcript.Recorder
	detach   func()
}

func openRig(surface preview.Surface, source string, autoRun bool, out io.Writer) (*rig, error) {
	fm, err := newFileManager()
	if err != nil {
		return nil, err
	}

	id := transcript.NewSessionID()
	log := logger.Session(id)
	receiver := bridge.NewReceiver(nil)
	r := &rig{
		fm: fm,
		detach: receiver.Log().Subscribe(func(e bridge.Entry) {
			fmt.Fprintln(out, formatEntry(e))
		}),
	}

	if fm != nil {
		r.recorder, err = transcript.NewRecorder(fm, id, source, config.Version, receiver.Log(), newRedactor(), log)
		if err != nil {
			r.detach()
			_ = fm.Close()
			return nil, err
		}
	}

	r.session = preview.NewSession(surface, receiver, preview.Options{
		AutoRun:       autoRun,
		RenderDelay:   cfg.RenderDelay,
		IndicatorFade: cfg.IndicatorFade,
		Logger:        log,
		OnRender: func(info preview.RenderInfo) {
			if r.recorder != nil {
				r.recorder.Render(info.Generation, len(info.Document), info.Err)
			}
		},
	})
	return r, nil
}

func (r *rig) Close() error {
	err := r.session.Close()
	r.detach()
	if r.recorder != nil {
		err = errors.Join(err, r.recorder.Close())
	}
	if r.fm != nil {
		err = errors.Join(err, r.fm.Close())
	}
	return err
}

func runOnce(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	set, err := loadSources(args)
	if err != nil {
		return err
	}

	surface, chrome, closeSurface, err := openSurface(ctx, nativeSink)
	if err != nil {
		return err
	}
	defer closeSurface()

	r, err := openRig(surface, "run:"+projectDir(args), false, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer r.Close()

	r.session.Update(set)
	if err := r.session.Render(ctx); err != nil {
		if !errors.Is(err, sandbox.ErrInterrupted) {
			return err
		}
		logger.Warn("Preview did not finish", zap.Error(err))
	}

	if screenshotPath != "" {
		if chrome == nil {
			return fmt.Errorf("--screenshot needs --surface %s", config.SurfaceChrome)
		}
		png, err := chrome.Screenshot(ctx)
		if err != nil {
			return err
		}
		if err := os.WriteFile(screenshotPath, png, 0o644); err != nil {
			return fmt.Errorf("failed to write screenshot: %w", err)
		}
		logger.Info("Saved screenshot", zap.String("path", screenshotPath))
	}

	if n := r.session.Receiver().Dropped(); n > 0 {
		logger.Debug("Ignored foreign messages", zap.Int64("count", n))
	}
	return nil
}

func watch(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	dir := projectDir(args)
	set, err := loadSources(args)
	if err != nil {
		return err
	}

	surface, _, closeSurface, err := openSurface(ctx, nativeSink)
	if err != nil {
		return err
	}
	defer closeSurface()

	r, err := openRig(surface, "watch:"+dir, true, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer r.Close()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	logger.Info("Watching project", zap.String("dir", dir), zap.Duration("delay", cfg.RenderDelay))
	r.session.Update(set)
	if _, err := r.session.Flush(ctx); err != nil {
		logger.Warn("Initial render failed", zap.Error(err))
	}

	watched := map[string]bool{
		compose.MarkupFile: true,
		compose.StylesFile: true,
		compose.ScriptFile: true,
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !watched[filepath.Base(ev.Name)] || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) {
				continue
			}
			next, err := compose.LoadSourceSet(dir)
			if err != nil {
				logger.Warn("Failed to reload sources", zap.Error(err))
				continue
			}
			logger.Debug("Source changed", zap.String("file", ev.Name), zap.String("op", ev.Op.String()))
			r.session.Update(next)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error", zap.Error(err))
		}
	}
}

func export(cmd *cobra.Command, args []string) error {
	set, err := loadSources(args)
	if err != nil {
		return err
	}

	switch exportOutput {
	case "-":
		return compose.Export(cmd.OutOrStdout(), set)
	case "":
		exportOutput = projectDir(args)
	}

	path, err := compose.ExportFile(exportOutput, set)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %s\n", path)
	return nil
}

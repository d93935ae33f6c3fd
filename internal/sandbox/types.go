package sandbox

import (
	"context"
	"errors"
	"time"
)

// SourceURL is the filename reported for preview scripts.
const SourceURL = "about:srcdoc"

var (
	// ErrInterrupted is returned when a run is cut short by its context or
	// timeout.
	ErrInterrupted = errors.New("sandbox execution interrupted")
	ErrPoolClosed  = errors.New("sandbox pool is closed")
	ErrTimeout     = errors.New("sandbox acquisition timeout")
	ErrClosed      = errors.New("sandbox runtime is closed")
)

// PostFunc receives messages posted to the parent context.
type PostFunc func(raw []byte)

// Config defines sandbox limits.
type Config struct {
	Timeout          time.Duration // Wall-clock budget per run
	MaxCallStackSize int           // Maximum JS call depth
	MaxTimers        int           // Timer callbacks fired per run
	EnableDOM        bool          // Expose document
}

// DefaultConfig returns the limits used by the playground.
func DefaultConfig() Config {
	return Config{
		Timeout:          5 * time.Second,
		MaxCallStackSize: 1024,
		MaxTimers:        100,
		EnableDOM:        true,
	}
}

// ConsoleEntry is one call that reached an original console function.
type ConsoleEntry struct {
	Level   string    // log, warn, error, info, debug
	Message string    // Arguments joined by spaces
	Time    time.Time // When the call happened
}

// ScriptError describes an exception that escaped to the window.
type ScriptError struct {
	Message  string
	Filename string
	Line     int
	Column   int
}

// Result holds what a run produced.
type Result struct {
	Title    string         // document.title after scripts ran
	BodyText string         // Visible body text after scripts ran
	BodyHTML string         // Body markup without script elements
	Styles   []string       // Contents of style elements
	Scripts  int            // Script blocks executed
	Timers   int            // Timer callbacks fired
	Console  []ConsoleEntry // Native console output
	Errors   []ScriptError  // Uncaught errors dispatched to window
	Duration time.Duration
}

// Sandbox defines the document execution interface.
type Sandbox interface {
	Run(ctx context.Context, document string, post PostFunc) (*Result, error)
	Reset() error
	Close() error
}

package transcript

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ajsharma/neon_playground/internal/bridge"
)

// Redactor masks sensitive values in an entry before it is written.
type Redactor interface {
	RedactEntry(bridge.Entry) bridge.Entry
}

// Recorder mirrors one session's host log into its transcript.
type Recorder struct {
	fm        *FileManager
	sessionID string
	redactor  Redactor
	logger    *zap.Logger
	started   time.Time

	mu      sync.Mutex
	entries int
	detach  func()
	closed  bool
}

// NewRecorder writes the session start record and subscribes to log. A nil
// redactor writes entries unchanged.
func NewRecorder(fm *FileManager, sessionID, source, version string, log *bridge.Log, redactor Redactor, logger *zap.Logger) (*Recorder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Recorder{
		fm:        fm,
		sessionID: sessionID,
		redactor:  redactor,
		logger:    logger,
		started:   time.Now(),
	}

	if err := fm.WriteRecord(NewSessionStartRecord(sessionID, source, version)); err != nil {
		return nil, err
	}
	r.detach = log.Subscribe(r.write)
	return r, nil
}

// SessionID returns the recorded session's id.
func (r *Recorder) SessionID() string {
	return r.sessionID
}

func (r *Recorder) write(e bridge.Entry) {
	if r.redactor != nil {
		e = r.redactor.RedactEntry(e)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if err := r.fm.WriteRecord(NewEntryRecord(r.sessionID, e)); err != nil {
		r.logger.Warn("Failed to write transcript entry", zap.String("session", r.sessionID), zap.Error(err))
		return
	}
	r.entries++
}

// Render records a finished render.
func (r *Recorder) Render(generation uint64, documentBytes int, renderErr error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if err := r.fm.WriteRecord(NewRenderRecord(r.sessionID, generation, documentBytes, renderErr)); err != nil {
		r.logger.Warn("Failed to write transcript render record", zap.String("session", r.sessionID), zap.Error(err))
	}
}

// Close stops recording, writes the session end record and closes the file.
func (r *Recorder) Close() error {
	r.detach()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	entries := r.entries
	r.mu.Unlock()

	if err := r.fm.WriteRecord(NewSessionEndRecord(r.sessionID, entries, time.Since(r.started))); err != nil {
		return err
	}
	return r.fm.CloseSession(r.sessionID)
}

package transcript

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultBufferSize is the default buffer size for transcript writers (8 KB).
	DefaultBufferSize = 8 * 1024

	// DefaultFlushInterval is the default interval between automatic flushes.
	DefaultFlushInterval = 100 * time.Millisecond
)

// sessionWriter manages the transcript file of one session.
type sessionWriter struct {
	file       *os.File
	writer     *bufio.Writer
	flushTimer *time.Timer
	mu         sync.Mutex
	sessionID  string
}

// FileManager manages transcript files for all sessions.
type FileManager struct {
	baseDir       string
	files         map[string]*sessionWriter // key: session id
	mu            sync.RWMutex
	flushInterval time.Duration
	bufferSize    int
}

// NewFileManager creates a new FileManager with the specified base directory.
func NewFileManager(baseDir string) *FileManager {
	return &FileManager{
		baseDir:       baseDir,
		files:         make(map[string]*sessionWriter),
		flushInterval: DefaultFlushInterval,
		bufferSize:    DefaultBufferSize,
	}
}

// SetFlushInterval sets the flush interval for automatic flushing.
func (fm *FileManager) SetFlushInterval(interval time.Duration) {
	fm.flushInterval = interval
}

// SetBufferSize sets the buffer size for new writers.
func (fm *FileManager) SetBufferSize(size int) {
	fm.bufferSize = size
}

// BaseDir returns the directory transcripts are written under.
func (fm *FileManager) BaseDir() string {
	return fm.baseDir
}

// getWriter returns the writer for the given session, creating it if necessary.
func (fm *FileManager) getWriter(sessionID string) (*sessionWriter, error) {
	fm.mu.RLock()
	if sw, exists := fm.files[sessionID]; exists {
		fm.mu.RUnlock()
		return sw, nil
	}
	fm.mu.RUnlock()

	fm.mu.Lock()
	defer fm.mu.Unlock()

	// Double-check after acquiring write lock
	if sw, exists := fm.files[sessionID]; exists {
		return sw, nil
	}

	path := GetTranscriptPath(fm.baseDir, sessionID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}

	sw := &sessionWriter{
		file:      f,
		writer:    bufio.NewWriterSize(f, fm.bufferSize),
		sessionID: sessionID,
	}

	fm.files[sessionID] = sw
	return sw, nil
}

// WriteRecord appends a record to its session's transcript.
func (fm *FileManager) WriteRecord(rec *Record) error {
	sw, err := fm.getWriter(rec.SessionID)
	if err != nil {
		return err
	}

	sw.mu.Lock()
	defer sw.mu.Unlock()

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	if _, err := sw.writer.Write(append(data, '\n')); err != nil {
		return err
	}

	return fm.handleFlush(sw, rec.EventType)
}

// handleFlush determines and executes the appropriate flush strategy.
func (fm *FileManager) handleFlush(sw *sessionWriter, eventType string) error {
	isMeta := strings.HasPrefix(eventType, "meta.")
	bufferFull := sw.writer.Buffered() > sw.writer.Size()*3/4

	switch {
	case isMeta:
		// Session lifecycle records are synced immediately
		if err := sw.writer.Flush(); err != nil {
			return err
		}
		if err := sw.file.Sync(); err != nil {
			return err
		}
		sw.cancelFlushTimer()
	case bufferFull:
		// Flush to OS without syncing to disk
		if err := sw.writer.Flush(); err != nil {
			return err
		}
		sw.cancelFlushTimer()
	default:
		sw.scheduleFlush(fm.flushInterval)
	}

	return nil
}

// scheduleFlush schedules a flush after the given interval.
func (sw *sessionWriter) scheduleFlush(interval time.Duration) {
	if sw.flushTimer != nil {
		return // Timer already scheduled
	}

	sw.flushTimer = time.AfterFunc(interval, func() {
		sw.mu.Lock()
		defer sw.mu.Unlock()
		_ = sw.writer.Flush()
		sw.flushTimer = nil
	})
}

// cancelFlushTimer cancels any pending flush timer.
func (sw *sessionWriter) cancelFlushTimer() {
	if sw.flushTimer != nil {
		sw.flushTimer.Stop()
		sw.flushTimer = nil
	}
}

// close flushes, syncs and closes the file. Callers hold sw.mu.
func (sw *sessionWriter) close() error {
	sw.cancelFlushTimer()

	var lastErr error
	if err := sw.writer.Flush(); err != nil {
		lastErr = err
	}
	if err := sw.file.Sync(); err != nil {
		lastErr = err
	}
	if err := sw.file.Close(); err != nil {
		lastErr = err
	}
	return lastErr
}

// CloseSession closes the transcript of one session.
func (fm *FileManager) CloseSession(sessionID string) error {
	fm.mu.Lock()
	sw, exists := fm.files[sessionID]
	if !exists {
		fm.mu.Unlock()
		return nil
	}
	delete(fm.files, sessionID)
	fm.mu.Unlock()

	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.close()
}

// Close closes all open transcripts.
func (fm *FileManager) Close() error {
	fm.mu.Lock()
	writers := make([]*sessionWriter, 0, len(fm.files))
	for _, sw := range fm.files {
		writers = append(writers, sw)
	}
	fm.files = make(map[string]*sessionWriter)
	fm.mu.Unlock()

	var lastErr error
	for _, sw := range writers {
		sw.mu.Lock()
		if err := sw.close(); err != nil {
			lastErr = err
		}
		sw.mu.Unlock()
	}

	return lastErr
}

// GetOpenFiles returns the number of currently open transcripts.
func (fm *FileManager) GetOpenFiles() int {
	fm.mu.RLock()
	defer fm.mu.RUnlock()
	return len(fm.files)
}

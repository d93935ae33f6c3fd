package transcript

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// FileName is the transcript file inside a session directory.
const FileName = "transcript.jsonl"

// NewSessionID returns a fresh session id.
func NewSessionID() string {
	return uuid.New().String()
}

// GetTranscriptPath returns the transcript file for a session.
func GetTranscriptPath(baseDir, sessionID string) string {
	return filepath.Join(baseDir, SanitizeName(sessionID), FileName)
}

// SanitizeName converts a session id or label into a safe directory name.
func SanitizeName(name string) string {
	if name == "" {
		return "unknown"
	}

	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
	)
	result := replacer.Replace(name)
	if result == "." || result == ".." {
		result = "_"
	}

	// Truncate to 255 characters (filesystem limit)
	if len(result) > 255 {
		result = result[:255]
	}
	return result
}

// Registry tracks the live sessions of a host process and where each one
// came from (a websocket peer, a watched directory).
type Registry struct {
	sources map[string]string
	mu      sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]string)}
}

// Open registers a new session for source and returns its id.
func (r *Registry) Open(source string) string {
	id := NewSessionID()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[id] = source
	return id
}

// Source returns the source of a session, or empty string if not found.
func (r *Registry) Source(id string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sources[id]
}

// Close removes a session from the registry.
func (r *Registry) Close(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sources, id)
}

// Active returns the number of live sessions.
func (r *Registry) Active() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sources)
}

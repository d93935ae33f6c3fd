// Package transcript mirrors host logs to JSONL files, one file per preview
// session. Transcripts are opt-in; without one the visible log is the only
// record of a session.
package transcript

import (
	"time"

	"github.com/ajsharma/neon_playground/internal/bridge"
)

// Record is a single transcript line.
type Record struct {
	Timestamp string                 `json:"timestamp"`
	SessionID string                 `json:"session_id"`
	EventType string                 `json:"event_type"`
	Seq       int                    `json:"seq,omitempty"`
	Severity  string                 `json:"severity,omitempty"`
	Text      string                 `json:"text,omitempty"`
	Parts     []string               `json:"parts,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Event type constants for meta events.
const (
	EventMetaSessionStart = "meta.session_start"
	EventMetaSessionEnd   = "meta.session_end"
	EventMetaRender       = "meta.render"
)

// EventConsolePrefix prefixes diagnostic records, e.g. "console.warn".
const EventConsolePrefix = "console."

// NewRecord creates a meta record with the current timestamp.
func NewRecord(sessionID, eventType string, data map[string]interface{}) *Record {
	return &Record{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		SessionID: sessionID,
		EventType: eventType,
		Data:      data,
	}
}

// NewSessionStartRecord creates a meta.session_start record.
func NewSessionStartRecord(sessionID, source, version string) *Record {
	return NewRecord(sessionID, EventMetaSessionStart, map[string]interface{}{
		"source":                  source,
		"neon_playground_version": version,
		"start_time":              time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// NewSessionEndRecord creates a meta.session_end record.
func NewSessionEndRecord(sessionID string, entries int, duration time.Duration) *Record {
	return NewRecord(sessionID, EventMetaSessionEnd, map[string]interface{}{
		"entries":          entries,
		"duration_seconds": duration.Seconds(),
	})
}

// NewRenderRecord creates a meta.render record.
func NewRenderRecord(sessionID string, generation uint64, documentBytes int, renderErr error) *Record {
	data := map[string]interface{}{
		"generation":     generation,
		"document_bytes": documentBytes,
	}
	if renderErr != nil {
		data["error"] = renderErr.Error()
	}
	return NewRecord(sessionID, EventMetaRender, data)
}

// NewEntryRecord converts a host log entry. The timestamp is the entry's
// host arrival time.
func NewEntryRecord(sessionID string, e bridge.Entry) *Record {
	return &Record{
		Timestamp: e.Time.UTC().Format(time.RFC3339Nano),
		SessionID: sessionID,
		EventType: EventConsolePrefix + string(e.Severity),
		Seq:       e.Seq,
		Severity:  string(e.Severity),
		Text:      e.Text,
		Parts:     e.Parts,
	}
}

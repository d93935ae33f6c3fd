package transcript

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ajsharma/neon_playground/internal/bridge"
	"github.com/ajsharma/neon_playground/internal/redact"
)

func TestRecorderMirrorsLog(t *testing.T) {
	tmpDir := t.TempDir()
	fm := NewFileManager(tmpDir)
	defer fm.Close()

	log := bridge.NewLog()
	rec, err := NewRecorder(fm, "s-1", "watch ./demo", "dev", log, nil, nil)
	if err != nil {
		t.Fatalf("NewRecorder failed: %v", err)
	}

	receiver := bridge.NewReceiver(log)
	receiver.Receive(bridge.NewMessage(bridge.SeverityLog, "a").Encode())
	rec.Render(1, 420, errors.New("interrupted"))
	receiver.Receive(bridge.NewMessage(bridge.SeverityError, "boom").Encode())

	if err := rec.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Entries appended after Close are not recorded
	receiver.Receive(bridge.NewMessage(bridge.SeverityLog, "late").Encode())

	records := readRecords(t, GetTranscriptPath(tmpDir, "s-1"))
	var types []string
	for _, r := range records {
		types = append(types, r.EventType)
	}
	want := []string{EventMetaSessionStart, "console.log", EventMetaRender, "console.error", EventMetaSessionEnd}
	if strings.Join(types, ",") != strings.Join(want, ",") {
		t.Fatalf("event types = %v, want %v", types, want)
	}

	if records[2].Data["error"] != "interrupted" {
		t.Errorf("render error = %v", records[2].Data["error"])
	}
	if records[4].Data["entries"] != float64(2) {
		t.Errorf("session end entries = %v, want 2", records[4].Data["entries"])
	}
	if rec.SessionID() != "s-1" {
		t.Errorf("SessionID() = %q", rec.SessionID())
	}
}

func TestRecorderRedacts(t *testing.T) {
	tmpDir := t.TempDir()
	fm := NewFileManager(tmpDir)
	defer fm.Close()

	log := bridge.NewLog()
	rec, err := NewRecorder(fm, "s-2", "serve", "dev", log, redact.New(true), nil)
	if err != nil {
		t.Fatalf("NewRecorder failed: %v", err)
	}

	log.Append(bridge.Entry{
		Time:     time.Now(),
		Severity: bridge.SeverityLog,
		Parts:    []string{"login", `{"password":"hunter2"}`},
		Text:     `login {"password":"hunter2"}`,
	})
	if err := rec.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	records := readRecords(t, GetTranscriptPath(tmpDir, "s-2"))
	if strings.Contains(records[1].Text, "hunter2") {
		t.Errorf("transcript leaked secret: %s", records[1].Text)
	}

	// The visible log is never altered
	if entries := log.Entries(); !strings.Contains(entries[0].Text, "hunter2") {
		t.Error("redaction changed the host log")
	}
}

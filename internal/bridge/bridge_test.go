package bridge

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantOK   bool
		wantType Severity
		wantArgs []string
	}{
		{
			name:     "valid message",
			raw:      `{"__neon_console":true,"type":"warn","args":["x","1"]}`,
			wantOK:   true,
			wantType: SeverityWarn,
			wantArgs: []string{"x", "1"},
		},
		{
			name:   "missing marker",
			raw:    `{"type":"log","args":["a"]}`,
			wantOK: false,
		},
		{
			name:   "false marker",
			raw:    `{"__neon_console":false,"type":"log","args":["a"]}`,
			wantOK: false,
		},
		{
			name:   "not json",
			raw:    `hello`,
			wantOK: false,
		},
		{
			name:   "json array",
			raw:    `[1,2,3]`,
			wantOK: false,
		},
		{
			name:   "json null",
			raw:    `null`,
			wantOK: false,
		},
		{
			name:     "non-string args",
			raw:      `{"__neon_console":1,"type":"info","args":[1,null,{"a": 1},true]}`,
			wantOK:   true,
			wantType: SeverityInfo,
			wantArgs: []string{"1", "", `{"a":1}`, "true"},
		},
		{
			name:     "empty args",
			raw:      `{"__neon_console":true,"type":"debug","args":[]}`,
			wantOK:   true,
			wantType: SeverityDebug,
			wantArgs: []string{},
		},
		{
			name:   "missing args",
			raw:    `{"__neon_console":true,"type":"log"}`,
			wantOK: false,
		},
		{
			name:   "string args",
			raw:    `{"__neon_console":true,"type":"log","args":"abc"}`,
			wantOK: false,
		},
		{
			name:   "null args",
			raw:    `{"__neon_console":true,"type":"log","args":null}`,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, ok := Decode([]byte(tt.raw))
			if ok != tt.wantOK {
				t.Fatalf("Decode ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if msg.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", msg.Type, tt.wantType)
			}
			if strings.Join(msg.Args, "|") != strings.Join(tt.wantArgs, "|") || len(msg.Args) != len(tt.wantArgs) {
				t.Errorf("Args = %q, want %q", msg.Args, tt.wantArgs)
			}
		})
	}
}

func TestMessageEncodeWireShape(t *testing.T) {
	got := string(NewMessage(SeverityLog, "a").Encode())
	want := `{"__neon_console":true,"type":"log","args":["a"]}`
	if got != want {
		t.Errorf("Encode = %s, want %s", got, want)
	}
}

func TestReceiverMarkerFiltering(t *testing.T) {
	r := NewReceiver(nil)

	if _, ok := r.Receive([]byte(`{"type":"warn","args":["x","1"]}`)); ok {
		t.Error("message without marker should be dropped")
	}
	if r.Log().Len() != 0 {
		t.Fatalf("expected no entries, got %d", r.Log().Len())
	}
	if r.Dropped() != 1 {
		t.Errorf("Dropped = %d, want 1", r.Dropped())
	}

	entry, ok := r.Receive(NewMessage(SeverityWarn, "x", "1").Encode())
	if !ok {
		t.Fatal("tagged message should be accepted")
	}
	if r.Log().Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", r.Log().Len())
	}
	line := Plain(entry)
	if !strings.Contains(line, "warn") || !strings.Contains(line, "x 1") {
		t.Errorf("rendered line %q should contain warn and x 1", line)
	}
}

func TestReceiverUsesHostClock(t *testing.T) {
	at := time.Date(2026, 1, 2, 13, 14, 15, 0, time.Local)
	r := NewReceiver(nil)
	r.SetClock(fixedClock(at))

	entry, _ := r.Receive(NewMessage(SeverityLog, "a").Encode())
	if !entry.Time.Equal(at) {
		t.Errorf("Time = %v, want %v", entry.Time, at)
	}
	if !strings.HasPrefix(Plain(entry), "[13:14:15]") {
		t.Errorf("unexpected line %q", Plain(entry))
	}
}

func TestLogAppendOnly(t *testing.T) {
	r := NewReceiver(nil)
	const n = 25

	var snapshots [][]Entry
	for i := 0; i < n; i++ {
		r.Receive(NewMessage(SeverityLog, "msg", string(rune('a'+i%26))).Encode())
		snapshots = append(snapshots, r.Log().Entries())
	}

	entries := r.Log().Entries()
	if len(entries) != n {
		t.Fatalf("expected %d entries, got %d", n, len(entries))
	}
	for i, e := range entries {
		if e.Seq != i+1 {
			t.Errorf("entry %d has Seq %d", i, e.Seq)
		}
	}
	// Earlier snapshots are prefixes of the final log.
	for _, snap := range snapshots {
		for i, e := range snap {
			if e.Text != entries[i].Text || e.Seq != entries[i].Seq {
				t.Fatalf("entry %d changed after later arrivals", i)
			}
		}
	}
}

func TestLogEntriesReturnsCopy(t *testing.T) {
	l := NewLog()
	l.Append(Entry{Severity: SeverityLog, Parts: []string{"a"}, Text: "a"})

	got := l.Entries()
	got[0].Text = "mutated"
	got[0].Parts[0] = "mutated"

	if l.Entries()[0].Text != "a" || l.Entries()[0].Parts[0] != "a" {
		t.Error("Entries must not expose internal storage")
	}
}

func TestLogSubscribe(t *testing.T) {
	l := NewLog()
	var mu sync.Mutex
	var seen []int

	cancel := l.Subscribe(func(e Entry) {
		mu.Lock()
		seen = append(seen, e.Seq)
		mu.Unlock()
	})

	l.Append(Entry{Text: "one"})
	l.Append(Entry{Text: "two"})
	cancel()
	l.Append(Entry{Text: "three"})

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Errorf("subscriber saw %v, want [1 2]", seen)
	}
}

func TestColor(t *testing.T) {
	tests := []struct {
		sev  Severity
		want string
	}{
		{SeverityLog, ColorLog},
		{SeverityError, ColorError},
		{SeverityWarn, ColorWarn},
		{SeverityInfo, ColorInfo},
		{SeverityDebug, ColorDebug},
		{Severity("trace"), ColorLog},
		{Severity(""), ColorLog},
	}
	for _, tt := range tests {
		if got := Color(tt.sev); got != tt.want {
			t.Errorf("Color(%q) = %s, want %s", tt.sev, got, tt.want)
		}
	}
}

func TestRenderHTML(t *testing.T) {
	e := Entry{
		Time:     time.Date(2026, 1, 1, 9, 5, 7, 0, time.Local),
		Severity: SeverityError,
		Text:     `<img src=x onerror="alert(1)"> boom`,
	}

	out := RenderHTML(e)
	if !strings.Contains(out, "[09:05:07]") {
		t.Errorf("missing timestamp in %q", out)
	}
	if !strings.Contains(out, ColorError) {
		t.Errorf("missing error color in %q", out)
	}
	if !strings.Contains(out, ">error</span>") {
		t.Errorf("missing severity label in %q", out)
	}
	if strings.Contains(out, "onerror") || strings.Contains(out, "alert") {
		t.Errorf("event handler survived rendering: %q", out)
	}
	if !strings.Contains(out, "boom") {
		t.Errorf("message text missing from %q", out)
	}
}

func TestSanitizeText(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    []string
		notWant []string
	}{
		{
			name: "plain text",
			in:   "hello world",
			want: []string{"hello world"},
		},
		{
			name:    "formatting kept",
			in:      "<b>bold</b> and <em>em</em>",
			want:    []string{"<b>bold</b>", "<em>em</em>"},
			notWant: []string{"&lt;b&gt;"},
		},
		{
			name:    "script removed",
			in:      "<b>hi</b><script>alert(1)</script>",
			want:    []string{"<b>hi</b>"},
			notWant: []string{"script", "alert"},
		},
		{
			name:    "handler removed",
			in:      `<img src=x onerror="alert(1)">`,
			notWant: []string{"onerror", "alert"},
		},
		{
			name:    "javascript url removed",
			in:      `<a href="javascript:alert(1)">x</a>`,
			want:    []string{"x"},
			notWant: []string{"javascript"},
		},
		{
			name: "bare operators escaped",
			in:   "1 < 2 & 3",
			want: []string{"1 &lt; 2 &amp; 3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizeText(tt.in)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("sanitizeText(%q) = %q, missing %q", tt.in, got, w)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(got, w) {
					t.Errorf("sanitizeText(%q) = %q, should not contain %q", tt.in, got, w)
				}
			}
		})
	}
}

func TestRenderHTMLKeepsFormatting(t *testing.T) {
	e := Entry{Time: time.Now(), Severity: SeverityLog, Text: "<i>styled</i>"}
	if out := RenderHTML(e); !strings.Contains(out, "<i>styled</i>") {
		t.Errorf("formatting lost in %q", out)
	}
}

func TestRenderANSIContainsText(t *testing.T) {
	e := Entry{Time: time.Now(), Severity: SeverityInfo, Text: "hello world"}
	out := RenderANSI(e)
	if !strings.Contains(out, "info") || !strings.Contains(out, "hello world") {
		t.Errorf("unexpected ANSI line %q", out)
	}
}

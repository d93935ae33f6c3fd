// Package bridge implements the host side of the diagnostics protocol that
// carries console output out of the preview context.
package bridge

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/ajsharma/neon_playground/internal/compose"
)

// Severity names a console method.
type Severity string

// Severities forwarded by the preview shim.
const (
	SeverityLog   Severity = "log"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
	SeverityInfo  Severity = "info"
	SeverityDebug Severity = "debug"
)

// Severities lists every severity the shim intercepts, in shim order.
var Severities = []Severity{SeverityLog, SeverityWarn, SeverityError, SeverityInfo, SeverityDebug}

// Known reports whether s is one of the intercepted severities.
func (s Severity) Known() bool {
	switch s {
	case SeverityLog, SeverityWarn, SeverityError, SeverityInfo, SeverityDebug:
		return true
	}
	return false
}

// Message is one diagnostic crossing the isolation boundary.
type Message struct {
	Marker bool     `json:"__neon_console"`
	Type   Severity `json:"type"`
	Args   []string `json:"args"`
}

// NewMessage builds a tagged message.
func NewMessage(sev Severity, args ...string) Message {
	if args == nil {
		args = []string{}
	}
	return Message{Marker: true, Type: sev, Args: args}
}

// Encode returns the wire form of m.
func (m Message) Encode() []byte {
	data, _ := json.Marshal(m)
	return data
}

// Decode parses raw cross-context traffic. It returns false for anything
// that is not a JSON object carrying a truthy protocol marker and an args
// array; such traffic belongs to someone else and is ignored.
func Decode(raw []byte) (*Message, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, false
	}
	if !truthy(fields[compose.ProtocolMarker]) {
		return nil, false
	}

	msg := &Message{Marker: true, Args: []string{}}

	if rawType, ok := fields["type"]; ok {
		var s string
		if err := json.Unmarshal(rawType, &s); err == nil {
			msg.Type = Severity(s)
		} else {
			msg.Type = Severity(partText(rawType))
		}
	}

	var parts []json.RawMessage
	if err := json.Unmarshal(fields["args"], &parts); err != nil || parts == nil {
		return nil, false
	}
	for _, p := range parts {
		msg.Args = append(msg.Args, partText(p))
	}

	return msg, true
}

// truthy mirrors JavaScript truthiness for a decoded JSON value.
func truthy(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	if len(v) == 0 {
		return false
	}
	switch v[0] {
	case 't':
		return true
	case 'f', 'n':
		return false
	case '"':
		return len(v) > 2
	case '{', '[':
		return true
	default:
		f, err := strconv.ParseFloat(string(v), 64)
		return err == nil && f != 0
	}
}

// partText converts one argument to display text. Strings are used as-is,
// null becomes empty like Array.prototype.join does, everything else keeps
// its compact JSON form.
func partText(v json.RawMessage) string {
	v = bytes.TrimSpace(v)
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	if bytes.Equal(v, []byte("null")) {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, v); err != nil {
		return string(v)
	}
	return buf.String()
}

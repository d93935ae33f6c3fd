// Package redact masks sensitive values in preview diagnostics before they
// are written to a transcript.
package redact

import (
	"encoding/json"
	"strings"

	"github.com/ajsharma/neon_playground/internal/bridge"
)

// RedactedValue is the placeholder for redacted content.
const RedactedValue = "[REDACTED]"

// Redactor handles redaction of sensitive data.
type Redactor struct {
	enabled       bool
	keyDenylist   []string
	fieldDenylist []string
}

// New creates a new Redactor with default settings.
func New(enabled bool) *Redactor {
	return &Redactor{
		enabled:       enabled,
		keyDenylist:   DefaultKeyDenylist,
		fieldDenylist: DefaultFieldDenylist,
	}
}

// NewWithCustomRules creates a Redactor with custom denylist patterns.
func NewWithCustomRules(enabled bool, keys, fields []string) *Redactor {
	r := New(enabled)
	if keys != nil {
		r.keyDenylist = append(append([]string(nil), r.keyDenylist...), keys...)
	}
	if fields != nil {
		r.fieldDenylist = append(append([]string(nil), r.fieldDenylist...), fields...)
	}
	return r
}

// IsEnabled returns whether redaction is enabled.
func (r *Redactor) IsEnabled() bool {
	return r.enabled
}

// RedactEntry returns a copy of e with every part redacted and the text
// rebuilt from the redacted parts.
func (r *Redactor) RedactEntry(e bridge.Entry) bridge.Entry {
	if !r.enabled {
		return e
	}
	e.Parts = r.RedactParts(e.Parts)
	e.Text = strings.Join(e.Parts, " ")
	return e
}

// RedactParts redacts each diagnostic argument.
func (r *Redactor) RedactParts(parts []string) []string {
	if !r.enabled || parts == nil {
		return parts
	}
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = r.RedactPart(p)
	}
	return out
}

// RedactPart redacts one argument. Arguments the shim serialized as JSON
// objects or arrays have sensitive fields replaced; other text has the
// values of sensitive "name: value" pairs replaced.
func (r *Redactor) RedactPart(part string) string {
	if !r.enabled || part == "" {
		return part
	}
	trimmed := strings.TrimSpace(part)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		if out, ok := r.redactJSON(trimmed); ok {
			return out
		}
	}
	return r.RedactText(part)
}

// RedactJSON redacts sensitive fields from a JSON document.
// If parsing fails, the input is returned unchanged.
func (r *Redactor) RedactJSON(body string) string {
	if !r.enabled || body == "" {
		return body
	}
	if out, ok := r.redactJSON(body); ok {
		return out
	}
	return body
}

func (r *Redactor) redactJSON(body string) (string, bool) {
	var data interface{}
	if err := json.Unmarshal([]byte(body), &data); err != nil {
		return "", false
	}

	result, err := json.Marshal(r.redactValue(data))
	if err != nil {
		return "", false
	}
	return string(result), true
}

// RedactText replaces the values of sensitive pairs in free text, such as
// "Authorization: Bearer abc" or "token=abc".
func (r *Redactor) RedactText(text string) string {
	if !r.enabled || text == "" {
		return text
	}

	text = pairPattern.ReplaceAllStringFunc(text, func(match string) string {
		sub := pairPattern.FindStringSubmatch(match)
		name, sep, value := sub[1], sub[2], sub[3]
		if !r.shouldRedactKey(name) && !r.shouldRedactField(name) {
			// The value may itself be a pair, as in "x: token=abc".
			return name + sep + r.RedactText(value)
		}
		return name + sep + RedactedValue
	})
	return bearerPattern.ReplaceAllString(text, "${1}${2}"+RedactedValue)
}

// shouldRedactKey checks if a header-style name should be redacted.
func (r *Redactor) shouldRedactKey(name string) bool {
	for _, pattern := range r.keyDenylist {
		if matchKeyName(name, pattern) {
			return true
		}
	}
	return false
}

// shouldRedactField checks if a field should be redacted.
func (r *Redactor) shouldRedactField(name string) bool {
	for _, pattern := range r.fieldDenylist {
		if matchFieldName(name, pattern) {
			return true
		}
	}
	return false
}

// redactValue recursively redacts sensitive fields in a JSON value.
func (r *Redactor) redactValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return r.redactMap(val)
	case []interface{}:
		return r.redactSlice(val)
	default:
		return val
	}
}

// redactMap redacts sensitive fields in a JSON object.
func (r *Redactor) redactMap(m map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{}, len(m))
	for key, value := range m {
		if r.shouldRedactField(key) {
			result[key] = RedactedValue
		} else {
			result[key] = r.redactValue(value)
		}
	}
	return result
}

// redactSlice redacts sensitive fields in a JSON array.
func (r *Redactor) redactSlice(s []interface{}) []interface{} {
	result := make([]interface{}, len(s))
	for i, value := range s {
		result[i] = r.redactValue(value)
	}
	return result
}

package cdp

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/chromedp/cdproto/runtime"

	"github.com/ajsharma/neon_playground/internal/bridge"
)

// severityOf maps a console API call type to a diagnostic severity.
func severityOf(t runtime.APIType) bridge.Severity {
	switch t {
	case runtime.APITypeWarning:
		return bridge.SeverityWarn
	case runtime.APITypeError, runtime.APITypeAssert:
		return bridge.SeverityError
	case runtime.APITypeInfo:
		return bridge.SeverityInfo
	case runtime.APITypeDebug:
		return bridge.SeverityDebug
	default:
		return bridge.SeverityLog
	}
}

// formatArgs renders console arguments as text parts.
func formatArgs(args []*runtime.RemoteObject) []string {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		parts = append(parts, formatValue(extractRemoteObjectValue(arg)))
	}
	return parts
}

// formatValue turns an extracted value into a text part: strings verbatim,
// nil as "null", everything else as compact JSON.
func formatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}

// exceptionText renders an uncaught exception the way the window error
// handler reports it.
func exceptionText(details *runtime.ExceptionDetails) string {
	if details == nil {
		return ""
	}
	text := details.Text
	if details.Exception != nil && details.Exception.Description != "" {
		desc, _, _ := strings.Cut(details.Exception.Description, "\n")
		text += " " + desc
	}
	return fmt.Sprintf("%s (%s:%d)", text, details.URL, details.LineNumber+1)
}

// extractRemoteObjectValue converts a console argument into a Go value:
// JSON primitives decode, previews become maps or slices, and anything else
// falls back to its description.
func extractRemoteObjectValue(obj *runtime.RemoteObject) interface{} {
	switch {
	case obj == nil:
		return nil
	case obj.UnserializableValue != "":
		// NaN, Infinity, -0, bigint
		return string(obj.UnserializableValue)
	case obj.Value != nil:
		var v interface{}
		if json.Unmarshal(obj.Value, &v) != nil {
			return string(obj.Value)
		}
		return v
	case obj.Type == runtime.TypeUndefined:
		return "undefined"
	case obj.Subtype == runtime.SubtypeNull:
		return nil
	case obj.Preview != nil:
		return extractObjectPreview(obj.Preview)
	case obj.Description != "":
		return obj.Description
	}
	return string(obj.Type)
}

// extractObjectPreview turns an object preview into a slice for arrays and
// a map otherwise. Overflowing previews are marked.
func extractObjectPreview(preview *runtime.ObjectPreview) interface{} {
	if preview.Subtype == runtime.SubtypeArray {
		items := make([]interface{}, len(preview.Properties), len(preview.Properties)+1)
		for i, prop := range preview.Properties {
			items[i] = extractPropertyValue(prop)
		}
		if preview.Overflow {
			items = append(items, "...")
		}
		return items
	}

	fields := make(map[string]interface{}, len(preview.Properties))
	for _, prop := range preview.Properties {
		fields[prop.Name] = extractPropertyValue(prop)
	}
	if preview.Overflow {
		fields["..."] = "(truncated)"
	}
	return fields
}

func extractPropertyValue(prop *runtime.PropertyPreview) interface{} {
	switch {
	case prop.Value == "null", prop.Type == runtime.TypeObject && prop.Subtype == runtime.SubtypeNull:
		return nil
	case prop.Type == runtime.TypeBoolean:
		return prop.Value == "true"
	case prop.Type == runtime.TypeNumber:
		if f, err := strconv.ParseFloat(prop.Value, 64); err == nil {
			return f
		}
	}
	// Strings, "undefined" and nested summaries like "Array(3)" stay as text.
	return prop.Value
}

package bridge

import (
	"fmt"
	"html"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/microcosm-cc/bluemonday"
)

// Severity colors used by the log panel.
const (
	ColorLog   = "#00e5ff"
	ColorError = "#ff6b6b"
	ColorWarn  = "#ffd93d"
	ColorInfo  = "#6a9eff"
	ColorDebug = "#a78bfa"
)

// TimeLayout formats arrival times in log lines.
const TimeLayout = "15:04:05"

// textPolicy keeps formatting markup in messages and strips scripts, event
// handlers and unsafe URLs.
var textPolicy = bluemonday.UGCPolicy()

// Color returns the display color for sev. Unknown severities use the log
// color.
func Color(sev Severity) string {
	switch sev {
	case SeverityError:
		return ColorError
	case SeverityWarn:
		return ColorWarn
	case SeverityInfo:
		return ColorInfo
	case SeverityDebug:
		return ColorDebug
	default:
		return ColorLog
	}
}

// Label returns the severity text shown in a line.
func Label(sev Severity) string {
	if sev == "" {
		return "undefined"
	}
	return string(sev)
}

// RenderHTML renders e as a console-line element for the browser log panel.
// Message markup passes through textPolicy, so preview output can format
// text but never run code in the host page.
func RenderHTML(e Entry) string {
	return fmt.Sprintf(
		`<div class="console-line"><span style="opacity:.6;color:#888">[%s]</span> `+
			`<span style="color:%s;font-weight:600">%s</span>: `+
			`<span style="color:#cfefff">%s</span></div>`,
		e.Time.Format(TimeLayout),
		Color(e.Severity),
		html.EscapeString(Label(e.Severity)),
		sanitizeText(e.Text),
	)
}

func sanitizeText(s string) string {
	if !strings.ContainsAny(s, "<>&") {
		return s
	}
	return textPolicy.Sanitize(s)
}

// Plain renders e as uncolored text.
func Plain(e Entry) string {
	return fmt.Sprintf("[%s] %s: %s", e.Time.Format(TimeLayout), Label(e.Severity), e.Text)
}

var timeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))

// RenderANSI renders e for a terminal with the severity label colored.
func RenderANSI(e Entry) string {
	label := lipgloss.NewStyle().
		Foreground(lipgloss.Color(Color(e.Severity))).
		Bold(true).
		Render(Label(e.Severity))
	textStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#cfefff"))
	return timeStyle.Render("["+e.Time.Format(TimeLayout)+"]") + " " + label + ": " + textStyle.Render(e.Text)
}

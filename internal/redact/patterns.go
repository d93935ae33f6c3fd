package redact

import (
	"regexp"
	"strings"
)

// DefaultKeyDenylist contains header-style names whose values are redacted
// wherever they appear as "name: value" or "name=value" in diagnostic text.
var DefaultKeyDenylist = []string{
	"cookie",
	"set-cookie",
	"authorization",
	"proxy-authorization",
	"x-api-key",
	"x-auth-token",
	"x-csrf-token",
	"x-xsrf-token",
	"bearer",
}

// DefaultFieldDenylist contains JSON field names that should be redacted by default.
var DefaultFieldDenylist = []string{
	"password",
	"passwd",
	"secret",
	"token",
	"apikey",
	"api_key",
	"accesstoken",
	"access_token",
	"refreshtoken",
	"refresh_token",
	"private_key",
	"privatekey",
	"client_secret",
	"clientsecret",
	"credential",
	"credentials",
	"auth",
	"ssn",
	"social_security",
	"credit_card",
	"creditcard",
	"card_number",
	"cardnumber",
	"cvv",
	"pin",
}

// pairPattern matches "name: value" and "name=value" in free text. Quoted
// values are matched whole; an authorization scheme is kept with its value.
var pairPattern = regexp.MustCompile(`([A-Za-z][A-Za-z0-9_\-]*)(\s*[:=]\s*)((?i:(?:bearer|basic)\s+)?(?:"[^"]*"|'[^']*'|[^\s&,;]+))`)

// bearerPattern matches a bare "Bearer <token>".
var bearerPattern = regexp.MustCompile(`(?i)\b(bearer)(\s+)([A-Za-z0-9\-._~+/]+=*)`)

// matchKeyName checks if a header-style name matches a pattern (case-insensitive).
func matchKeyName(actual, pattern string) bool {
	return strings.EqualFold(actual, pattern)
}

// matchFieldName checks if a field name matches a pattern (case-insensitive).
func matchFieldName(actual, pattern string) bool {
	actualLower := strings.ToLower(actual)
	patternLower := strings.ToLower(pattern)

	// Exact match.
	if actualLower == patternLower {
		return true
	}

	// Check if the field name contains the pattern as a substring.
	// This catches variations like "user_password", "passwordHash", etc.
	return strings.Contains(actualLower, patternLower)
}

// Package redact scrubs sensitive information from strings before they are
// logged or returned in error responses. The main concern here is GitHub
// tokens, which flow through credential errors, plus filesystem paths and
// hostnames from storage and network failures.
package redact

import "regexp"

// Redaction placeholders.
const (
	RedactedTokenPlaceholder = "[REDACTED_TOKEN]"
	RedactedPathPlaceholder  = "[REDACTED_PATH]"
	RedactedHostPlaceholder  = "[REDACTED_HOST]"
	RedactedEmailPlaceholder = "[REDACTED_EMAIL]"
)

var (
	// GitHub token formats: classic, fine-grained, OAuth app.
	githubTokenRegex = regexp.MustCompile(`\b(?:ghp|gho|ghu|ghs|ghr)_[A-Za-z0-9]{20,}\b|\bgithub_pat_[A-Za-z0-9_]{20,}\b`)

	// Generic key/token assignments in error text.
	apiKeyRegex = regexp.MustCompile(`(?i)(api[_-]?key|token|secret|password|auth)(['"\s:=]+)[A-Za-z0-9_\-.~+/]{8,}`)

	// Basic-auth style credentials embedded in URLs.
	urlCredRegex = regexp.MustCompile(`(?i)(https?|git|ssh)://[^@/\s]+@`)

	// Filesystem paths.
	unixPathRegex = regexp.MustCompile(`(/[\w.-]+){2,}`)

	// Hostnames with optional ports.
	hostPortRegex = regexp.MustCompile(`\b(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}(?::\d{1,5})?\b`)

	emailRegex = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

	replacements = []struct {
		pattern     *regexp.Regexp
		placeholder string
	}{
		{githubTokenRegex, RedactedTokenPlaceholder},
		{apiKeyRegex, "${1}${2}" + RedactedTokenPlaceholder},
		{urlCredRegex, "${1}://" + RedactedTokenPlaceholder + "@"},
		{emailRegex, RedactedEmailPlaceholder},
		{unixPathRegex, RedactedPathPlaceholder},
		{hostPortRegex, RedactedHostPlaceholder},
	}
)

// String redacts sensitive information from the input string.
func String(input string) string {
	if input == "" {
		return input
	}
	result := input
	for _, r := range replacements {
		result = r.pattern.ReplaceAllString(result, r.placeholder)
	}
	return result
}

// Error redacts sensitive information from an error's message. A nil error
// yields an empty string.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}

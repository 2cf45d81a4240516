// Package redact provides best-effort stripping of credential material from
// text before it is persisted or echoed back to the operator.
//
// Shell commands and script output routinely contain things like
// "Authorization: Bearer <token>" or inline API keys. The audit log is
// append-only and long-lived, so known credential shapes are scrubbed before
// a line is written. Redaction operates on string representations only; it is
// not a substitute for keeping secrets out of commands in the first place.
package redact

import (
	"regexp"
	"strings"
)

const placeholder = "[REDACTED]"

// credentialPatterns matches well-known credential shapes. Vendor-prefixed
// keys are matched by prefix; the generic bearer/basic patterns match the
// header form only, to avoid mangling ordinary text.
var credentialPatterns = []*regexp.Regexp{
	regexp.MustCompile(`sk-[A-Za-z0-9_-]{20,}`),                   // OpenAI-style API keys
	regexp.MustCompile(`ghp_[A-Za-z0-9]{36,}`),                    // GitHub personal tokens
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),                        // AWS access key IDs
	regexp.MustCompile(`xox[baprs]-[A-Za-z0-9-]{10,}`),            // Slack tokens
	regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._~+/=-]{16,}`),    // Authorization: Bearer …
	regexp.MustCompile(`(?i)basic\s+[A-Za-z0-9+/=]{16,}`),         // Authorization: Basic …
	regexp.MustCompile(`(?i)(api[_-]?key|token|secret|password)=\S{8,}`), // key=value args
}

// String replaces every match of the known credential patterns in s with
// [REDACTED]. Additional literal values may be passed and are replaced as
// well (values shorter than 4 characters are skipped).
func String(s string, sensitiveValues ...string) string {
	for _, p := range credentialPatterns {
		s = p.ReplaceAllString(s, placeholder)
	}
	for _, v := range sensitiveValues {
		if len(v) < 4 {
			continue
		}
		s = strings.ReplaceAll(s, v, placeholder)
	}
	return s
}

// Map returns a shallow copy of m with string values redacted: values under
// sensitive-looking keys are replaced wholesale, all other string values are
// pattern-scrubbed. Non-string values are left unchanged.
func Map(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		str, ok := v.(string)
		if !ok {
			out[k] = v
			continue
		}
		if isSensitiveKey(k) && str != "" {
			out[k] = placeholder
			continue
		}
		out[k] = String(str)
	}
	return out
}

// isSensitiveKey returns true when the key name suggests it holds a secret.
func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, word := range []string{"password", "passwd", "token", "secret", "credential", "apikey", "api_key"} {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}

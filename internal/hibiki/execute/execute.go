// Package execute carries out resolved actions: calendar operations against
// the calendar backend, scripts and generated shell commands through a
// process runner. Executors translate every failure mode into an outcome
// rather than an error, so the user and the audit trail always see the same
// classification.
package execute

import (
	"fmt"
	"time"
)

// Per-domain execution deadlines. Scripts get the longest leash; an ad-hoc
// shell command that takes more than 20 seconds is almost always a mistake.
const (
	CalendarTimeout = 15 * time.Second
	ScriptTimeout   = 120 * time.Second
	ShellTimeout    = 20 * time.Second
)

// maxOutputChars bounds how much captured process output is relayed to the
// user.
const maxOutputChars = 4000

// truncate cuts s to maxOutputChars, marking the cut.
func truncate(s string) string {
	if len(s) <= maxOutputChars {
		return s
	}
	return s[:maxOutputChars] + fmt.Sprintf("\n… (truncated, %d more bytes)", len(s)-maxOutputChars)
}

// Package util provides shared utility functions for the CLI.
package util

import (
	"regexp"
	"strings"
)

var (
	// disallowedChars matches anything not in [a-z0-9-_].
	disallowedChars = regexp.MustCompile(`[^a-z0-9\-_]`)
	// multiHyphen collapses consecutive hyphens.
	multiHyphen = regexp.MustCompile(`-{2,}`)
	// ansiEscape matches CSI and OSC terminal escape sequences.
	ansiEscape = regexp.MustCompile(`\x1b(?:\[[0-9;?]*[a-zA-Z]|\][^\x07\x1b]*(?:\x07|\x1b\\))`)
)

// SanitizeForName converts a string to a CLI-safe, filesystem-safe name.
//   - Lowercases
//   - Replaces spaces with hyphens
//   - Strips all characters not in [a-z0-9-_]
//   - Collapses consecutive hyphens
//   - Trims leading/trailing hyphens
//
// Example: "My App (web)" → "my-app-web"
func SanitizeForName(name string) string {
	s := strings.ToLower(name)
	s = strings.ReplaceAll(s, " ", "-")
	s = disallowedChars.ReplaceAllString(s, "")
	s = multiHyphen.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	return s
}

// StripANSI removes terminal escape sequences from bundler output.
// Dev servers colorize heavily; stored logs and readiness matching
// operate on the plain text.
func StripANSI(s string) string {
	return ansiEscape.ReplaceAllString(s, "")
}

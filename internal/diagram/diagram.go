// Package diagram pulls fenced mermaid blocks out of assistant responses so
// a client can hand them to a diagram renderer instead of printing them.
package diagram

import (
	"regexp"
	"strings"
)

var fencedMermaid = regexp.MustCompile("(?s)```mermaid\\s*\n(.*?)```")

// Extract returns the source of the first fenced mermaid block in text, and
// whether one was found.
func Extract(text string) (string, bool) {
	match := fencedMermaid.FindStringSubmatch(text)
	if match == nil {
		return "", false
	}
	source := strings.TrimSpace(match[1])
	if source == "" {
		return "", false
	}
	return source, true
}

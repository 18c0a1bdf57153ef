package model

import "strings"

// MergeNotes unions the distinct, trimmed, non-empty lines of every part in
// order of first appearance. An empty result means the record has no notes.
func MergeNotes(parts ...string) string {
	seen := make(map[string]struct{})
	var lines []string
	for _, p := range parts {
		for _, line := range strings.Split(p, "\n") {
			v := strings.TrimSpace(line)
			if v == "" {
				continue
			}
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			lines = append(lines, v)
		}
	}
	return strings.Join(lines, "\n")
}

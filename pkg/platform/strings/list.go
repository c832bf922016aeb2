// Package strings holds text helpers shared by request models.
package strings

import (
	"slices"
	"strings"
)

// CleanList trims every value, drops the blank ones and keeps only the first
// occurrence of each remaining value. Order is preserved and the input slice
// is not modified.
func CleanList(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || slices.Contains(out, v) {
			continue
		}
		out = append(out, v)
	}
	return out
}

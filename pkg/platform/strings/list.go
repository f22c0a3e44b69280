// Package strings holds small string helpers shared by config and transport code.
package strings

import (
	"strings"
)

// SplitList splits a sep-separated value such as "b1:9092, b2:9092" into its
// trimmed, non-empty, de-duplicated elements. Order is preserved.
func SplitList(raw, sep string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, sep)
	seen := make(map[string]struct{}, len(parts))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

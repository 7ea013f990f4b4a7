// Package issuekey parses and extracts issue keys such as HSP-12.
package issuekey

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// keyPattern matches issue keys (e.g., PROJ-123, ABC-1).
var keyPattern = regexp.MustCompile(`([A-Z][A-Z0-9]+-\d+)`)

// fullPattern matches a whole string that is exactly one issue key.
var fullPattern = regexp.MustCompile(`^([A-Z][A-Z0-9]+)-(\d+)$`)

// Key is a parsed issue key.
type Key struct {
	Project string
	Number  int
}

func (k Key) String() string { return fmt.Sprintf("%s-%d", k.Project, k.Number) }

// Parse parses s as an issue key. Surrounding whitespace is ignored and
// the project part is upper-cased.
func Parse(s string) (Key, error) {
	m := fullPattern.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(s)))
	if m == nil {
		return Key{}, fmt.Errorf("invalid issue key %q", s)
	}
	n, err := strconv.Atoi(m[2])
	if err != nil || n <= 0 {
		return Key{}, fmt.Errorf("invalid issue number in key %q", s)
	}
	return Key{Project: m[1], Number: n}, nil
}

// IsValid reports whether s parses as an issue key.
func IsValid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// Extract extracts all issue key matches from text.
// Returns a deduplicated list preserving the order of first occurrence.
func Extract(text string) []string {
	matches := keyPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool)
	var result []string
	for _, m := range matches {
		if seen[m] {
			continue
		}
		seen[m] = true
		result = append(result, m)
	}
	return result
}

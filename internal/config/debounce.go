package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultDebounce is used when no debounce value is configured.
const DefaultDebounce = 1000 * time.Millisecond

var debouncePattern = regexp.MustCompile(`^(\d+)(ms|s)?$`)

// ParseDebounce parses a debounce duration string.
//
// Accepted forms: "500ms", "2s", and a bare integer which is taken as
// milliseconds. An empty string yields DefaultDebounce. Anything else is a
// fatal input error and must be rejected before a watch session starts.
func ParseDebounce(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultDebounce, nil
	}

	m := debouncePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid debounce %q: expected <n>ms, <n>s, or a millisecond count", s)
	}

	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid debounce %q: %w", s, err)
	}

	switch m[2] {
	case "s":
		return time.Duration(n) * time.Second, nil
	default: // "ms" or bare integer
		return time.Duration(n) * time.Millisecond, nil
	}
}

// Package xregexp matches names against operator-supplied patterns that are
// usually plain literals but may be regular expressions — the orchestrator's
// hop-by-hop header filter is the main consumer. Compiled patterns are
// cached for the process lifetime; patterns without regex metacharacters
// short-circuit to an exact string compare, and regex patterns are anchored
// so "Te" can never match inside "Content-Type".
package xregexp

import (
	"regexp"
	"strings"

	"github.com/luthien-control/core/internal/xmap"
)

type cachedPattern struct {
	regex      *regexp.Regexp
	exactMatch bool
	compileErr bool
}

var patterns = xmap.New[string, *cachedPattern]()

// MatchString reports whether str matches pattern in full. An
// uncompilable pattern matches nothing.
func MatchString(pattern string, str string) bool {
	cached := compile(pattern)

	if cached.compileErr {
		return false
	}

	if cached.exactMatch {
		return pattern == str
	}

	return cached.regex.MatchString(str)
}

// Filter returns the items that match pattern in full. An empty or
// uncompilable pattern yields an empty result, never the input.
func Filter(items []string, pattern string) []string {
	matched := make([]string, 0)

	if pattern == "" {
		return matched
	}

	cached := compile(pattern)
	if cached.compileErr {
		return matched
	}

	for _, item := range items {
		if cached.exactMatch {
			if pattern == item {
				matched = append(matched, item)
			}

			continue
		}

		if cached.regex.MatchString(item) {
			matched = append(matched, item)
		}
	}

	return matched
}

func compile(pattern string) *cachedPattern {
	if cached, ok := patterns.Load(pattern); ok {
		return cached
	}

	cached := &cachedPattern{}

	if !strings.ContainsAny(pattern, "*?+[]{}()^$.|\\") {
		cached.exactMatch = true
	} else if compiled, err := regexp.Compile("^" + pattern + "$"); err != nil {
		cached.compileErr = true
	} else {
		cached.regex = compiled
	}

	patterns.Store(pattern, cached)

	return cached
}

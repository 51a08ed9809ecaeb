// Package channel derives canonical channel-role keys from human-readable
// track names. Roles key the per-channel repair request, so extraction must
// be deterministic across editor, agent and backend.
package channel

import (
	"regexp"
	"strconv"
	"strings"
)

const fallbackMaxLen = 20

// Rule is one matcher in the extraction chain. Rules are tried in order and
// the first match wins.
type Rule struct {
	Name  string
	Match func(name string) (string, bool)
}

var (
	componentRe = regexp.MustCompile(`(?i)[_\-\s](a\d+)`)
	streamRe    = regexp.MustCompile(`(?i)[_\-\s]?s(\d+)`)
	layoutRe    = regexp.MustCompile(`(?i)\b(FL|FR|FC|LFE|SL|SR|BL|BR|c\d+)\b`)
)

// Rules is the ordered matcher chain. Component-index style names win over
// stream-index style, which wins over speaker-layout words; anything else
// falls through to a sanitized copy of the name. The order is load-bearing:
// "Component_a0_S1" must resolve to "a0", not "S1".
var Rules = []Rule{
	{
		Name: "component-index",
		Match: func(name string) (string, bool) {
			m := componentRe.FindStringSubmatch(name)
			if m == nil {
				return "", false
			}
			return strings.ToLower(m[1]), true
		},
	},
	{
		Name: "stream-index",
		Match: func(name string) (string, bool) {
			m := streamRe.FindStringSubmatch(name)
			if m == nil {
				return "", false
			}
			return "S" + m[1], true
		},
	},
	{
		Name: "speaker-layout",
		Match: func(name string) (string, bool) {
			m := layoutRe.FindStringSubmatch(name)
			if m == nil {
				return "", false
			}
			return strings.ToUpper(m[1]), true
		},
	},
}

// RoleForTrack returns the canonical role key for a track name.
func RoleForTrack(name string) string {
	for _, rule := range Rules {
		if role, ok := rule.Match(name); ok {
			return role
		}
	}
	return Sanitize(name)
}

// RoleLess orders role keys for display. Component-index roles (a0, a1, ...)
// sort numerically and before everything else; remaining roles sort lexically.
func RoleLess(a, b string) bool {
	ai, aOK := componentIndex(a)
	bi, bOK := componentIndex(b)
	switch {
	case aOK && bOK:
		return ai < bi
	case aOK:
		return true
	case bOK:
		return false
	default:
		return a < b
	}
}

func componentIndex(role string) (int, bool) {
	if len(role) < 2 || role[0] != 'a' {
		return 0, false
	}
	n, err := strconv.Atoi(role[1:])
	if err != nil {
		return 0, false
	}
	return n, true
}

// Sanitize is the fallback role: every non-alphanumeric rune becomes "_" and
// the result is truncated to 20 characters.
func Sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	s := b.String()
	if len(s) > fallbackMaxLen {
		s = s[:fallbackMaxLen]
	}
	return s
}

// Package blacklist answers "is this URI excluded from observation?" against
// a set of operator-supplied regular expressions, mirroring the
// allowlist-compilation shape of pkg/firewall.PolicyFirewall.AllowTool (which
// compiles operator input once at configuration time and fails loudly on a
// bad pattern, since a malformed operator pattern is a deployment error, not
// a runtime one).
package blacklist

import "regexp"

// Blacklist is an immutable, compiled set of route-exclusion patterns.
type Blacklist struct {
	patterns []*regexp.Regexp
}

// Compile builds a Blacklist from regex source strings. A bad pattern is
// fatal to construction (spec.md §4.2): the caller is expected to treat this
// the same way the teacher treats a bad firewall schema — a deployment-time
// error caught in staging, not something to paper over at request time.
func Compile(patterns []string) (*Blacklist, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, re)
	}
	return &Blacklist{patterns: compiled}, nil
}

// IsBlacklisted reports whether any pattern matches anywhere in uri.
func (b *Blacklist) IsBlacklisted(uri string) bool {
	for _, re := range b.patterns {
		if re.MatchString(uri) {
			return true
		}
	}
	return false
}

// Package redact implements key-based redaction over both parsed JSON
// bodies and header maps, grounded on two teacher patterns: the recursive
// tree-walk in canonicalize/jcs.go (decode once, recurse, rebuild) and the
// key-matching scrub in privacy.StandardPrivacyManager.Validate (check key
// names against a restricted set). Redaction here builds a fresh value —
// there is no interior mutation, so recursion depth simply matches the
// input tree (spec.md §4.3).
package redact

import (
	"regexp"

	"golang.org/x/text/unicode/norm"

	"github.com/Mindburn-Labs/treblle-http-wasm/internal/jsonval"
)

// Mask is the fixed replacement value for any sensitive field (spec.md §3).
const Mask = "*****"

// Redactor holds the compiled sensitive-key pattern. Safe for concurrent
// use: it is read-only after construction.
type Redactor struct {
	sensitive *regexp.Regexp
}

// New wraps an already-compiled sensitive-key pattern; a nil pattern
// redacts nothing. The pattern is typically case-insensitive by convention
// (spec.md §3); callers pass it through as given rather than forcing `(?i)`
// so an operator can opt out.
func New(sensitive *regexp.Regexp) *Redactor {
	return &Redactor{sensitive: sensitive}
}

// matchesKey reports whether name matches the sensitive-key pattern. Header
// and JSON key names are NFC-normalized first so visually identical Unicode
// names (combining vs. precomposed accents) redact consistently regardless
// of which normal form the host or upstream client happened to send.
func (r *Redactor) matchesKey(name string) bool {
	if r.sensitive == nil {
		return false
	}
	return r.sensitive.MatchString(norm.NFC.String(name))
}

// Value returns a new jsonval.Value with every member whose key matches the
// sensitive pattern replaced by Mask; matched members are not recursed
// into (spec.md's P4: "no child of that key is present" — there is nothing
// to recurse into once the value becomes the mask string). Non-matching
// members, array elements and scalars pass through structurally unchanged
// (P5).
func (r *Redactor) Value(v jsonval.Value) jsonval.Value {
	switch v.Kind {
	case jsonval.KindArray:
		out := make([]jsonval.Value, len(v.Array))
		for i, e := range v.Array {
			out[i] = r.Value(e)
		}
		return jsonval.Value{Kind: jsonval.KindArray, Array: out}
	case jsonval.KindObject:
		out := make([]jsonval.Member, len(v.Object))
		for i, m := range v.Object {
			if r.matchesKey(m.Key) {
				out[i] = jsonval.Member{Key: m.Key, Value: jsonval.Value{Kind: jsonval.KindString, String: Mask}}
				continue
			}
			out[i] = jsonval.Member{Key: m.Key, Value: r.Value(m.Value)}
		}
		return jsonval.Value{Kind: jsonval.KindObject, Object: out}
	default:
		return v
	}
}

// Headers returns a copy of headers with every value masked whose header
// name matches the sensitive pattern. Header maps have no nesting, so this
// is a single pass rather than a recursion.
func (r *Redactor) Headers(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for name, value := range headers {
		if r.matchesKey(name) {
			out[name] = Mask
			continue
		}
		out[name] = value
	}
	return out
}

// Package matcher implements the blocklist membership test: given a
// queried domain name and the currently installed policy set, decide
// whether the query should be denied.
//
// A Policy is immutable once built. The Matcher holds a single atomic
// reference to the active Policy and swaps it wholesale on reload, so a
// concurrent IsBlocked call always observes one fully-built Policy, never
// a partially-updated one.
package matcher

import (
	"strings"
)

// Policy is the active blocklist: a set of exact domain names and a set
// of wildcard bases (the `b` in a `*.b` token). Both sets are built once
// by the loader and never mutated in place.
type Policy struct {
	exact    map[string]struct{}
	wildcard map[string]struct{}
	bloom    *bloomFilter // nil when the policy is too small to bother
}

// NewPolicy builds a Policy from already-normalized exact names and
// wildcard bases. Callers (the loader) are responsible for normalization
// and for collapsing duplicates is not required: both arguments may
// contain duplicates, which collapse naturally in the resulting sets.
func NewPolicy(exactNames, wildcardBases []string) *Policy {
	p := &Policy{
		exact:    make(map[string]struct{}, len(exactNames)),
		wildcard: make(map[string]struct{}, len(wildcardBases)),
	}
	for _, n := range exactNames {
		p.exact[n] = struct{}{}
	}
	for _, b := range wildcardBases {
		p.wildcard[b] = struct{}{}
	}
	p.bloom = newBloomFilter(p.exact, p.wildcard)
	return p
}

// EmptyPolicy returns a Policy with no entries; is_blocked is always
// false against it.
func EmptyPolicy() *Policy {
	return NewPolicy(nil, nil)
}

// Count returns |ExactSet| + |WildcardBases|.
func (p *Policy) Count() int {
	if p == nil {
		return 0
	}
	return len(p.exact) + len(p.wildcard)
}

// IsBlocked runs the decision algorithm against this policy.
//
// Normalize into labels L0.L1…Lk-1, then:
//  1. If the full name is in ExactSet, blocked.
//  2. Else, for i from 1 to k-1, test suffix Li…Lk-1 against
//     WildcardBases; any hit blocks. i starts at 1 (not 0) so that
//     `*.b` matches strict subdomains of b but never b itself.
//  3. Else, not blocked.
//
// Never fails: malformed or empty input returns false.
func (p *Policy) IsBlocked(name string) bool {
	if p == nil {
		return false
	}
	norm := Normalize(name)
	if norm == "" {
		return false
	}
	labels := strings.Split(norm, ".")
	k := len(labels)

	if p.bloom != nil && !p.bloom.maybeContains(labels) {
		return false
	}

	if _, ok := p.exact[norm]; ok {
		return true
	}
	for i := 1; i < k; i++ {
		suffix := strings.Join(labels[i:], ".")
		if _, ok := p.wildcard[suffix]; ok {
			return true
		}
	}
	return false
}

// Normalize lower-cases a domain name and strips a single trailing dot.
// Idempotent: Normalize(Normalize(d)) == Normalize(d).
func Normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.TrimSuffix(name, ".")
	return name
}

package matcher

import "sync/atomic"

// Matcher holds the currently active Policy behind an atomic pointer, so
// readers never block a writer and a writer's install is visible to
// readers as a single atomic step — no query ever observes a partially
// swapped policy.
type Matcher struct {
	policy atomic.Pointer[Policy]
}

// New returns a Matcher with an empty, non-nil starting policy.
func New() *Matcher {
	m := &Matcher{}
	m.policy.Store(EmptyPolicy())
	return m
}

// IsBlocked normalizes and evaluates name against the currently active
// policy. Never fails.
func (m *Matcher) IsBlocked(name string) bool {
	return m.policy.Load().IsBlocked(name)
}

// Install atomically replaces the active policy. Queries already in
// flight keep using the Policy reference they loaded on entry; this call
// has no effect on them.
func (m *Matcher) Install(p *Policy) {
	if p == nil {
		p = EmptyPolicy()
	}
	m.policy.Store(p)
}

// Count reports the cardinality of the currently active policy.
func (m *Matcher) Count() int {
	return m.policy.Load().Count()
}

// Active returns the currently installed Policy reference, for callers
// (like the admin API) that want a point-in-time snapshot.
func (m *Matcher) Active() *Policy {
	return m.policy.Load()
}

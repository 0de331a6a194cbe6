// Package loader turns a list of blocklist tokens into a matcher.Policy
// and installs it. It is stateless: every call is independent, and a bad
// token is dropped with a warning rather than failing the whole build.
package loader

import (
	"log/slog"
	"strings"

	"github.com/sinkholed/sinkhole/internal/matcher"
)

// Entry is one parsed blocklist token.
type Entry struct {
	Domain   string // normalized
	Wildcard bool   // true if the token carried a "*." prefix
}

// ParseToken trims and lower-cases token. A "*." prefix marks the
// remainder as a wildcard base; anything else is an exact entry. Blank
// tokens and comment lines (first non-whitespace char "#") are rejected
// — callers are expected to have already filtered these, but ParseToken
// defends against them anyway since it must never fail.
func ParseToken(token string) (Entry, bool) {
	t := strings.ToLower(strings.TrimSpace(token))
	if t == "" || strings.HasPrefix(t, "#") {
		return Entry{}, false
	}
	if rest, ok := strings.CutPrefix(t, "*."); ok {
		rest = matcher.Normalize(rest)
		if rest == "" {
			return Entry{}, false
		}
		return Entry{Domain: rest, Wildcard: true}, true
	}
	return Entry{Domain: matcher.Normalize(t), Wildcard: false}, true
}

// Build consumes a finite slice of tokens and produces a fully built
// Policy. Duplicate and unparseable tokens collapse/drop silently here;
// callers that want per-token diagnostics should call ParseToken
// themselves (see BuildLogged).
func Build(tokens []string) *matcher.Policy {
	p, _ := BuildLogged(tokens, nil)
	return p
}

// BuildLogged is Build but emits a warning-level log entry for every token
// that failed to parse, and returns the count of dropped tokens.
func BuildLogged(tokens []string, logger *slog.Logger) (*matcher.Policy, int) {
	var exact, wildcard []string
	dropped := 0
	for _, tok := range tokens {
		e, ok := ParseToken(tok)
		if !ok {
			dropped++
			if logger != nil {
				logger.Warn("dropping unparseable blocklist token", "token", tok)
			}
			continue
		}
		if e.Wildcard {
			wildcard = append(wildcard, e.Domain)
		} else {
			exact = append(exact, e.Domain)
		}
	}
	return matcher.NewPolicy(exact, wildcard), dropped
}

// InstallInto hands a built Policy to the Matcher for atomic
// installation. This is a thin wrapper so the reload controller can
// depend on the loader package alone for both steps of "build, then
// install".
func InstallInto(m *matcher.Matcher, policy *matcher.Policy) {
	m.Install(policy)
}

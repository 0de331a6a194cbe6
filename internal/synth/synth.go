// Package synth implements the Response Synthesizer: building a denial
// reply for a blocked query. It is pure given its inputs — it never
// consults the blocklist and never fails for a well-formed query.
package synth

import (
	"fmt"
	"net"
	"strings"

	"github.com/miekg/dns"
)

// Kind selects which denial reply shape to build.
type Kind int

const (
	Refused Kind = iota
	NXDomain
	IPv4
	IPv6
)

// answerTTL is fixed at 60 seconds for synthesized A/AAAA records.
const answerTTL = 60

// DenialPolicy is the parsed form of the blocked_response configuration
// value: one of refused, nxdomain, ip(<v4|v6 literal>).
type DenialPolicy struct {
	Kind Kind
	IP   net.IP // set only for Kind == IPv4 or Kind == IPv6
}

// ParseDenialPolicy parses a blocked_response configuration string.
func ParseDenialPolicy(s string) (DenialPolicy, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.EqualFold(s, "refused"):
		return DenialPolicy{Kind: Refused}, nil
	case strings.EqualFold(s, "nxdomain"):
		return DenialPolicy{Kind: NXDomain}, nil
	case strings.HasPrefix(strings.ToLower(s), "ip(") && strings.HasSuffix(s, ")"):
		literal := s[strings.Index(s, "(")+1 : len(s)-1]
		ip := net.ParseIP(literal)
		if ip == nil {
			return DenialPolicy{}, fmt.Errorf("synth: invalid ip literal %q in blocked_response", literal)
		}
		if ip4 := ip.To4(); ip4 != nil {
			return DenialPolicy{Kind: IPv4, IP: ip4}, nil
		}
		return DenialPolicy{Kind: IPv6, IP: ip}, nil
	default:
		return DenialPolicy{}, fmt.Errorf("synth: unrecognized blocked_response %q", s)
	}
}

// Synthesize builds a denial reply R for query Q under policy.
//
//   - R.Id = Q.Id, R.Response = true, R.Opcode = Q.Opcode, R.Question = Q.Question
//   - refused  -> RcodeRefused,    no answers
//   - nxdomain -> RcodeNameError,  no answers
//   - ip(v4/6) -> RcodeSuccess,    one A/AAAA record for the first question
//
// If Q carries no question, a REFUSED reply with the original id, an
// empty question section and no answer is produced, whatever the policy.
func Synthesize(q *dns.Msg, policy DenialPolicy) *dns.Msg {
	r := new(dns.Msg)
	r.Id = q.Id
	r.Response = true
	r.Opcode = q.Opcode
	r.RecursionDesired = q.RecursionDesired
	if len(q.Question) == 0 {
		r.Rcode = dns.RcodeRefused
		return r
	}
	r.Question = q.Question

	switch policy.Kind {
	case NXDomain:
		r.Rcode = dns.RcodeNameError
	case IPv4, IPv6:
		r.Rcode = dns.RcodeSuccess
		if len(q.Question) > 0 {
			name := q.Question[0].Name
			if policy.Kind == IPv4 {
				r.Answer = []dns.RR{&dns.A{
					Hdr: dns.RR_Header{Name: name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: answerTTL},
					A:   policy.IP,
				}}
			} else {
				r.Answer = []dns.RR{&dns.AAAA{
					Hdr: dns.RR_Header{Name: name, Rrtype: dns.TypeAAAA, Class: dns.ClassINET, Ttl: answerTTL},
					AAAA: policy.IP,
				}}
			}
		}
	default: // Refused
		r.Rcode = dns.RcodeRefused
	}
	return r
}

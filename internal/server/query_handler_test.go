package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sinkholed/sinkhole/internal/loader"
	"github.com/sinkholed/sinkhole/internal/matcher"
	"github.com/sinkholed/sinkhole/internal/stats"
	"github.com/sinkholed/sinkhole/internal/synth"
	"github.com/sinkholed/sinkhole/internal/upstream"
)

func newStats() *stats.Stats { return stats.New(prometheus.NewRegistry()) }

func startFakeUpstream(t *testing.T) (addr string, seen chan uint16) {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	seen = make(chan uint16, 8)

	go func() {
		buf := make([]byte, 4096)
		for {
			n, peer, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}
			req := new(dns.Msg)
			if err := req.Unpack(buf[:n]); err != nil {
				continue
			}
			seen <- req.Id
			reply := new(dns.Msg)
			reply.SetReply(req)
			reply.Answer = []dns.RR{&dns.A{
				Hdr: dns.RR_Header{Name: req.Question[0].Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60},
				A:   net.ParseIP("93.184.216.34"),
			}}
			out, err := reply.Pack()
			if err != nil {
				continue
			}
			_, _ = conn.WriteTo(out, peer)
		}
	}()
	return conn.LocalAddr().String(), seen
}

func buildQuery(t *testing.T, id uint16, name string) []byte {
	t.Helper()
	m := new(dns.Msg)
	m.Id = id
	m.SetQuestion(dns.Fqdn(name), dns.TypeA)
	b, err := m.Pack()
	require.NoError(t, err)
	return b
}

func newHandler(t *testing.T, m *matcher.Matcher, upstreamAddr string) (*QueryHandler, *stats.Stats) {
	t.Helper()
	s := newStats()
	return &QueryHandler{
		Matcher:  m,
		Upstream: upstream.New(upstreamAddr, time.Second),
		Denial:   synth.DenialPolicy{Kind: synth.Refused},
		Stats:    s,
	}, s
}

// Blocked-exact-match end-to-end scenario.
func TestHandle_Scenario1_BlockedExact(t *testing.T) {
	m := matcher.New()
	m.Install(loader.Build([]string{"ads.example.com"}))
	h, s := newHandler(t, m, "127.0.0.1:1")

	req := buildQuery(t, 0xBEEF, "ads.example.com")
	reply := h.Handle(context.Background(), &net.UDPAddr{IP: net.ParseIP("10.0.0.5")}, req)
	require.NotEmpty(t, reply)

	msg := new(dns.Msg)
	require.NoError(t, msg.Unpack(reply))
	assert.Equal(t, dns.RcodeRefused, msg.Rcode)
	assert.Equal(t, uint16(0xBEEF), msg.Id)

	snap := s.Snapshot()
	assert.Equal(t, uint64(1), snap.Blocked)
	assert.Equal(t, uint64(0), snap.Allowed)
	assert.Equal(t, uint64(1), snap.Total)
}

// Allowed-and-forwarded end-to-end scenario.
func TestHandle_Scenario2_AllowedForwarded(t *testing.T) {
	m := matcher.New()
	m.Install(loader.Build([]string{"ads.example.com"}))
	addr, seen := startFakeUpstream(t)
	h, s := newHandler(t, m, addr)

	req := buildQuery(t, 0x1234, "safe.example.com")
	reply := h.Handle(context.Background(), &net.UDPAddr{IP: net.ParseIP("10.0.0.5")}, req)
	require.NotEmpty(t, reply)

	msg := new(dns.Msg)
	require.NoError(t, msg.Unpack(reply))
	assert.Equal(t, uint16(0x1234), msg.Id, "client must see its own transaction id")
	assert.Len(t, msg.Answer, 1)

	outboundID := <-seen
	assert.NotEqual(t, uint16(0x1234), outboundID, "outbound id must be uncorrelated")

	snap := s.Snapshot()
	assert.Equal(t, uint64(1), snap.Allowed)
	assert.Equal(t, uint64(0), snap.Blocked)
}

// Wildcard-subdomain end-to-end scenario.
func TestHandle_Scenario3_WildcardSubdomains(t *testing.T) {
	m := matcher.New()
	m.Install(loader.Build([]string{"*.example.com"}))
	addr, _ := startFakeUpstream(t)
	h, _ := newHandler(t, m, addr)

	for _, name := range []string{"a.example.com", "b.a.example.com"} {
		reply := h.Handle(context.Background(), &net.UDPAddr{}, buildQuery(t, 1, name))
		msg := new(dns.Msg)
		require.NoError(t, msg.Unpack(reply))
		assert.Equal(t, dns.RcodeRefused, msg.Rcode, name)
	}

	reply := h.Handle(context.Background(), &net.UDPAddr{}, buildQuery(t, 2, "example.com"))
	msg := new(dns.Msg)
	require.NoError(t, msg.Unpack(reply))
	assert.NotEqual(t, dns.RcodeRefused, msg.Rcode, "example.com itself must not be blocked by *.example.com")
}

// Mixed exact-and-wildcard end-to-end scenario.
func TestHandle_Scenario4_MixedExactAndWildcard(t *testing.T) {
	m := matcher.New()
	m.Install(loader.Build([]string{"*.ads.example.com", "other.com"}))
	addr, _ := startFakeUpstream(t)
	h, _ := newHandler(t, m, addr)

	cases := map[string]bool{
		"ads.example.com":         false,
		"tracker.ads.example.com": true,
		"other.com":               true,
		"sub.other.com":           false,
	}
	for name, wantBlocked := range cases {
		reply := h.Handle(context.Background(), &net.UDPAddr{}, buildQuery(t, 1, name))
		msg := new(dns.Msg)
		require.NoError(t, msg.Unpack(reply))
		assert.Equal(t, wantBlocked, msg.Rcode == dns.RcodeRefused, name)
	}
}

func TestHandle_MalformedQuery_DropsAndCountsTotalOnly(t *testing.T) {
	m := matcher.New()
	h, s := newHandler(t, m, "127.0.0.1:1")

	reply := h.Handle(context.Background(), &net.UDPAddr{}, []byte{0x01, 0x02})
	assert.Nil(t, reply)

	snap := s.Snapshot()
	assert.Equal(t, uint64(1), snap.Total)
	assert.Equal(t, uint64(0), snap.Blocked)
	assert.Equal(t, uint64(0), snap.Allowed)
}

func TestHandle_UpstreamFailure_SynthesizesRefusedAndCountsAllowed(t *testing.T) {
	m := matcher.New()
	h, s := newHandler(t, m, "127.0.0.1:1") // nothing listens there
	h.Upstream = upstream.New("127.0.0.1:1", 100*time.Millisecond)

	reply := h.Handle(context.Background(), &net.UDPAddr{}, buildQuery(t, 55, "safe.example.com"))
	require.NotEmpty(t, reply)
	msg := new(dns.Msg)
	require.NoError(t, msg.Unpack(reply))
	assert.Equal(t, dns.RcodeRefused, msg.Rcode)
	assert.Equal(t, uint16(55), msg.Id)

	snap := s.Snapshot()
	assert.Equal(t, uint64(1), snap.Allowed, "a failed upstream resolution still counts as allowed per the state machine")
}

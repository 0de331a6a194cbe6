// Package server implements the Query Handler: reading one inbound
// datagram, deciding allow vs deny against the Matcher, dispatching to
// the Upstream Client or the Response Synthesizer, and replying — plus
// the UDP listener that feeds it one independent task per datagram.
package server

import (
	"context"
	"encoding/binary"
	"log/slog"
	"net"

	"github.com/miekg/dns"

	"github.com/sinkholed/sinkhole/internal/matcher"
	"github.com/sinkholed/sinkhole/internal/stats"
	"github.com/sinkholed/sinkhole/internal/synth"
	"github.com/sinkholed/sinkhole/internal/upstream"
)

// QueryHandler holds no per-connection state — every call to Handle is
// independent, safe to run concurrently from many goroutines sharing
// the same QueryHandler.
type QueryHandler struct {
	Logger     *slog.Logger
	Matcher    *matcher.Matcher
	Upstream   *upstream.Client
	Denial     synth.DenialPolicy
	Stats      *stats.Stats
	LogBlocked bool // mirrors the logging.log_blocked config toggle
}

// Handle runs one datagram through RECV -> EXTRACT_NAME -> MATCH ->
// SYNTHESIZE|FORWARD -> SEND. It returns the bytes to write back to src,
// or nil if the datagram should be silently dropped (parse failure, no
// question, or a reply or outbound query that fails to marshal).
func (h *QueryHandler) Handle(ctx context.Context, src net.Addr, reqBytes []byte) []byte {
	q := new(dns.Msg)
	if err := q.Unpack(reqBytes); err != nil {
		h.Stats.RecordDropped()
		h.log().Warn("dropping malformed query", "src", src, "error", err)
		return nil
	}

	if len(q.Question) == 0 {
		h.Stats.RecordDropped()
		h.log().Warn("dropping query with no question", "src", src, "id", q.Id)
		return nil
	}
	qname := q.Question[0].Name

	if h.Matcher.IsBlocked(qname) {
		return h.deny(q, src)
	}
	return h.forward(ctx, q, src)
}

func (h *QueryHandler) deny(q *dns.Msg, src net.Addr) []byte {
	reply := synth.Synthesize(q, h.Denial)
	out, err := reply.Pack()
	if err != nil {
		h.log().Warn("failed to marshal denial reply", "error", err)
		return nil
	}
	h.Stats.RecordBlocked()
	if h.LogBlocked {
		h.log().Info("blocked query", "domain", matcher.Normalize(q.Question[0].Name), "source_ip", hostOf(src))
	}
	return out
}

func (h *QueryHandler) forward(ctx context.Context, q *dns.Msg, src net.Addr) []byte {
	out, err := q.Pack()
	if err != nil {
		h.Stats.RecordDropped()
		h.log().Warn("failed to marshal outbound query", "error", err)
		return nil
	}

	replyBytes, err := h.Upstream.Forward(ctx, out)
	if err != nil {
		h.log().Warn("upstream forward failed, synthesizing refused", "error", err, "qname", q.Question[0].Name, "src", src)
		refused := synth.Synthesize(q, synth.DenialPolicy{Kind: synth.Refused})
		b, _ := refused.Pack()
		h.Stats.RecordAllowed()
		return b
	}

	rewritten := rewriteTransactionID(replyBytes, q.Id)
	h.Stats.RecordAllowed()
	h.log().Debug("allowed query", "qname", q.Question[0].Name, "src", src, "id", q.Id)
	return rewritten
}

func (h *QueryHandler) log() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// rewriteTransactionID overwrites the 2-byte DNS header ID field with
// id so the reply matches the client's original query. b is not
// mutated in place.
func rewriteTransactionID(b []byte, id uint16) []byte {
	if len(b) < 2 {
		return b
	}
	out := make([]byte, len(b))
	copy(out, b)
	binary.BigEndian.PutUint16(out[0:2], id)
	return out
}

func hostOf(addr net.Addr) string {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}

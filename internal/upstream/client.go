// Package upstream implements the Upstream Client: forwarding an allowed
// query to the first configured upstream resolver and returning its
// reply. Caching, TCP fallback, EDNS negotiation, and failover across
// multiple upstreams are explicit non-goals — this is a single-shot,
// single-upstream forward with a bounded wait.
package upstream

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
)

// DefaultTimeout is the bounded wait for an upstream reply when the
// caller does not configure one explicitly.
const DefaultTimeout = 5 * time.Second

// replyBufferSize is generous enough for non-EDNS upstream replies;
// classic UDP DNS replies rarely approach this.
const replyBufferSize = 4096

// Sentinel error kinds for upstream forwarding failures.
var (
	ErrUpstreamUnreachable = errors.New("upstream: unreachable")
	ErrUpstreamTimeout     = errors.New("upstream: timeout")
	ErrUpstreamMalformed   = errors.New("upstream: malformed reply")
)

// Client forwards queries to a single upstream DNS server over UDP.
// A Client has no shared socket state: each Forward call opens its own
// ephemeral UDP "connection" (net.Dial on a connected UDP socket), so
// concurrent Forward calls never interfere with each other even though
// they share one *Client.
type Client struct {
	Addr    string        // "host:port" of the upstream resolver
	Timeout time.Duration // bounded wait for a reply; DefaultTimeout if zero
}

// New returns a Client targeting addr with the given timeout (DefaultTimeout
// if timeout <= 0).
func New(addr string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{Addr: addr, Timeout: timeout}
}

// Forward sends queryBytes to the upstream with a freshly chosen,
// client-uncorrelated transaction id, waits for a matching reply, and
// returns the raw reply bytes verbatim (including the upstream's own
// transaction id — the caller, the Query Handler, is responsible for
// rewriting it back to the original client id).
func (c *Client) Forward(ctx context.Context, queryBytes []byte) ([]byte, error) {
	outboundID, err := freshID()
	if err != nil {
		return nil, fmt.Errorf("upstream: choosing outbound id: %w", err)
	}

	outbound := make([]byte, len(queryBytes))
	copy(outbound, queryBytes)
	if len(outbound) >= 2 {
		binary.BigEndian.PutUint16(outbound[0:2], outboundID)
	}

	conn, err := net.Dial("udp", c.Addr)
	if err != nil {
		return nil, fmt.Errorf("%w: dialing %s: %v", ErrUpstreamUnreachable, c.Addr, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(c.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("%w: setting deadline: %v", ErrUpstreamUnreachable, err)
	}

	if _, err := conn.Write(outbound); err != nil {
		return nil, fmt.Errorf("%w: writing query: %v", ErrUpstreamUnreachable, err)
	}

	buf := make([]byte, replyBufferSize)
	n, err := conn.Read(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
		}
		return nil, fmt.Errorf("%w: reading reply: %v", ErrUpstreamUnreachable, err)
	}

	reply := buf[:n]
	msg := new(dns.Msg)
	if err := msg.Unpack(reply); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamMalformed, err)
	}
	if msg.Id != outboundID {
		return nil, fmt.Errorf("%w: reply id %d does not match outbound id %d", ErrUpstreamMalformed, msg.Id, outboundID)
	}

	return reply, nil
}

func freshID() (uint16, error) {
	var b [2]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/sinkholed/sinkhole/internal/loader"
	"github.com/sinkholed/sinkhole/internal/matcher"
	"github.com/sinkholed/sinkhole/internal/stats"
	"github.com/sinkholed/sinkhole/internal/synth"
	"github.com/sinkholed/sinkhole/internal/upstream"
)

func TestUDPServer_RoundTrip(t *testing.T) {
	m := matcher.New()
	m.Install(loader.Build([]string{"ads.example.com"}))

	handler := &QueryHandler{
		Matcher:  m,
		Upstream: upstream.New("127.0.0.1:1", 100*time.Millisecond),
		Denial:   synth.DenialPolicy{Kind: synth.Refused},
		Stats:    stats.New(prometheus.NewRegistry()),
	}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)

	srv := &UDPServer{Handler: handler}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		srv.RunOnConn(ctx, conn)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	client, err := net.Dial("udp", conn.LocalAddr().String())
	require.NoError(t, err)
	defer client.Close()

	q := new(dns.Msg)
	q.Id = 7
	q.SetQuestion(dns.Fqdn("ads.example.com"), dns.TypeA)
	qBytes, err := q.Pack()
	require.NoError(t, err)

	require.NoError(t, client.SetDeadline(time.Now().Add(2*time.Second)))
	_, err = client.Write(qBytes)
	require.NoError(t, err)

	buf := make([]byte, 512)
	n, err := client.Read(buf)
	require.NoError(t, err)

	reply := new(dns.Msg)
	require.NoError(t, reply.Unpack(buf[:n]))
	require.Equal(t, uint16(7), reply.Id)
	require.Equal(t, dns.RcodeRefused, reply.Rcode)
}

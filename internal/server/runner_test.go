package server

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/sinkholed/sinkhole/internal/config"
)

func TestRunner_EndToEnd_BlockedAndAllowed(t *testing.T) {
	dir := t.TempDir()
	blockPath := filepath.Join(dir, "blocked.txt")
	require.NoError(t, os.WriteFile(blockPath, []byte("ads.example.com\n"), 0o644))

	upstreamAddr, _ := startFakeUpstream(t)

	cfg := &config.Config{}
	cfg.Server.ListenAddr = "127.0.0.1"
	cfg.Server.ListenPort = 0 // overridden below via RunOnConn path
	cfg.Upstream.Servers = []string{upstreamAddr}
	cfg.Upstream.Timeout = "1s"
	cfg.BlockedResponse = "refused"
	cfg.Blocklist.CustomList = blockPath
	cfg.Blocklist.EnableWildcards = true

	runner, err := NewRunner(nil, cfg, prometheus.NewRegistry())
	require.NoError(t, err)
	require.NoError(t, runner.Reload.ReloadNow())

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runner.UDPServer.RunOnConn(ctx, conn)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	client, err := net.Dial("udp", conn.LocalAddr().String())
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, client.SetDeadline(time.Now().Add(2*time.Second)))

	blocked := new(dns.Msg)
	blocked.Id = 1
	blocked.SetQuestion(dns.Fqdn("ads.example.com"), dns.TypeA)
	qb, err := blocked.Pack()
	require.NoError(t, err)
	_, err = client.Write(qb)
	require.NoError(t, err)

	buf := make([]byte, 512)
	n, err := client.Read(buf)
	require.NoError(t, err)
	reply := new(dns.Msg)
	require.NoError(t, reply.Unpack(buf[:n]))
	require.Equal(t, dns.RcodeRefused, reply.Rcode)

	allowed := new(dns.Msg)
	allowed.Id = 2
	allowed.SetQuestion(dns.Fqdn("safe.example.com"), dns.TypeA)
	qb2, err := allowed.Pack()
	require.NoError(t, err)
	_, err = client.Write(qb2)
	require.NoError(t, err)

	n2, err := client.Read(buf)
	require.NoError(t, err)
	reply2 := new(dns.Msg)
	require.NoError(t, reply2.Unpack(buf[:n2]))
	require.NotEqual(t, dns.RcodeRefused, reply2.Rcode)
	require.Len(t, reply2.Answer, 1)
}

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"runtime"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/sinkholed/sinkhole/internal/pool"
)

// recvBufferSize is sufficient for classic, non-EDNS UDP DNS.
const recvBufferSize = 512

var bufferPool = pool.New(func() *[]byte {
	buf := make([]byte, recvBufferSize)
	return &buf
})

// UDPServer is the I/O root of the Query Handler: a bound UDP socket that
// spawns one independent task per received datagram, rather than a
// fixed worker pool reading from a queue. Multiple SO_REUSEPORT sockets,
// one per CPU, spread kernel-level delivery across cores; each has its
// own receive loop, and every loop's goroutine-per-datagram spawns share
// the same *QueryHandler and write back over their own socket, which is
// safe for concurrent writers (net.UDPConn.WriteTo performs one atomic
// sendto per call).
type UDPServer struct {
	Logger  *slog.Logger
	Handler *QueryHandler

	conns []*net.UDPConn
	wg    sync.WaitGroup
}

// Run binds socketCount (NumCPU) SO_REUSEPORT UDP sockets at addr and
// serves until ctx is cancelled, then waits up to 5s for in-flight tasks
// before returning.
func (s *UDPServer) Run(ctx context.Context, addr string) error {
	socketCount := runtime.NumCPU()
	s.conns = make([]*net.UDPConn, 0, socketCount)

	for range socketCount {
		conn, err := listenReusePort(addr)
		if err != nil {
			for _, c := range s.conns {
				_ = c.Close()
			}
			return fmt.Errorf("%w: %v", ErrBindFailure, err)
		}
		s.conns = append(s.conns, conn)
		c := conn
		s.wg.Go(func() {
			s.recvLoop(ctx, c)
		})
	}

	<-ctx.Done()
	return s.Stop(5 * time.Second)
}

// RunOnConn serves on a single, caller-owned connection — used by tests
// that want one predictable listen address instead of NumCPU reuseport
// sockets.
func (s *UDPServer) RunOnConn(ctx context.Context, conn *net.UDPConn) {
	s.conns = []*net.UDPConn{conn}
	s.wg.Go(func() {
		s.recvLoop(ctx, conn)
	})
	<-ctx.Done()
}

// recvLoop is the producer: it blocks in ReadFromUDP and, for every
// datagram, spawns an independent goroutine to run it through the
// Query Handler and reply. The loop itself never waits on that
// goroutine.
func (s *UDPServer) recvLoop(ctx context.Context, conn *net.UDPConn) {
	for {
		bufPtr := bufferPool.Get()
		buf := *bufPtr

		n, peer, err := conn.ReadFromUDP(buf)
		if err != nil {
			bufferPool.Put(bufPtr)
			return
		}

		payload := make([]byte, n)
		copy(payload, buf[:n])
		bufferPool.Put(bufPtr)

		s.wg.Go(func() {
			s.handleDatagram(ctx, conn, peer, payload)
		})
	}
}

func (s *UDPServer) handleDatagram(ctx context.Context, conn *net.UDPConn, peer *net.UDPAddr, payload []byte) {
	if s.Handler == nil {
		return
	}
	reply := s.Handler.Handle(ctx, peer, payload)
	if len(reply) == 0 {
		return // DROP: exactly one of {reply sent, datagram dropped}
	}
	if _, err := conn.WriteToUDP(reply, peer); err != nil {
		s.log().Warn("failed to send reply", "peer", peer, "error", err)
	}
}

func (s *UDPServer) log() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Stop closes all listening sockets (unblocking every recvLoop) and waits
// up to timeout for in-flight per-datagram tasks to finish; any still
// running past the deadline are abandoned.
func (s *UDPServer) Stop(timeout time.Duration) error {
	for _, c := range s.conns {
		_ = c.Close()
	}

	if timeout <= 0 {
		s.wg.Wait()
		return nil
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.New("udp server: timeout waiting for in-flight queries to finish")
	}
}

// listenReusePort creates a UDP socket with SO_REUSEPORT enabled so each
// CPU core's socket receives its own share of inbound datagrams.
func listenReusePort(addr string) (*net.UDPConn, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}

	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			return c.Control(func(fd uintptr) {
				_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			})
		},
	}

	pc, err := lc.ListenPacket(context.Background(), "udp", udpAddr.String())
	if err != nil {
		return nil, err
	}

	return pc.(*net.UDPConn), nil
}

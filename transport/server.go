package transport

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"os"
	"strconv"
	"sync"
	"syscall"

	reuseport "github.com/kavu/go_reuseport"
	"github.com/someonegg/gox/syncx"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/luma/courier/protocol"
)

const (
	// readChunk bounds a single receive. A request larger than one chunk
	// may arrive split across several readiness events.
	readChunk = 1024

	// eventBatch is how many readiness events one wait can hand back.
	eventBatch = 128
)

// Server is the relay's network face: one listening socket plus every
// accepted connection, all multiplexed through a single goroutine
// driving the Poller. That goroutine alone owns the connection table, so
// no per-connection state needs locking, and nothing in the loop blocks
// except the readiness wait itself.
type Server struct {
	addr      string
	reuseport bool

	handler Handler
	log     *zap.Logger

	poller     *Poller
	listener   net.Listener
	listenFile *os.File
	listenFd   int

	conns map[int]*conn
	chunk []byte

	stopD syncx.DoneChan

	closeOnce sync.Once
	closeErr  error
}

func NewServer(options Options) *Server {
	return &Server{
		addr:      net.JoinHostPort(options.Host, strconv.Itoa(options.Port)),
		reuseport: options.Reuseport,
		handler:   options.Handler,
		log:       options.Log,
		stopD:     syncx.NewDoneChan(),
	}
}

// Start binds the listening socket and launches the event loop. It only
// returns once the relay is reachable, so callers can dial straight
// away. Cancelling ctx interrupts the loop; call Close afterwards to
// release the sockets.
func (s *Server) Start(ctx context.Context) error {
	listener, err := s.listen()
	if err != nil {
		return err
	}

	tcpListener, ok := listener.(*net.TCPListener)
	if !ok {
		_ = listener.Close()
		return fmt.Errorf("Listener is a %T, expected a TCP listener", listener)
	}

	// Dup the descriptor out of the runtime's netpoller so the epoll
	// loop owns readiness for it.
	file, err := tcpListener.File()
	if err != nil {
		_ = listener.Close()
		return fmt.Errorf("Failed to obtain the listener descriptor: %w", err)
	}

	if err := syscall.SetNonblock(int(file.Fd()), true); err != nil {
		_ = file.Close()
		_ = listener.Close()
		return err
	}

	poller, err := MakePoller()
	if err != nil {
		_ = file.Close()
		_ = listener.Close()
		return err
	}

	if err := poller.Add(int(file.Fd()), syscall.EPOLLIN); err != nil {
		_ = poller.Close()
		_ = file.Close()
		_ = listener.Close()
		return err
	}

	s.listener = listener
	s.listenFile = file
	s.listenFd = int(file.Fd())
	s.poller = poller
	s.conns = make(map[int]*conn)
	s.chunk = make([]byte, readChunk)

	s.log.Info("Relay server listening", zap.String("addr", listener.Addr().String()))

	go s.loop()

	go func() {
		select {
		case <-ctx.Done():
			if err := s.poller.Wake(); err != nil {
				s.log.Warn("Failed to wake the event loop", zap.Error(err))
			}
		case <-s.stopD:
		}
	}()

	return nil
}

func (s *Server) listen() (net.Listener, error) {
	if s.reuseport {
		return reuseport.Listen("tcp", s.addr)
	}

	return net.Listen("tcp", s.addr)
}

// Addr reports the bound address, useful when the requested port was 0.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// StopD is signalled once the event loop has exited.
func (s *Server) StopD() syncx.DoneChanR {
	return s.stopD.R()
}

func (s *Server) loop() {
	defer s.stopD.SetDone()

	events := make([]syscall.EpollEvent, eventBatch)

	for {
		n, err := s.poller.Wait(events)
		if err != nil {
			s.log.Error("Readiness wait failed, stopping", zap.Error(err))
			return
		}

		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)

			switch fd {
			case s.poller.wakeFd:
				s.poller.drainWake()
				s.log.Info("Event loop interrupted, exiting...")
				return

			case s.listenFd:
				s.accept()

			default:
				s.service(fd, events[i].Events)
			}
		}
	}
}

// accept takes exactly one pending connection. The listener stays
// level-triggered, so a backlog simply reports readiness again on the
// next wait.
func (s *Server) accept() {
	nfd, sa, err := syscall.Accept4(s.listenFd, syscall.SOCK_NONBLOCK|syscall.SOCK_CLOEXEC)
	if err != nil {
		if err == syscall.EAGAIN {
			return
		}

		s.log.Warn("Failed to accept connection", zap.Error(err))
		return
	}

	c := &conn{fd: nfd, peer: peerAddr(sa)}

	if err := s.poller.Add(nfd, syscall.EPOLLIN|syscall.EPOLLOUT); err != nil {
		s.log.Warn("Failed to register connection",
			zap.Stringer("peer", c.peer), zap.Error(err))
		_ = syscall.Close(nfd)
		return
	}

	s.conns[nfd] = c
	connectionsAccepted.Inc()

	s.log.Debug("Accepted connection",
		zap.Stringer("peer", c.peer), zap.Int("fd", nfd))
}

func (s *Server) service(fd int, events uint32) {
	c, ok := s.conns[fd]
	if !ok {
		// Torn down earlier in this batch.
		return
	}

	if events&(syscall.EPOLLIN|syscall.EPOLLHUP|syscall.EPOLLERR) != 0 {
		if closed := s.read(c); closed {
			return
		}
	}

	if events&syscall.EPOLLOUT != 0 {
		s.reply(c)
	}
}

// read performs one bounded receive. It reports true when it tore the
// connection down because the peer finished sending or the socket
// errored.
func (s *Server) read(c *conn) bool {
	n, err := syscall.Read(c.fd, s.chunk)
	switch {
	case err == syscall.EAGAIN:
		return false

	case err != nil:
		s.log.Warn("Failed to read from connection",
			zap.Stringer("peer", c.peer), zap.Error(err))
		s.teardown(c)
		return true

	case n == 0:
		// Peer closed its send side without asking anything of us.
		s.teardown(c)
		return true

	default:
		c.pending = append(c.pending, s.chunk[:n]...)
		return false
	}
}

// reply treats the buffered bytes as the connection's complete request.
// The wire format carries no length, so write readiness with a non-empty
// buffer is the cue that the exchange can turn around; a request still
// in flight past its first chunk loses that race. One exchange per
// connection: the socket closes whether or not the reply got out.
func (s *Server) reply(c *conn) {
	if len(c.pending) == 0 {
		return
	}

	defer s.teardown(c)

	req, err := protocol.Decode(c.pending)
	if err != nil {
		protocolErrors.Inc()
		s.log.Warn("Failed to decode request",
			zap.Stringer("peer", c.peer), zap.Error(err))
		return
	}

	res, err := s.handler.Handle(req)
	if err != nil {
		protocolErrors.Inc()
		s.log.Error("Failed to serve request",
			zap.Stringer("peer", c.peer),
			zap.Stringer("command", req.Command),
			zap.Error(err))
		return
	}

	if err := writeFull(c.fd, protocol.Encode(res)); err != nil {
		droppedReplies.Inc()
		s.log.Warn("Failed to write reply",
			zap.Stringer("peer", c.peer), zap.Error(err))
		return
	}

	exchanges.WithLabelValues(req.Command.String()).Inc()

	s.log.Debug("Served request",
		zap.Stringer("peer", c.peer),
		zap.Stringer("command", req.Command))
}

// teardown deregisters and closes the connection. Failures here are
// logged and swallowed: a handle that is already gone must never take
// the event loop down with it.
func (s *Server) teardown(c *conn) {
	delete(s.conns, c.fd)

	if err := s.poller.Delete(c.fd); err != nil {
		s.log.Warn("Socket could not be deregistered",
			zap.Stringer("peer", c.peer), zap.Error(err))
	}

	if err := syscall.Close(c.fd); err != nil {
		s.log.Warn("Socket could not be closed",
			zap.Stringer("peer", c.peer), zap.Error(err))
	}

	connectionsClosed.Inc()
}

// Close interrupts the event loop, waits for it to stop, then releases
// every socket and the poller. Safe to call more than once.
func (s *Server) Close() error {
	if s.poller == nil {
		// Never started.
		return nil
	}

	s.closeOnce.Do(func() { s.closeErr = s.shutdown() })
	return s.closeErr
}

func (s *Server) shutdown() error {
	s.log.Info("Stopping relay server")

	if err := s.poller.Wake(); err != nil {
		s.log.Warn("Failed to wake the event loop", zap.Error(err))
	}

	<-s.stopD

	// The loop is gone; this goroutine owns the table now.
	for _, c := range s.conns {
		s.teardown(c)
	}

	err := multierr.Combine(
		s.listenFile.Close(),
		s.listener.Close(),
		s.poller.Close(),
	)

	s.log.Info("Relay server stopped")

	return err
}

// writeFull pushes b out without ever blocking the loop. A socket buffer
// too full to take the whole reply surfaces as an error rather than a
// stall.
//
// TODO(rolly) park the unwritten tail on the conn and resume on the next
// write readiness instead of giving up on the reply.
func writeFull(fd int, b []byte) error {
	for len(b) > 0 {
		n, err := syscall.Write(fd, b)
		if err != nil {
			return err
		}

		b = b[n:]
	}

	return nil
}

func peerAddr(sa syscall.Sockaddr) netip.AddrPort {
	switch sa := sa.(type) {
	case *syscall.SockaddrInet4:
		return netip.AddrPortFrom(netip.AddrFrom4(sa.Addr), uint16(sa.Port))
	case *syscall.SockaddrInet6:
		return netip.AddrPortFrom(netip.AddrFrom16(sa.Addr).Unmap(), uint16(sa.Port))
	default:
		return netip.AddrPort{}
	}
}

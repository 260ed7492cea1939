package streaming

import (
	"errors"
	"net"
	"sync"

	"github.com/AlexxIT/go2rtc/pkg/rtsp"
	"github.com/smazurov/uvcrtsp/internal/logging"
)

// Server accepts the encoder's ANNOUNCE and serves DESCRIBE readers from it.
type Server struct {
	relay    *Relay
	listener net.Listener
	logger   logging.Logger
	onEvent  func(StreamEvent)
	port     int

	wg     sync.WaitGroup
	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	closed bool
}

// NewServer creates a server on an already opened listener.
func NewServer(ln net.Listener, relay *Relay, logger logging.Logger, onEvent func(StreamEvent)) *Server {
	port := 0
	if addr, ok := ln.Addr().(*net.TCPAddr); ok {
		port = addr.Port
	}
	return &Server{
		relay:    relay,
		listener: ln,
		logger:   logger,
		onEvent:  onEvent,
		port:     port,
		conns:    make(map[net.Conn]struct{}),
	}
}

// Start runs the accept loop in the background.
func (s *Server) Start() {
	s.logger.Info("RTSP server started", "addr", s.listener.Addr().String())
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop()
	}()
}

// Port returns the listening port.
func (s *Server) Port() int {
	return s.port
}

// Relay returns the server's relay.
func (s *Server) Relay() *Relay {
	return s.relay
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.isClosed() || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Error("Failed to accept connection", "error", err)
			continue
		}

		if !s.track(conn) {
			_ = conn.Close()
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			s.handleConn(conn)
		}()
	}
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

func (s *Server) handleConn(conn net.Conn) {
	rtspConn := rtsp.NewServer(conn)
	remote := conn.RemoteAddr().String()
	var producer, consumer bool

	rtspConn.Listen(func(msg any) {
		switch msg {
		case rtsp.MethodAnnounce:
			if !isLoopback(conn.RemoteAddr()) {
				s.logger.Warn("Rejected ANNOUNCE from non-local peer", "remote", remote)
				_ = rtspConn.Stop()
				return
			}
			producer = true
			s.relay.SetProducer(rtspConn)
			s.logger.Info("RTSP producer connected", "remote", remote)
			s.emit(EventProducerConnected, remote)

		case rtsp.MethodDescribe:
			if err := s.relay.WireConsumer(rtspConn); err != nil {
				s.logger.Warn("Failed to wire RTSP consumer", "remote", remote, "error", err)
				return
			}
			consumer = true
			s.logger.Info("RTSP consumer connected", "remote", remote)
			s.emit(EventConsumerConnected, remote)
		}
	})

	if err := rtspConn.Accept(); err != nil {
		if !errors.Is(err, net.ErrClosed) {
			s.logger.Debug("RTSP accept error", "remote", remote, "error", err)
		}
		s.cleanup(rtspConn, producer, consumer, remote)
		return
	}

	if producer {
		s.relay.StartTaps(rtspConn)
	}

	if err := rtspConn.Handle(); err != nil {
		if !errors.Is(err, net.ErrClosed) {
			s.logger.Debug("RTSP handle error", "remote", remote, "error", err)
		}
	}

	s.cleanup(rtspConn, producer, consumer, remote)
}

func (s *Server) cleanup(conn *rtsp.Conn, producer, consumer bool, remote string) {
	if producer && s.relay.RemoveProducer(conn) {
		s.logger.Info("RTSP producer disconnected", "remote", remote)
		s.emit(EventProducerDisconnected, remote)
	}
	if consumer {
		s.relay.RemoveConsumer(conn)
		s.logger.Info("RTSP consumer disconnected", "remote", remote)
		s.emit(EventConsumerDisconnected, remote)
	}
	_ = conn.Stop()
}

func (s *Server) emit(t EventType, remote string) {
	if s.onEvent != nil {
		s.onEvent(StreamEvent{Type: t, Port: s.port, Remote: remote})
	}
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Stop closes the listener, disconnects every peer and waits for the
// connection goroutines.
func (s *Server) Stop() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()

	err := s.listener.Close()
	s.relay.Stop()
	s.wg.Wait()

	s.logger.Info("RTSP server stopped", "port", s.port)
	return err
}

func isLoopback(addr net.Addr) bool {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return false
	}
	return tcp.IP.IsLoopback()
}

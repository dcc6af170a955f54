package socketserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/codefionn/greenhouse/internal/config"
	"github.com/codefionn/greenhouse/internal/consts"
	"github.com/codefionn/greenhouse/internal/logger"
	"github.com/codefionn/greenhouse/internal/registry"
	"github.com/codefionn/greenhouse/internal/transport"
)

var (
	// ErrServerStopped is returned once Stop has been called.
	ErrServerStopped = errors.New("server stopped")
	// ErrTooManyConnections is returned by Attach when max_connections is reached.
	ErrTooManyConnections = errors.New("connection limit reached")
	// ErrNotListening is returned by Serve before a successful Listen.
	ErrNotListening = errors.New("server is not listening")
)

// Server accepts relay connections and runs one Session per connection
type Server struct {
	hub      *Hub
	registry *registry.Registry
	factory  *transport.Factory

	// Connection tracking
	connMu     sync.RWMutex
	sessions   map[string]*Session
	maxConns   int
	sendBuffer int

	// Control
	mu       sync.Mutex
	listener net.Listener
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewServer creates a relay server. factory may be nil for plain TCP.
func NewServer(cfg *config.Config, reg *registry.Registry, factory *transport.Factory) (*Server, error) {
	if factory == nil {
		var err error
		factory, err = transport.NewFactory(transport.Options{})
		if err != nil {
			return nil, err
		}
	}

	server := &Server{
		hub:        NewHub(reg),
		registry:   reg,
		factory:    factory,
		sessions:   make(map[string]*Session),
		maxConns:   cfg.Server.MaxConnections,
		sendBuffer: cfg.Server.SendBufferSize,
		stopChan:   make(chan struct{}),
	}
	if server.sendBuffer <= 0 {
		server.sendBuffer = consts.DefaultSendBufferSize
	}

	return server, nil
}

// Listen binds addr. A bind failure is fatal for the caller.
func (s *Server) Listen(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.stopChan:
		return ErrServerStopped
	default:
	}
	if s.listener != nil {
		return fmt.Errorf("server is already listening on %s", s.listener.Addr())
	}

	listener, err := s.factory.Listen(addr)
	if err != nil {
		return err
	}
	s.listener = listener

	logger.Info("Relay server listening on %s (tls: %t, max connections: %d)", listener.Addr(), s.factory.TLS(), s.maxConns)
	return nil
}

// Serve accepts connections until Stop is called or ctx is done. Stopping
// is not an error: Serve returns nil.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if listener == nil {
		return ErrNotListening
	}

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.stopChan:
		}
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.stopChan:
				logger.Info("Accept loop stopped")
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			logger.Error("Error accepting connection: %v", err)
			continue
		}

		if _, err := s.Attach(transport.NewLineConn(conn)); err != nil {
			logger.Warn("Rejecting connection from %s: %v", conn.RemoteAddr(), err)
			conn.Close()
		}
	}
}

// ListenAndServe binds addr and serves until Stop or ctx cancellation.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if err := s.Listen(addr); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Attach serves a connection accepted elsewhere, such as a WebSocket
// upgraded by the HTTP gateway. The session starts unclassified.
func (s *Server) Attach(conn transport.Conn) (*Session, error) {
	select {
	case <-s.stopChan:
		return nil, ErrServerStopped
	default:
	}

	session := newSession(s, conn, s.sendBuffer)

	// Stop closes stopChan before it snapshots sessions under connMu
	s.connMu.Lock()
	select {
	case <-s.stopChan:
		s.connMu.Unlock()
		return nil, ErrServerStopped
	default:
	}
	if s.maxConns > 0 && len(s.sessions) >= s.maxConns {
		s.connMu.Unlock()
		return nil, ErrTooManyConnections
	}
	s.sessions[session.ID] = session
	total := len(s.sessions)
	s.connMu.Unlock()

	session.start()

	logger.Info("New connection accepted: %s from %s (total: %d)", session.ID, conn.RemoteAddr(), total)
	return session, nil
}

// Stop closes the listener and every session. It is idempotent.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		logger.Info("Stopping relay server...")

		close(s.stopChan)

		s.mu.Lock()
		if s.listener != nil {
			if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
				logger.Error("Error closing listener: %v", err)
			}
		}
		s.mu.Unlock()

		s.hub.Shutdown()

		s.connMu.RLock()
		sessions := make([]*Session, 0, len(s.sessions))
		for _, session := range s.sessions {
			sessions = append(sessions, session)
		}
		s.connMu.RUnlock()
		for _, session := range sessions {
			session.Close()
		}

		logger.Info("Relay server stopped")
	})
}

// untrackSession removes a session from tracking
func (s *Server) untrackSession(session *Session) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	delete(s.sessions, session.ID)
}

// Addr returns the bound address, or nil before Listen
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// SessionCount returns the number of open sessions of any role
func (s *Server) SessionCount() int {
	s.connMu.RLock()
	defer s.connMu.RUnlock()
	return len(s.sessions)
}

// RoleCounts returns the number of open sessions per role
func (s *Server) RoleCounts() map[Role]int {
	s.connMu.RLock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	s.connMu.RUnlock()

	counts := make(map[Role]int)
	for _, session := range sessions {
		counts[session.Role()]++
	}
	return counts
}

// Hub returns the broadcast hub
func (s *Server) Hub() *Hub {
	return s.hub
}

// Registry returns the node registry commands are routed to
func (s *Server) Registry() *registry.Registry {
	return s.registry
}

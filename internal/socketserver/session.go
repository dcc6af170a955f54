package socketserver

import (
	"errors"
	"strings"
	"sync"

	"github.com/codefionn/greenhouse/internal/logger"
	"github.com/codefionn/greenhouse/internal/protocol"
	"github.com/codefionn/greenhouse/internal/registry"
	"github.com/codefionn/greenhouse/internal/transport"
	"github.com/google/uuid"
)

var (
	// ErrSessionClosed is returned by Send after the session has closed.
	ErrSessionClosed = errors.New("session closed")
	// ErrSendBufferFull is returned by Send when the peer is not draining its queue.
	ErrSendBufferFull = errors.New("send buffer full")
)

// Role is what a session has identified itself as.
type Role int32

const (
	// RoleUnclassified is the role of a session that has not sent a classifying message yet
	RoleUnclassified Role = iota
	// RoleNode marks a sensor/actuator node
	RoleNode
	// RoleControlPanel marks an observer registered with the hub
	RoleControlPanel
	// RoleClosed is terminal
	RoleClosed
)

func (r Role) String() string {
	switch r {
	case RoleUnclassified:
		return "unclassified"
	case RoleNode:
		return "node"
	case RoleControlPanel:
		return "control-panel"
	case RoleClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session represents one connected peer on the server side
type Session struct {
	// Connection identifier
	ID string

	conn   transport.Conn
	server *Server
	log    *logger.Logger

	// Outbound lines, drained by writePump
	send chan string

	mu   sync.Mutex
	role Role

	stopOnce sync.Once
	stopChan chan struct{}
}

func newSession(server *Server, conn transport.Conn, sendBuffer int) *Session {
	id := uuid.NewString()
	return &Session{
		ID:       id,
		conn:     conn,
		server:   server,
		log:      logger.Global().WithPrefix("session " + id[:8]),
		send:     make(chan string, sendBuffer),
		stopChan: make(chan struct{}),
	}
}

// start begins reading from and writing to the connection
func (s *Session) start() {
	go s.readPump()
	go s.writePump()
}

// Role returns the current role
func (s *Session) Role() Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.role
}

// RemoteAddr returns the peer address
func (s *Session) RemoteAddr() string {
	return s.conn.RemoteAddr()
}

// Send queues one line for the peer. Lines are written in the order Send
// was called.
func (s *Session) Send(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.role == RoleClosed {
		return ErrSessionClosed
	}
	select {
	case s.send <- line:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close unregisters the session and closes its connection. Safe to call
// from any goroutine, any number of times.
func (s *Session) Close() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		previous := s.role
		s.role = RoleClosed
		s.mu.Unlock()

		close(s.stopChan)

		if previous == RoleControlPanel {
			s.server.hub.Unregister(s)
		}
		s.server.untrackSession(s)

		if err := s.conn.Close(); err != nil && !transport.IsClosed(err) {
			s.log.Debug("Error closing connection: %v", err)
		}

		s.log.Info("Session closed (%s, was %s)", s.conn.RemoteAddr(), previous)
	})
}

// readPump decodes inbound lines until the stream ends
func (s *Session) readPump() {
	defer s.Close()

	for {
		line, err := s.conn.ReadLine()
		if err != nil {
			if transport.IsClosed(err) {
				s.log.Info("Peer %s disconnected", s.conn.RemoteAddr())
			} else {
				s.log.Warn("Error reading from %s: %v", s.conn.RemoteAddr(), err)
			}
			return
		}

		// Blank lines carry nothing; skip them like keep-alives
		if strings.TrimSpace(line) == "" {
			continue
		}

		s.handleMessage(protocol.Decode(line))
	}
}

// writePump writes queued lines to the connection
func (s *Session) writePump() {
	for {
		select {
		case <-s.stopChan:
			return
		case line := <-s.send:
			if err := s.conn.WriteLine(line); err != nil {
				if !transport.IsClosed(err) {
					s.log.Warn("Failed to write to %s: %v", s.conn.RemoteAddr(), err)
				}
				s.Close()
				return
			}
		}
	}
}

// handleMessage dispatches one decoded message
func (s *Session) handleMessage(msg protocol.Message) {
	s.log.Debug("Received %s", msg.Keyword())

	switch m := msg.(type) {
	case protocol.ControlPanelConnect:
		s.handleControlPanelConnect()

	case protocol.NodeReady, protocol.SensorData, protocol.ActuatorState, protocol.NodeStopped:
		s.classify(RoleNode)
		s.server.hub.Broadcast(m)

	case protocol.ActuatorCommand:
		err := s.server.registry.SetActuator(m.NodeID, m.ActuatorID, m.On)
		switch {
		case err == nil:
		case errors.Is(err, registry.ErrUnknownNode):
			s.log.Debug("Dropping command for unknown node %d", m.NodeID)
		default:
			s.log.Debug("Dropping command for node %d: %v", m.NodeID, err)
		}

	case protocol.TurnOffAllActuators:
		s.server.registry.SetAllActuators(false)

	case protocol.Error:
		s.log.Warn("Protocol error from %s: %s", s.conn.RemoteAddr(), m.Text)
		s.server.hub.Broadcast(m)
	}
}

func (s *Session) handleControlPanelConnect() {
	s.mu.Lock()
	role := s.role
	s.mu.Unlock()

	switch role {
	case RoleUnclassified:
		// Register sets the role under the hub lock
		s.server.hub.Register(s)
	case RoleControlPanel:
		s.log.Debug("Ignoring repeated %s", protocol.KeywordControlPanelConnect)
	default:
		s.log.Warn("Ignoring %s from a %s session", protocol.KeywordControlPanelConnect, role)
	}
}

// classify moves an unclassified session into role
func (s *Session) classify(role Role) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.role != RoleUnclassified {
		return false
	}
	s.role = role
	s.log.Debug("Classified as %s", role)
	return true
}

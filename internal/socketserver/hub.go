package socketserver

import (
	"sync"

	"github.com/codefionn/greenhouse/internal/logger"
	"github.com/codefionn/greenhouse/internal/protocol"
	"github.com/codefionn/greenhouse/internal/registry"
)

// Hub maintains the set of control-panel sessions and fans messages out to them
type Hub struct {
	registry *registry.Registry

	mu       sync.RWMutex
	sessions map[*Session]struct{}
}

// NewHub creates a new hub. New control panels receive a snapshot of reg.
func NewHub(reg *registry.Registry) *Hub {
	return &Hub{
		registry: reg,
		sessions: make(map[*Session]struct{}),
	}
}

// Register classifies s as a control panel, adds it to the hub and queues
// one NODE_READY per registered node to it. No broadcast can slip in
// between the snapshot lines. It returns false if s was already classified
// or closed, or if the snapshot could not be queued (s is closed then).
func (h *Hub) Register(s *Session) bool {
	h.mu.Lock()
	if !s.classify(RoleControlPanel) {
		h.mu.Unlock()
		return false
	}
	h.sessions[s] = struct{}{}

	var sendErr error
	for _, info := range h.registry.Snapshot() {
		if sendErr = s.Send(protocol.Encode(protocol.NodeReady{Info: info})); sendErr != nil {
			delete(h.sessions, s)
			break
		}
	}
	count := len(h.sessions)
	h.mu.Unlock()

	if sendErr != nil {
		logger.Warn("Failed to send node snapshot to %s: %v", s.ID, sendErr)
		s.Close()
		return false
	}

	logger.Info("Control panel registered: %s (total: %d)", s.ID, count)
	return true
}

// Unregister removes s from the hub. Unknown sessions are ignored.
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sessions[s]; ok {
		delete(h.sessions, s)
		logger.Info("Control panel unregistered: %s (total: %d)", s.ID, len(h.sessions))
	}
}

// Broadcast encodes msg once and queues it to every control panel. A
// session that cannot take the line is removed and closed; the others
// still receive it.
func (h *Hub) Broadcast(msg protocol.Message) {
	line := protocol.Encode(msg)

	var failed []*Session
	h.mu.RLock()
	for s := range h.sessions {
		if err := s.Send(line); err != nil {
			logger.Warn("Failed to send to control panel %s, closing: %v", s.ID, err)
			failed = append(failed, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range failed {
		h.Unregister(s)
		s.Close()
	}
}

// Count returns the number of registered control panels
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Shutdown closes all control-panel sessions
func (h *Hub) Shutdown() {
	h.mu.RLock()
	sessions := make([]*Session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()

	for _, s := range sessions {
		s.Close()
	}
}

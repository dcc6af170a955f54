// Package registry tracks the nodes known to the relay server.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/codefionn/greenhouse/internal/greenhouse"
	"github.com/codefionn/greenhouse/internal/logger"
	"github.com/codefionn/greenhouse/internal/protocol"
)

var (
	// ErrUnknownNode is returned when no node with the requested id is registered.
	ErrUnknownNode = errors.New("unknown node")
	// ErrDuplicateNode is returned by Add when the id is already taken.
	ErrDuplicateNode = errors.New("node already registered")
)

// Node is the handle the registry needs from a node: enumerate and switch actuators.
type Node interface {
	ID() int
	Actuators() []greenhouse.Actuator
	SetActuator(actuatorID int, on bool) error
}

type entry struct {
	// mu orders commands addressed to the same node
	mu   sync.Mutex
	node Node
}

// Registry maps node ids to node handles. Entries are never removed.
type Registry struct {
	mu    sync.RWMutex
	nodes map[int]*entry
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		nodes: make(map[int]*entry),
	}
}

// Add registers a node.
func (r *Registry) Add(node Node) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.nodes[node.ID()]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateNode, node.ID())
	}
	r.nodes[node.ID()] = &entry{node: node}
	return nil
}

// Get returns the node with the given id.
func (r *Registry) Get(nodeID int) (Node, bool) {
	e, ok := r.lookup(nodeID)
	if !ok {
		return nil, false
	}
	return e.node, true
}

// Len returns the number of registered nodes.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}

// SetActuator switches one actuator of one node.
func (r *Registry) SetActuator(nodeID, actuatorID int, on bool) error {
	e, ok := r.lookup(nodeID)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownNode, nodeID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.node.SetActuator(actuatorID, on)
}

// SetAllActuators switches every actuator of every registered node.
// Failures on single actuators are logged and do not stop the sweep.
func (r *Registry) SetAllActuators(on bool) {
	for _, e := range r.entries() {
		e.mu.Lock()
		for _, a := range e.node.Actuators() {
			if err := e.node.SetActuator(a.ID, on); err != nil {
				logger.Warn("Failed to switch actuator %d of node %d: %v", a.ID, e.node.ID(), err)
			}
		}
		e.mu.Unlock()
	}
}

// Snapshot describes every registered node, ordered by id.
func (r *Registry) Snapshot() []protocol.NodeInfo {
	entries := r.entries()
	infos := make([]protocol.NodeInfo, 0, len(entries))
	for _, e := range entries {
		infos = append(infos, protocol.NodeInfo{
			NodeID:    e.node.ID(),
			Actuators: greenhouse.Summarize(e.node.Actuators()),
		})
	}
	return infos
}

func (r *Registry) lookup(nodeID int) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.nodes[nodeID]
	return e, ok
}

// entries returns the registered entries ordered by node id.
func (r *Registry) entries() []*entry {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.nodes))
	for _, e := range r.nodes {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].node.ID() < entries[j].node.ID() })
	return entries
}

// Package greenhouse holds the node model the relay talks about: nodes with
// sensors and switchable actuators. The physical simulation is not modelled;
// readings change only when UpdateReadings is called.
package greenhouse

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/codefionn/greenhouse/internal/protocol"
)

// Actuator types used by the default greenhouse layout.
const (
	ActuatorWindow = "window"
	ActuatorFan    = "fan"
	ActuatorHeater = "heater"
)

// ErrUnknownActuator is returned when a node has no actuator with the given id.
var ErrUnknownActuator = errors.New("unknown actuator")

// Actuator is a switchable device attached to a node.
type Actuator struct {
	ID   int    `json:"id"`
	Type string `json:"type"`
	On   bool   `json:"on"`
}

// SensorListener is notified when the readings of a node change.
type SensorListener interface {
	SensorsUpdated(nodeID int, readings []protocol.SensorReading)
}

// ActuatorListener is notified when an actuator of a node changes state.
type ActuatorListener interface {
	ActuatorUpdated(nodeID int, actuator Actuator)
}

// Node is an in-memory sensor/actuator node. It is safe for concurrent use.
type Node struct {
	id int

	mu        sync.RWMutex
	actuators []*Actuator
	readings  []protocol.SensorReading

	listenerMu        sync.RWMutex
	sensorListeners   []SensorListener
	actuatorListeners []ActuatorListener
}

// NewNode creates a node without sensors or actuators.
func NewNode(id int) *Node {
	return &Node{id: id}
}

// ID returns the node identifier.
func (n *Node) ID() int {
	return n.id
}

// AddActuator attaches a new, switched-off actuator.
func (n *Node) AddActuator(id int, actuatorType string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, a := range n.actuators {
		if a.ID == id {
			return fmt.Errorf("node %d already has actuator %d", n.id, id)
		}
	}
	n.actuators = append(n.actuators, &Actuator{ID: id, Type: actuatorType})
	sort.Slice(n.actuators, func(i, j int) bool { return n.actuators[i].ID < n.actuators[j].ID })
	return nil
}

// Actuators returns a copy of the node's actuators ordered by id.
func (n *Node) Actuators() []Actuator {
	n.mu.RLock()
	defer n.mu.RUnlock()

	out := make([]Actuator, 0, len(n.actuators))
	for _, a := range n.actuators {
		out = append(out, *a)
	}
	return out
}

// Readings returns the latest sensor readings.
func (n *Node) Readings() []protocol.SensorReading {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]protocol.SensorReading(nil), n.readings...)
}

// SetActuator switches an actuator. Listeners are only notified when the
// state actually changes.
func (n *Node) SetActuator(actuatorID int, on bool) error {
	n.mu.Lock()
	var target *Actuator
	for _, a := range n.actuators {
		if a.ID == actuatorID {
			target = a
			break
		}
	}
	if target == nil {
		n.mu.Unlock()
		return fmt.Errorf("node %d: %w %d", n.id, ErrUnknownActuator, actuatorID)
	}
	changed := target.On != on
	target.On = on
	snapshot := *target
	n.mu.Unlock()

	if changed {
		n.notifyActuator(snapshot)
	}
	return nil
}

// UpdateReadings replaces the sensor readings and notifies listeners.
func (n *Node) UpdateReadings(readings []protocol.SensorReading) {
	n.mu.Lock()
	n.readings = append([]protocol.SensorReading(nil), readings...)
	n.mu.Unlock()

	n.listenerMu.RLock()
	listeners := append([]SensorListener(nil), n.sensorListeners...)
	n.listenerMu.RUnlock()

	for _, l := range listeners {
		l.SensorsUpdated(n.id, n.Readings())
	}
}

// AddSensorListener registers a listener for reading updates.
func (n *Node) AddSensorListener(l SensorListener) {
	n.listenerMu.Lock()
	defer n.listenerMu.Unlock()
	n.sensorListeners = append(n.sensorListeners, l)
}

// AddActuatorListener registers a listener for actuator changes.
func (n *Node) AddActuatorListener(l ActuatorListener) {
	n.listenerMu.Lock()
	defer n.listenerMu.Unlock()
	n.actuatorListeners = append(n.actuatorListeners, l)
}

func (n *Node) notifyActuator(a Actuator) {
	n.listenerMu.RLock()
	listeners := append([]ActuatorListener(nil), n.actuatorListeners...)
	n.listenerMu.RUnlock()

	for _, l := range listeners {
		l.ActuatorUpdated(n.id, a)
	}
}

// Summarize groups actuators by type into "<count>_<type>" items, ordered by type.
func Summarize(actuators []Actuator) []protocol.ActuatorCount {
	if len(actuators) == 0 {
		return nil
	}

	counts := make(map[string]int)
	for _, a := range actuators {
		counts[a.Type]++
	}

	summary := make([]protocol.ActuatorCount, 0, len(counts))
	for t, c := range counts {
		summary = append(summary, protocol.ActuatorCount{Count: c, Type: t})
	}
	sort.Slice(summary, func(i, j int) bool { return summary[i].Type < summary[j].Type })
	return summary
}

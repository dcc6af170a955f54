package socketclient

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/codefionn/greenhouse/internal/greenhouse"
	"github.com/codefionn/greenhouse/internal/logger"
	"github.com/codefionn/greenhouse/internal/protocol"
)

// Node is the node model a NodeClient publishes
type Node interface {
	ID() int
	Actuators() []greenhouse.Actuator
	SetActuator(actuatorID int, on bool) error
	AddSensorListener(l greenhouse.SensorListener)
	AddActuatorListener(l greenhouse.ActuatorListener)
}

// NodeClient is the node side of the relay connection. It announces the
// node, forwards sensor and actuator changes and applies actuator
// commands addressed to it.
type NodeClient struct {
	*conn
	node Node

	subscribeOnce sync.Once
}

// NewNodeClient creates a client publishing node
func NewNodeClient(config *Config, node Node) *NodeClient {
	return &NodeClient{
		conn: newConn(config, logger.Global().WithPrefix(fmt.Sprintf("node %d", node.ID()))),
		node: node,
	}
}

// Start dials the relay and sends NODE_READY with the node's actuator summary.
func (n *NodeClient) Start(ctx context.Context) error {
	if err := n.dial(ctx); err != nil {
		return err
	}

	ready := protocol.NodeReady{Info: protocol.NodeInfo{
		NodeID:    n.node.ID(),
		Actuators: greenhouse.Summarize(n.node.Actuators()),
	}}
	if err := n.send(ready); err != nil {
		n.close()
		return err
	}

	n.subscribeOnce.Do(func() {
		n.node.AddSensorListener(n)
		n.node.AddActuatorListener(n)
	})

	go n.readLoop(n.handleMessage, nil)

	n.log.Info("Node %d connected to %s", n.node.ID(), n.config.Address)
	return nil
}

// Stop announces NODE_STOPPED and closes the connection
func (n *NodeClient) Stop() error {
	if n.getState() == StateConnected {
		if err := n.send(protocol.NodeStopped{NodeID: n.node.ID()}); err != nil {
			n.log.Warn("Failed to announce stop: %v", err)
		}
	}
	return n.close()
}

// State returns the connection state
func (n *NodeClient) State() ConnectionState {
	return n.getState()
}

// Done is closed once the read loop has exited
func (n *NodeClient) Done() <-chan struct{} {
	return n.done()
}

// SensorsUpdated implements greenhouse.SensorListener
func (n *NodeClient) SensorsUpdated(nodeID int, readings []protocol.SensorReading) {
	err := n.send(protocol.SensorData{NodeID: nodeID, Readings: protocol.FormatReadings(readings)})
	if err != nil && !errors.Is(err, ErrNotConnected) {
		n.log.Warn("Failed to send sensor data: %v", err)
	}
}

// ActuatorUpdated implements greenhouse.ActuatorListener
func (n *NodeClient) ActuatorUpdated(nodeID int, actuator greenhouse.Actuator) {
	err := n.send(protocol.ActuatorState{NodeID: nodeID, ActuatorID: actuator.ID, On: actuator.On})
	if err != nil && !errors.Is(err, ErrNotConnected) {
		n.log.Warn("Failed to send actuator state: %v", err)
	}
}

func (n *NodeClient) handleMessage(msg protocol.Message) {
	switch m := msg.(type) {
	case protocol.ActuatorCommand:
		if m.NodeID != n.node.ID() {
			return
		}
		if err := n.node.SetActuator(m.ActuatorID, m.On); err != nil {
			n.log.Warn("Ignoring command: %v", err)
		}
	case protocol.Error:
		n.log.Warn("Relay reported: %s", m.Text)
	default:
		n.log.Debug("Ignoring %s", msg.Keyword())
	}
}

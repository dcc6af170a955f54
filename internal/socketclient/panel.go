package socketclient

import (
	"context"
	"sync"

	"github.com/codefionn/greenhouse/internal/logger"
	"github.com/codefionn/greenhouse/internal/protocol"
)

// Logic receives what a control panel learns from the relay. Calls come
// from the client's read goroutine, one at a time.
type Logic interface {
	OnNodeAdded(info protocol.NodeInfo)
	OnNodeRemoved(nodeID int)
	OnSensorData(nodeID int, readings []protocol.SensorReading)
	OnActuatorStateChanged(nodeID, actuatorID int, on bool)
	// OnCommunicationChannelClosed is called at most once, when the relay
	// connection ends without Close having been called.
	OnCommunicationChannelClosed()
}

// PanelClient is the control-panel side of the relay connection
type PanelClient struct {
	*conn
	logic Logic

	lostOnce sync.Once
}

// NewPanelClient creates a control-panel client reporting to logic
func NewPanelClient(config *Config, logic Logic) *PanelClient {
	return &PanelClient{
		conn:  newConn(config, logger.Global().WithPrefix("panel")),
		logic: logic,
	}
}

// Open dials the relay and announces this client as a control panel. The
// relay answers with one NODE_READY per known node.
func (p *PanelClient) Open(ctx context.Context) error {
	if err := p.dial(ctx); err != nil {
		return err
	}
	if err := p.send(protocol.ControlPanelConnect{}); err != nil {
		p.close()
		return err
	}

	go p.readLoop(p.handleMessage, p.notifyClosed)

	p.log.Info("Control panel connected to %s", p.config.Address)
	return nil
}

// SendActuatorChange asks the relay to switch one actuator
func (p *PanelClient) SendActuatorChange(nodeID, actuatorID int, on bool) error {
	return p.send(protocol.ActuatorCommand{NodeID: nodeID, ActuatorID: actuatorID, On: on})
}

// SendTurnOffAll asks the relay to switch every actuator off
func (p *PanelClient) SendTurnOffAll() error {
	return p.send(protocol.TurnOffAllActuators{})
}

// Close disconnects. Logic is not notified.
func (p *PanelClient) Close() error {
	return p.close()
}

// State returns the connection state
func (p *PanelClient) State() ConnectionState {
	return p.getState()
}

// Done is closed once the read loop has exited
func (p *PanelClient) Done() <-chan struct{} {
	return p.done()
}

func (p *PanelClient) notifyClosed() {
	p.lostOnce.Do(p.logic.OnCommunicationChannelClosed)
}

func (p *PanelClient) handleMessage(msg protocol.Message) {
	switch m := msg.(type) {
	case protocol.NodeReady:
		p.logic.OnNodeAdded(m.Info)

	case protocol.SensorData:
		readings, err := protocol.ParseReadings(m.Readings)
		if err != nil {
			p.log.Warn("Skipping sensor readings of node %d: %v", m.NodeID, err)
			if len(readings) == 0 {
				return
			}
		}
		p.logic.OnSensorData(m.NodeID, readings)

	case protocol.ActuatorState:
		p.logic.OnActuatorStateChanged(m.NodeID, m.ActuatorID, m.On)

	case protocol.NodeStopped:
		p.logic.OnNodeRemoved(m.NodeID)

	case protocol.Error:
		p.log.Warn("Relay reported: %s", m.Text)

	default:
		p.log.Debug("Ignoring %s", msg.Keyword())
	}
}

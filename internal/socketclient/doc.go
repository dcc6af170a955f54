// Package socketclient provides the two peer clients of the greenhouse relay.
//
// A NodeClient represents one sensor/actuator node. On Start it sends
// NODE_READY, then forwards every sensor update as SENSOR_DATA and every
// actuator change as ACTUATOR_STATE. ACTUATOR_COMMAND lines addressed to
// its node are applied to the node model.
//
// A PanelClient represents a control panel. On Open it sends
// CONTROL_PANEL_CONNECT and hands everything the relay pushes to a Logic
// implementation. Commands go out through SendActuatorChange and
// SendTurnOffAll.
//
// Basic Usage
//
//	panel := socketclient.NewPanelClient(socketclient.DefaultConfig(), logic)
//	if err := panel.Open(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer panel.Close()
//
//	panel.SendActuatorChange(1, 2, true)
//
// Neither client reconnects. When the relay goes away, a PanelClient calls
// Logic.OnCommunicationChannelClosed once and stays disconnected.
package socketclient

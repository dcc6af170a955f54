// Package socketserver implements the greenhouse relay server.
//
// Nodes and control panels connect over TCP (optionally TLS) and exchange
// newline-delimited protocol lines (see package protocol). The server
// classifies each connection by the first meaningful message it sends and
// relays state between the two groups.
//
// # Architecture
//
//   - Server: accepts connections, enforces the connection limit and owns
//     every Session's lifecycle.
//   - Session: one connection. A read pump decodes and dispatches lines; a
//     write pump drains a bounded outbound queue so the hub never blocks on
//     a slow peer.
//   - Hub: the set of control-panel sessions and the broadcast fan-out.
//
// # Dispatch
//
//	CONTROL_PANEL_CONNECT            register with the hub, receive NODE_READY snapshot
//	NODE_READY, SENSOR_DATA,
//	ACTUATOR_STATE, NODE_STOPPED     broadcast to control panels (classifies as node)
//	ACTUATOR_COMMAND                 apply to the node registry, never broadcast
//	TURN_OFF_ALL                     switch every registered actuator off
//	ERROR / malformed input          log and broadcast
//
// Commands for unknown nodes are dropped without a reply. A control panel
// whose queue overflows or whose connection fails is removed from the hub
// and closed. Connections are never timed out, so an idle peer holds its
// goroutines until it disconnects.
package socketserver

// Package protocol implements the greenhouse relay wire protocol.
//
// Messages are single lines of text with fields joined by ';'. The first
// field is a keyword selecting the message kind:
//
//	CONTROL_PANEL_CONNECT
//	NODE_READY;<nodeId>[;<count>_<type>[,<count>_<type>...]]
//	SENSOR_DATA;<nodeId>;<type>=<value> <unit>[,<type>=<value> <unit>...]
//	ACTUATOR_STATE;<nodeId>;<actuatorId>;<true|false>
//	ACTUATOR_COMMAND;<nodeId>;<actuatorId>;<true|false>
//	TURN_OFF_ALL
//	NODE_STOPPED;<nodeId>
//	ERROR;<text>
//
// Decode and Encode are pure functions and safe for concurrent use.
package protocol

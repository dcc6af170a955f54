package protocol

// Wire keywords. Each message kind maps to exactly one keyword.
const (
	KeywordControlPanelConnect = "CONTROL_PANEL_CONNECT"
	KeywordNodeReady           = "NODE_READY"
	KeywordSensorData          = "SENSOR_DATA"
	KeywordActuatorState       = "ACTUATOR_STATE"
	KeywordActuatorCommand     = "ACTUATOR_COMMAND"
	KeywordTurnOffAll          = "TURN_OFF_ALL"
	KeywordNodeStopped         = "NODE_STOPPED"
	KeywordError               = "ERROR"
)

// Field and sub-item delimiters.
const (
	FieldSeparator   = ";"
	ItemSeparator    = ","
	CountSeparator   = "_"
	ReadingSeparator = "="
	UnitSeparator    = " "
)

// DefaultServerPort is the TCP port the relay listens on unless configured otherwise.
const DefaultServerPort = 10025

// Message is one protocol message. The set of implementations is closed:
// only the types in this package satisfy it.
type Message interface {
	// Keyword returns the wire keyword selecting this message kind.
	Keyword() string
	isMessage()
}

// ActuatorCount is one "<count>_<type>" item of a node capability summary.
// Count is never negative on the wire.
type ActuatorCount struct {
	Count int    `json:"count"`
	Type  string `json:"type"`
}

// NodeInfo summarizes a node: its id and how many actuators of each type it has.
// A node without actuators decodes with a nil Actuators slice.
type NodeInfo struct {
	NodeID    int             `json:"node_id"`
	Actuators []ActuatorCount `json:"actuators,omitempty"`
}

// ControlPanelConnect is sent by a control panel right after connecting.
type ControlPanelConnect struct{}

// NodeReady announces a node and its actuator composition.
type NodeReady struct {
	Info NodeInfo
}

// SensorData carries the latest readings of one node. Readings is the raw
// "<type>=<value> <unit>" list, see ParseReadings.
type SensorData struct {
	NodeID   int
	Readings string
}

// ActuatorCommand asks the server to switch an actuator of a node.
type ActuatorCommand struct {
	NodeID     int
	ActuatorID int
	On         bool
}

// ActuatorState reports the new state of an actuator.
type ActuatorState struct {
	NodeID     int
	ActuatorID int
	On         bool
}

// TurnOffAllActuators switches every actuator of every node off.
type TurnOffAllActuators struct{}

// NodeStopped tells control panels that a node went away.
type NodeStopped struct {
	NodeID int
}

// Error is both a decode failure and an error report on the wire.
type Error struct {
	Text string
}

func (ControlPanelConnect) Keyword() string { return KeywordControlPanelConnect }
func (NodeReady) Keyword() string           { return KeywordNodeReady }
func (SensorData) Keyword() string          { return KeywordSensorData }
func (ActuatorCommand) Keyword() string     { return KeywordActuatorCommand }
func (ActuatorState) Keyword() string       { return KeywordActuatorState }
func (TurnOffAllActuators) Keyword() string { return KeywordTurnOffAll }
func (NodeStopped) Keyword() string         { return KeywordNodeStopped }
func (Error) Keyword() string               { return KeywordError }

func (ControlPanelConnect) isMessage() {}
func (NodeReady) isMessage()           {}
func (SensorData) isMessage()          {}
func (ActuatorCommand) isMessage()     {}
func (ActuatorState) isMessage()       {}
func (TurnOffAllActuators) isMessage() {}
func (NodeStopped) isMessage()         {}
func (Error) isMessage()               {}

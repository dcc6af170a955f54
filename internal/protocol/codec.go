package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// Decode parses one protocol line. It never fails: malformed or unknown input
// is returned as an Error message describing the problem.
func Decode(line string) Message {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return Error{Text: "empty message received"}
	}

	switch line {
	case KeywordControlPanelConnect:
		return ControlPanelConnect{}
	case KeywordTurnOffAll:
		return TurnOffAllActuators{}
	case KeywordError:
		return Error{}
	}

	// Error text is free-form and may itself contain separators
	if rest, ok := strings.CutPrefix(line, KeywordError+FieldSeparator); ok {
		return Error{Text: rest}
	}

	parts := strings.Split(line, FieldSeparator)
	switch parts[0] {
	case KeywordControlPanelConnect, KeywordTurnOffAll:
		return arityError(parts[0], "1", len(parts))
	case KeywordNodeReady:
		return decodeNodeReady(parts)
	case KeywordSensorData:
		return decodeSensorData(parts)
	case KeywordActuatorCommand:
		nodeID, actuatorID, on, errMsg := decodeActuatorFields(parts)
		if errMsg != nil {
			return *errMsg
		}
		return ActuatorCommand{NodeID: nodeID, ActuatorID: actuatorID, On: on}
	case KeywordActuatorState:
		nodeID, actuatorID, on, errMsg := decodeActuatorFields(parts)
		if errMsg != nil {
			return *errMsg
		}
		return ActuatorState{NodeID: nodeID, ActuatorID: actuatorID, On: on}
	case KeywordNodeStopped:
		if len(parts) != 2 {
			return arityError(parts[0], "2", len(parts))
		}
		nodeID, err := parseID(parts[1])
		if err != nil {
			return fieldError(parts[0], "node id", parts[1])
		}
		return NodeStopped{NodeID: nodeID}
	default:
		return Error{Text: "unknown message type: " + parts[0]}
	}
}

// Encode serializes a message into its wire form, without line terminator.
func Encode(m Message) string {
	switch msg := m.(type) {
	case ControlPanelConnect:
		return KeywordControlPanelConnect
	case NodeReady:
		return KeywordNodeReady + FieldSeparator + encodeNodeInfo(msg.Info)
	case SensorData:
		return join(KeywordSensorData, strconv.Itoa(msg.NodeID), msg.Readings)
	case ActuatorCommand:
		return join(KeywordActuatorCommand, strconv.Itoa(msg.NodeID), strconv.Itoa(msg.ActuatorID), strconv.FormatBool(msg.On))
	case ActuatorState:
		return join(KeywordActuatorState, strconv.Itoa(msg.NodeID), strconv.Itoa(msg.ActuatorID), strconv.FormatBool(msg.On))
	case TurnOffAllActuators:
		return KeywordTurnOffAll
	case NodeStopped:
		return join(KeywordNodeStopped, strconv.Itoa(msg.NodeID))
	case Error:
		return KeywordError + FieldSeparator + msg.Text
	default:
		return KeywordError + FieldSeparator + fmt.Sprintf("unencodable message %T", m)
	}
}

func decodeNodeReady(parts []string) Message {
	if len(parts) < 2 || len(parts) > 3 {
		return arityError(KeywordNodeReady, "2 or 3", len(parts))
	}

	nodeID, err := parseID(parts[1])
	if err != nil {
		return fieldError(KeywordNodeReady, "node id", parts[1])
	}

	info := NodeInfo{NodeID: nodeID}
	if len(parts) == 2 || parts[2] == "" {
		return NodeReady{Info: info}
	}

	for _, item := range strings.Split(parts[2], ItemSeparator) {
		countText, actuatorType, ok := strings.Cut(item, CountSeparator)
		if !ok || actuatorType == "" {
			return fieldError(KeywordNodeReady, "actuator summary", item)
		}
		count, err := strconv.Atoi(countText)
		if err != nil || count < 0 {
			return fieldError(KeywordNodeReady, "actuator count", countText)
		}
		info.Actuators = append(info.Actuators, ActuatorCount{Count: count, Type: actuatorType})
	}

	return NodeReady{Info: info}
}

func decodeSensorData(parts []string) Message {
	if len(parts) != 3 {
		return arityError(KeywordSensorData, "3", len(parts))
	}
	nodeID, err := parseID(parts[1])
	if err != nil {
		return fieldError(KeywordSensorData, "node id", parts[1])
	}
	return SensorData{NodeID: nodeID, Readings: parts[2]}
}

// decodeActuatorFields parses the shared "<nodeId>;<actuatorId>;<bool>" tail
// of ACTUATOR_COMMAND and ACTUATOR_STATE.
func decodeActuatorFields(parts []string) (int, int, bool, *Error) {
	keyword := parts[0]
	if len(parts) != 4 {
		e := arityError(keyword, "4", len(parts))
		return 0, 0, false, &e
	}

	nodeID, err := parseID(parts[1])
	if err != nil {
		e := fieldError(keyword, "node id", parts[1])
		return 0, 0, false, &e
	}
	actuatorID, err := parseID(parts[2])
	if err != nil {
		e := fieldError(keyword, "actuator id", parts[2])
		return 0, 0, false, &e
	}
	on, err := parseBool(parts[3])
	if err != nil {
		e := fieldError(keyword, "state", parts[3])
		return 0, 0, false, &e
	}

	return nodeID, actuatorID, on, nil
}

// encodeNodeInfo skips items with a negative count, which Decode would
// reject. Nil and empty actuator lists both encode as the bare node id.
func encodeNodeInfo(info NodeInfo) string {
	id := strconv.Itoa(info.NodeID)

	items := make([]string, 0, len(info.Actuators))
	for _, a := range info.Actuators {
		if a.Count < 0 {
			continue
		}
		items = append(items, strconv.Itoa(a.Count)+CountSeparator+a.Type)
	}
	if len(items) == 0 {
		return id
	}
	return id + FieldSeparator + strings.Join(items, ItemSeparator)
}

func join(fields ...string) string {
	return strings.Join(fields, FieldSeparator)
}

func parseID(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}

// parseBool accepts only "true" and "false", ignoring case.
func parseBool(s string) (bool, error) {
	switch {
	case strings.EqualFold(s, "true"):
		return true, nil
	case strings.EqualFold(s, "false"):
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", s)
	}
}

func arityError(keyword, want string, got int) Error {
	return Error{Text: fmt.Sprintf("invalid %s format: expected %s fields, got %d", keyword, want, got)}
}

func fieldError(keyword, field, value string) Error {
	return Error{Text: fmt.Sprintf("invalid %s in %s: %q", field, keyword, value)}
}

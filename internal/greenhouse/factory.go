package greenhouse

import (
	"sync"

	"github.com/codefionn/greenhouse/internal/protocol"
)

// Factory hands out node and actuator ids and builds nodes with the
// standard greenhouse sensors and actuators.
type Factory struct {
	mu             sync.Mutex
	nextNodeID     int
	nextActuatorID int
}

// NewFactory creates a factory whose first node and actuator both get id 1.
func NewFactory() *Factory {
	return &Factory{nextNodeID: 1, nextActuatorID: 1}
}

// CreateNode builds a node with the given number of temperature and humidity
// sensors and window, fan and heater actuators.
func (f *Factory) CreateNode(temperature, humidity, windows, fans, heaters int) *Node {
	f.mu.Lock()
	defer f.mu.Unlock()

	node := NewNode(f.nextNodeID)
	f.nextNodeID++

	for _, group := range []struct {
		actuatorType string
		count        int
	}{
		{ActuatorWindow, windows},
		{ActuatorFan, fans},
		{ActuatorHeater, heaters},
	} {
		for i := 0; i < group.count; i++ {
			// ids come from a single counter, so AddActuator cannot collide
			_ = node.AddActuator(f.nextActuatorID, group.actuatorType)
			f.nextActuatorID++
		}
	}

	var readings []protocol.SensorReading
	for i := 0; i < temperature; i++ {
		readings = append(readings, protocol.SensorReading{Type: "temperature", Value: 20, Unit: "C"})
	}
	for i := 0; i < humidity; i++ {
		readings = append(readings, protocol.SensorReading{Type: "humidity", Value: 80, Unit: "%"})
	}
	node.readings = readings

	return node
}

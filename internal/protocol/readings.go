package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// SensorReading is one "<type>=<value> <unit>" item of a SENSOR_DATA message.
type SensorReading struct {
	Type  string  `json:"type"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// String formats the reading the way it appears on the wire.
func (r SensorReading) String() string {
	return r.Type + ReadingSeparator + formatValue(r.Value) + UnitSeparator + r.Unit
}

// FormatReadings joins readings into the blob carried by SensorData.
func FormatReadings(readings []SensorReading) string {
	items := make([]string, 0, len(readings))
	for _, r := range readings {
		items = append(items, r.String())
	}
	return strings.Join(items, ItemSeparator)
}

// ParseReadings splits a SensorData blob into individual readings.
// An empty blob yields no readings. Malformed items are skipped: the valid
// readings are still returned, together with an error naming every
// skipped item.
func ParseReadings(blob string) ([]SensorReading, error) {
	if blob == "" {
		return nil, nil
	}

	var (
		readings []SensorReading
		errs     []error
	)
	for _, item := range strings.Split(blob, ItemSeparator) {
		reading, err := parseReading(item)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		readings = append(readings, reading)
	}
	return readings, errors.Join(errs...)
}

func parseReading(item string) (SensorReading, error) {
	sensorType, rest, ok := strings.Cut(item, ReadingSeparator)
	if !ok || sensorType == "" {
		return SensorReading{}, fmt.Errorf("invalid sensor reading %q: missing type", item)
	}
	valueText, unit, ok := strings.Cut(rest, UnitSeparator)
	if !ok {
		return SensorReading{}, fmt.Errorf("invalid sensor reading %q: missing unit", item)
	}
	value, err := strconv.ParseFloat(valueText, 64)
	if err != nil {
		return SensorReading{}, fmt.Errorf("invalid sensor reading %q: %w", item, err)
	}
	return SensorReading{Type: sensorType, Value: value, Unit: unit}, nil
}

// formatValue always keeps a decimal point, so 20 is sent as "20.0".
func formatValue(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

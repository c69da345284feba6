package domain

import (
	"strings"
	"time"
)

// SensorKind normalizes the sensor_type field a device presents at
// registration time. Unrecognized kinds fold into SensorKindUnknown rather
// than being rejected.
type SensorKind string

const (
	SensorKindCurrent        SensorKind = "current"
	SensorKindTemperature    SensorKind = "temperature"
	SensorKindHumidity       SensorKind = "humidity"
	SensorKindPressure       SensorKind = "pressure"
	SensorKindWindSpeed      SensorKind = "wind_speed"
	SensorKindWindDirection  SensorKind = "wind_direction"
	SensorKindRain           SensorKind = "rain"
	SensorKindUV             SensorKind = "uv"
	SensorKindSolarRadiation SensorKind = "solar_radiation"
	SensorKindUnknown        SensorKind = "unknown"
)

var knownSensorKinds = map[SensorKind]struct{}{
	SensorKindCurrent:        {},
	SensorKindTemperature:    {},
	SensorKindHumidity:       {},
	SensorKindPressure:       {},
	SensorKindWindSpeed:      {},
	SensorKindWindDirection:  {},
	SensorKindRain:           {},
	SensorKindUV:             {},
	SensorKindSolarRadiation: {},
}

// NormalizeSensorKind lowercases and folds an arbitrary device-reported
// sensor type string into one of the known SensorKind values, defaulting
// to SensorKindUnknown.
func NormalizeSensorKind(raw string) SensorKind {
	k := SensorKind(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := knownSensorKinds[k]; ok {
		return k
	}
	return SensorKindUnknown
}

// DefaultSensorName renders the "<Kind> sensor" label used when a caller
// does not supply one at registration time.
func DefaultSensorName(kind SensorKind) string {
	s := string(kind)
	if s == "" {
		return "Unknown sensor"
	}
	title := strings.ToUpper(s[:1]) + s[1:]
	title = strings.ReplaceAll(title, "_", " ")
	return title + " sensor"
}

// Sensor is a registered field device that reports telemetry.
type Sensor struct {
	ID        int64
	Kind      SensorKind
	IPAddress string
	Port      uint16
	Name      string
	Online    bool
	CreatedAt time.Time
	UpdatedAt *time.Time
}

// SensorRead is one telemetry sample posted by a sensor. Value is an
// opaque string — the gateway never interprets units.
type SensorRead struct {
	ID        int64
	SensorID  int64
	Value     string
	CreatedAt time.Time
}

// RegisterSensorRequest is the payload a device presents to
// POST /sensor/register.
type RegisterSensorRequest struct {
	SensorType string `json:"sensor_type"`
	IPAddress  string `json:"ip_address"`
	Port       uint16 `json:"port"`
}

// IngestReadingRequest is the payload a device presents to POST /sensor.
type IngestReadingRequest struct {
	SensorID    int64  `json:"sensor_id"`
	SensorValue string `json:"sensor_value"`
}

// RenameSensorRequest renames a sensor from the dashboard or CoAP side.
type RenameSensorRequest struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

package domain

import "time"

// Actuator is a registered field device that changes physical state on
// command (e.g. a relay).
type Actuator struct {
	ID        int64
	IPAddress string
	Port      uint16
	Name      string
	Online    bool
	State     bool // current ON/OFF
	Pulse     bool // supports momentary ON-then-OFF mode
	CreatedAt time.Time
	UpdatedAt *time.Time
}

// RegisterActuatorRequest is the payload a device presents to
// POST /actuator/register.
type RegisterActuatorRequest struct {
	IPAddress string `json:"ip_address"`
	Port      uint16 `json:"port"`
	Pulse     bool   `json:"pulse"`
}

// RenameActuatorRequest renames an actuator.
type RenameActuatorRequest struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// SetActuatorStateRequest sets an actuator's persisted state field
// following a successful device round-trip.
type SetActuatorStateRequest struct {
	ID    int64 `json:"id"`
	State bool  `json:"state"`
}

// CoAP wire values exchanged with actuator devices.
const (
	ActuatorCommandOn      = "ON"
	ActuatorCommandOff     = "OFF"
	ActuatorCommandOnPulse = "ON-PULSE"
	SensorCommandRead      = "READ"
)

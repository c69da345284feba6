package domain

import "context"

// ─── Store (component A) ────────────────────────────────────────────────────
// Store is the persistence port. internal/infra/sqlite implements it;
// internal/registry depends only on this interface so its business rules
// stay testable against an in-memory fake.
type Store interface {
	// Sensors
	InsertSensor(ctx context.Context, kind SensorKind, ip string, port uint16, name string) (*Sensor, error)
	FindSensorByKindAndIP(ctx context.Context, kind SensorKind, ip string) (*Sensor, error)
	GetSensor(ctx context.Context, id int64) (*Sensor, error)
	ListSensors(ctx context.Context) ([]Sensor, error)
	RenameSensor(ctx context.Context, id int64, name string) (*Sensor, error)
	SetSensorOnline(ctx context.Context, id int64, online bool) error
	DeleteSensor(ctx context.Context, id int64) error

	// Sensor reads
	InsertSensorRead(ctx context.Context, sensorID int64, value string) (*SensorRead, error)
	DeleteSensorReadsBySensor(ctx context.Context, sensorID int64) error
	ListLastReadingPerSensor(ctx context.Context) ([]SensorRead, error)
	ReadingsInWindow(ctx context.Context, sensorID int64, from, to string) ([]SensorRead, error)
	DeleteReadsOlderThan(ctx context.Context, cutoff string) (int64, error)

	// Actuators
	InsertActuator(ctx context.Context, ip string, port uint16, pulse bool, name string) (*Actuator, error)
	FindActuatorByIPPortPulse(ctx context.Context, ip string, port uint16, pulse bool) (*Actuator, error)
	GetActuator(ctx context.Context, id int64) (*Actuator, error)
	ListActuators(ctx context.Context) ([]Actuator, error)
	RenameActuator(ctx context.Context, id int64, name string) (*Actuator, error)
	SetActuatorState(ctx context.Context, id int64, state bool) (*Actuator, error)
	SetActuatorOnline(ctx context.Context, id int64, online bool) error
	DeleteActuator(ctx context.Context, id int64) error

	// Scripts
	InsertScript(ctx context.Context, title, code string, schedule *string) (*Script, error)
	GetScript(ctx context.Context, id int64) (*Script, error)
	ListScripts(ctx context.Context) ([]Script, error)
	UpdateScript(ctx context.Context, id int64, title, code string, schedule *string) (*Script, error)
	SetScriptSchedule(ctx context.Context, id int64, schedule *string) (*Script, error)
	SetScriptStatus(ctx context.Context, id int64, status ScriptStatus) error
	DeleteScript(ctx context.Context, id int64) error

	Ping(ctx context.Context) error
	Close() error
}

// ─── CoAP client (used by components C, D, E, G) ────────────────────────────

// CoAPClient abstracts outbound CoAP requests to field devices, so every
// component that round-trips to a device depends on an interface rather
// than a transport-specific library.
type CoAPClient interface {
	Get(ctx context.Context, ip string, port uint16) (string, error)
	Post(ctx context.Context, ip string, port uint16, body string) (string, error)
}

// ─── Event publisher (used by components C, D, E, G) ────────────────────────

// EventPublisher fans a named event out to every connected dashboard
// client. internal/bus implements this using a broadcast-including-sender
// primitive, satisfying spec §4.D's double-delivery requirement with a
// single call.
type EventPublisher interface {
	Publish(event string, payload any)
	// PublishTo sends an event to a single requesting connection only,
	// used by get-sensor-readings and similar request/reply events.
	PublishTo(connID string, event string, payload any)
}

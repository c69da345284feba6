package bus

import (
	"context"

	"github.com/neriamosgionata/homesoil/internal/domain"
)

// RegistryPort is the subset of internal/registry.Registry the bus
// drives. Declared here (rather than depending on the concrete type)
// keeps this package testable against a fake.
type RegistryPort interface {
	ListSensors(ctx context.Context) ([]domain.Sensor, error)
	ListActuators(ctx context.Context) ([]domain.Actuator, error)
	ListLastReadingPerSensor(ctx context.Context) ([]domain.SensorRead, error)
	ReadingsInWindow(ctx context.Context, sensorID int64, from, to string) ([]domain.SensorRead, error)

	RenameSensor(ctx context.Context, id int64, name string) (*domain.Sensor, error)
	UnregisterSensor(ctx context.Context, id int64) error
	RenameActuator(ctx context.Context, id int64, name string) (*domain.Actuator, error)
	UnregisterActuator(ctx context.Context, id int64) error
	SetActuatorState(ctx context.Context, id int64, state bool) (*domain.Actuator, error)
	GetActuator(ctx context.Context, id int64) (*domain.Actuator, error)

	ListScripts(ctx context.Context) ([]domain.Script, error)
	GetScript(ctx context.Context, id int64) (*domain.Script, error)
	SaveScript(ctx context.Context, req domain.SaveScriptRequest) (*domain.Script, error)
	DeleteScript(ctx context.Context, id int64) error
	SetScriptSchedule(ctx context.Context, id int64, schedule *string) (*domain.Script, error)
}

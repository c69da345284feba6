// Package registry implements HomeSoil's Device Registry (component B):
// the business rules layered over the Store port for sensor/actuator
// lifecycle and telemetry ingestion. Registry owns the uniqueness and
// cascade invariants from the data model; everything above it (the CoAP
// router, the dashboard bus, the DSL engine, the prober) talks to devices
// only through these methods.
package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/neriamosgionata/homesoil/internal/domain"
	"github.com/neriamosgionata/homesoil/internal/metrics"
)

// readingRetention is how long a SensorRead survives before the
// Retention Sweeper reclaims it.
const readingRetention = 30 * 24 * time.Hour

// Registry wraps a Store with the invariants spec §4.B describes.
type Registry struct {
	store domain.Store
	log   *logrus.Entry
}

func New(store domain.Store) *Registry {
	return &Registry{store: store, log: logrus.WithField("component", "registry")}
}

// RegisterSensor returns the existing row for (kind, ip_address) if one
// exists, otherwise inserts a new sensor with a defaulted name.
func (r *Registry) RegisterSensor(ctx context.Context, req domain.RegisterSensorRequest) (*domain.Sensor, error) {
	kind := domain.NormalizeSensorKind(req.SensorType)

	existing, err := r.store.FindSensorByKindAndIP(ctx, kind, req.IPAddress)
	if err != nil {
		return nil, fmt.Errorf("register sensor: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	s, err := r.store.InsertSensor(ctx, kind, req.IPAddress, req.Port, domain.DefaultSensorName(kind))
	if err != nil {
		return nil, fmt.Errorf("register sensor: %w", err)
	}
	r.log.WithFields(logrus.Fields{"sensor_id": s.ID, "kind": kind}).Info("sensor registered")
	metrics.SensorsRegistered.Inc()
	return s, nil
}

// UnregisterSensor cascades the sensor's reads before deleting it.
func (r *Registry) UnregisterSensor(ctx context.Context, id int64) error {
	if _, err := r.store.GetSensor(ctx, id); err != nil {
		return fmt.Errorf("unregister sensor: %w", err)
	}
	if err := r.store.DeleteSensorReadsBySensor(ctx, id); err != nil {
		return fmt.Errorf("unregister sensor: %w", err)
	}
	if err := r.store.DeleteSensor(ctx, id); err != nil {
		return fmt.Errorf("unregister sensor: %w", err)
	}
	metrics.SensorsRegistered.Dec()
	return nil
}

// RenameSensor updates a sensor's display label.
func (r *Registry) RenameSensor(ctx context.Context, id int64, name string) (*domain.Sensor, error) {
	s, err := r.store.RenameSensor(ctx, id, name)
	if err != nil {
		return nil, fmt.Errorf("rename sensor: %w", err)
	}
	return s, nil
}

// IngestReading requires the sensor to already exist and appends a
// telemetry sample. A successful ingest implies the sensor is reachable,
// so it is also marked online — the Prober will otherwise take up to 5s
// to notice.
func (r *Registry) IngestReading(ctx context.Context, req domain.IngestReadingRequest) (*domain.SensorRead, error) {
	if _, err := r.store.GetSensor(ctx, req.SensorID); err != nil {
		return nil, fmt.Errorf("ingest reading: %w", err)
	}
	read, err := r.store.InsertSensorRead(ctx, req.SensorID, req.SensorValue)
	if err != nil {
		return nil, fmt.Errorf("ingest reading: %w", err)
	}
	metrics.ReadingsIngested.Inc()
	if err := r.store.SetSensorOnline(ctx, req.SensorID, true); err != nil {
		r.log.WithError(err).WithField("sensor_id", req.SensorID).Warn("failed to mark sensor online after ingest")
	}
	return read, nil
}

// RegisterActuator returns the existing row for (ip, port, pulse) if one
// exists, otherwise inserts a new actuator named "Actuator".
func (r *Registry) RegisterActuator(ctx context.Context, req domain.RegisterActuatorRequest) (*domain.Actuator, error) {
	existing, err := r.store.FindActuatorByIPPortPulse(ctx, req.IPAddress, req.Port, req.Pulse)
	if err != nil {
		return nil, fmt.Errorf("register actuator: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	a, err := r.store.InsertActuator(ctx, req.IPAddress, req.Port, req.Pulse, "Actuator")
	if err != nil {
		return nil, fmt.Errorf("register actuator: %w", err)
	}
	r.log.WithField("actuator_id", a.ID).Info("actuator registered")
	metrics.ActuatorsRegistered.Inc()
	return a, nil
}

// UnregisterActuator deletes an actuator row.
func (r *Registry) UnregisterActuator(ctx context.Context, id int64) error {
	if err := r.store.DeleteActuator(ctx, id); err != nil {
		return fmt.Errorf("unregister actuator: %w", err)
	}
	metrics.ActuatorsRegistered.Dec()
	return nil
}

// RenameActuator updates an actuator's display label.
func (r *Registry) RenameActuator(ctx context.Context, id int64, name string) (*domain.Actuator, error) {
	a, err := r.store.RenameActuator(ctx, id, name)
	if err != nil {
		return nil, fmt.Errorf("rename actuator: %w", err)
	}
	return a, nil
}

// SetActuatorState persists the commanded ON/OFF state.
func (r *Registry) SetActuatorState(ctx context.Context, id int64, state bool) (*domain.Actuator, error) {
	a, err := r.store.SetActuatorState(ctx, id, state)
	if err != nil {
		return nil, fmt.Errorf("set actuator state: %w", err)
	}
	return a, nil
}

// ListSensors returns every registered sensor.
func (r *Registry) ListSensors(ctx context.Context) ([]domain.Sensor, error) {
	s, err := r.store.ListSensors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sensors: %w", err)
	}
	return s, nil
}

// ListActuators returns every registered actuator.
func (r *Registry) ListActuators(ctx context.Context) ([]domain.Actuator, error) {
	a, err := r.store.ListActuators(ctx)
	if err != nil {
		return nil, fmt.Errorf("list actuators: %w", err)
	}
	return a, nil
}

// ListLastReadingPerSensor returns each sensor's most recent reading.
func (r *Registry) ListLastReadingPerSensor(ctx context.Context) ([]domain.SensorRead, error) {
	reads, err := r.store.ListLastReadingPerSensor(ctx)
	if err != nil {
		return nil, fmt.Errorf("list last readings: %w", err)
	}
	return reads, nil
}

// ReadingsInWindow returns up to 50 reads for sensorID bounded by
// [from, to], newest first.
func (r *Registry) ReadingsInWindow(ctx context.Context, sensorID int64, from, to string) ([]domain.SensorRead, error) {
	reads, err := r.store.ReadingsInWindow(ctx, sensorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("readings in window: %w", err)
	}
	return reads, nil
}

// GCOldReadings deletes every SensorRead older than the retention
// horizon, returning the number of rows removed.
func (r *Registry) GCOldReadings(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-readingRetention).Format("2006-01-02 15:04:05")
	n, err := r.store.DeleteReadsOlderThan(ctx, cutoff)
	if err != nil {
		metrics.ReadingsPurged.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("gc old readings: %w", err)
	}
	metrics.ReadingsPurged.WithLabelValues("ok").Add(float64(n))
	return n, nil
}

// GetSensor fetches a single sensor, used by DSL READ.
func (r *Registry) GetSensor(ctx context.Context, id int64) (*domain.Sensor, error) {
	s, err := r.store.GetSensor(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get sensor: %w", err)
	}
	return s, nil
}

// GetActuator fetches a single actuator.
func (r *Registry) GetActuator(ctx context.Context, id int64) (*domain.Actuator, error) {
	a, err := r.store.GetActuator(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get actuator: %w", err)
	}
	return a, nil
}

// SetSensorOnline updates a sensor's liveness flag, called by the Prober.
func (r *Registry) SetSensorOnline(ctx context.Context, id int64, online bool) error {
	if err := r.store.SetSensorOnline(ctx, id, online); err != nil {
		return fmt.Errorf("set sensor online: %w", err)
	}
	return nil
}

// SetActuatorOnline updates an actuator's liveness flag, called by the
// Prober.
func (r *Registry) SetActuatorOnline(ctx context.Context, id int64, online bool) error {
	if err := r.store.SetActuatorOnline(ctx, id, online); err != nil {
		return fmt.Errorf("set actuator online: %w", err)
	}
	return nil
}

// ─── Scripts ─────────────────────────────────────────────────────────────

// SaveScript creates a script when req.ID is zero, otherwise updates the
// existing one in place.
func (r *Registry) SaveScript(ctx context.Context, req domain.SaveScriptRequest) (*domain.Script, error) {
	if req.ID == 0 {
		s, err := r.store.InsertScript(ctx, req.Title, req.Code, req.Schedule)
		if err != nil {
			return nil, fmt.Errorf("save script: %w", err)
		}
		return s, nil
	}
	s, err := r.store.UpdateScript(ctx, req.ID, req.Title, req.Code, req.Schedule)
	if err != nil {
		return nil, fmt.Errorf("save script: %w", err)
	}
	return s, nil
}

// DeleteScript removes a saved script.
func (r *Registry) DeleteScript(ctx context.Context, id int64) error {
	if err := r.store.DeleteScript(ctx, id); err != nil {
		return fmt.Errorf("delete script: %w", err)
	}
	return nil
}

// ListScripts returns every saved script.
func (r *Registry) ListScripts(ctx context.Context) ([]domain.Script, error) {
	s, err := r.store.ListScripts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list scripts: %w", err)
	}
	return s, nil
}

// GetScript fetches a single script by id.
func (r *Registry) GetScript(ctx context.Context, id int64) (*domain.Script, error) {
	s, err := r.store.GetScript(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get script: %w", err)
	}
	return s, nil
}

// SetScriptSchedule sets or clears a script's schedule string.
func (r *Registry) SetScriptSchedule(ctx context.Context, id int64, schedule *string) (*domain.Script, error) {
	s, err := r.store.SetScriptSchedule(ctx, id, schedule)
	if err != nil {
		return nil, fmt.Errorf("set script schedule: %w", err)
	}
	return s, nil
}

// SetScriptStatus records the DSL runner's status transition.
func (r *Registry) SetScriptStatus(ctx context.Context, id int64, status domain.ScriptStatus) error {
	if err := r.store.SetScriptStatus(ctx, id, status); err != nil {
		return fmt.Errorf("set script status: %w", err)
	}
	return nil
}

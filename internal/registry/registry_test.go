package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/neriamosgionata/homesoil/internal/domain"
)

// fakeStore is an in-memory domain.Store used to exercise Registry's
// invariants without touching SQLite.
type fakeStore struct {
	sensors      map[int64]*domain.Sensor
	reads        map[int64][]domain.SensorRead
	actuators    map[int64]*domain.Actuator
	scripts      map[int64]*domain.Script
	nextSensorID int64
	nextReadID   int64
	nextActID    int64
	nextScriptID int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sensors:   map[int64]*domain.Sensor{},
		reads:     map[int64][]domain.SensorRead{},
		actuators: map[int64]*domain.Actuator{},
		scripts:   map[int64]*domain.Script{},
	}
}

func (f *fakeStore) InsertSensor(_ context.Context, kind domain.SensorKind, ip string, port uint16, name string) (*domain.Sensor, error) {
	f.nextSensorID++
	s := &domain.Sensor{ID: f.nextSensorID, Kind: kind, IPAddress: ip, Port: port, Name: name}
	f.sensors[s.ID] = s
	return s, nil
}

func (f *fakeStore) FindSensorByKindAndIP(_ context.Context, kind domain.SensorKind, ip string) (*domain.Sensor, error) {
	for _, s := range f.sensors {
		if s.Kind == kind && s.IPAddress == ip {
			return s, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetSensor(_ context.Context, id int64) (*domain.Sensor, error) {
	s, ok := f.sensors[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s, nil
}

func (f *fakeStore) ListSensors(_ context.Context) ([]domain.Sensor, error) {
	var out []domain.Sensor
	for _, s := range f.sensors {
		out = append(out, *s)
	}
	return out, nil
}

func (f *fakeStore) RenameSensor(_ context.Context, id int64, name string) (*domain.Sensor, error) {
	s, ok := f.sensors[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	s.Name = name
	return s, nil
}

func (f *fakeStore) SetSensorOnline(_ context.Context, id int64, online bool) error {
	s, ok := f.sensors[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.Online = online
	return nil
}

func (f *fakeStore) DeleteSensor(_ context.Context, id int64) error {
	if _, ok := f.sensors[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.sensors, id)
	return nil
}

func (f *fakeStore) InsertSensorRead(_ context.Context, sensorID int64, value string) (*domain.SensorRead, error) {
	f.nextReadID++
	r := domain.SensorRead{ID: f.nextReadID, SensorID: sensorID, Value: value}
	f.reads[sensorID] = append(f.reads[sensorID], r)
	return &r, nil
}

func (f *fakeStore) DeleteSensorReadsBySensor(_ context.Context, sensorID int64) error {
	delete(f.reads, sensorID)
	return nil
}

func (f *fakeStore) ListLastReadingPerSensor(_ context.Context) ([]domain.SensorRead, error) {
	var out []domain.SensorRead
	for _, rs := range f.reads {
		if len(rs) > 0 {
			out = append(out, rs[len(rs)-1])
		}
	}
	return out, nil
}

func (f *fakeStore) ReadingsInWindow(_ context.Context, sensorID int64, _, _ string) ([]domain.SensorRead, error) {
	return f.reads[sensorID], nil
}

func (f *fakeStore) DeleteReadsOlderThan(_ context.Context, _ string) (int64, error) {
	var n int64
	for id := range f.reads {
		n += int64(len(f.reads[id]))
		delete(f.reads, id)
	}
	return n, nil
}

func (f *fakeStore) InsertActuator(_ context.Context, ip string, port uint16, pulse bool, name string) (*domain.Actuator, error) {
	f.nextActID++
	a := &domain.Actuator{ID: f.nextActID, IPAddress: ip, Port: port, Pulse: pulse, Name: name}
	f.actuators[a.ID] = a
	return a, nil
}

func (f *fakeStore) FindActuatorByIPPortPulse(_ context.Context, ip string, port uint16, pulse bool) (*domain.Actuator, error) {
	for _, a := range f.actuators {
		if a.IPAddress == ip && a.Port == port && a.Pulse == pulse {
			return a, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetActuator(_ context.Context, id int64) (*domain.Actuator, error) {
	a, ok := f.actuators[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return a, nil
}

func (f *fakeStore) ListActuators(_ context.Context) ([]domain.Actuator, error) {
	var out []domain.Actuator
	for _, a := range f.actuators {
		out = append(out, *a)
	}
	return out, nil
}

func (f *fakeStore) RenameActuator(_ context.Context, id int64, name string) (*domain.Actuator, error) {
	a, ok := f.actuators[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	a.Name = name
	return a, nil
}

func (f *fakeStore) SetActuatorState(_ context.Context, id int64, state bool) (*domain.Actuator, error) {
	a, ok := f.actuators[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	a.State = state
	return a, nil
}

func (f *fakeStore) SetActuatorOnline(_ context.Context, id int64, online bool) error {
	a, ok := f.actuators[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.Online = online
	return nil
}

func (f *fakeStore) DeleteActuator(_ context.Context, id int64) error {
	if _, ok := f.actuators[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.actuators, id)
	return nil
}

func (f *fakeStore) InsertScript(_ context.Context, title, code string, schedule *string) (*domain.Script, error) {
	f.nextScriptID++
	s := &domain.Script{ID: f.nextScriptID, Title: title, Code: code, Schedule: schedule}
	f.scripts[s.ID] = s
	return s, nil
}

func (f *fakeStore) GetScript(_ context.Context, id int64) (*domain.Script, error) {
	s, ok := f.scripts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s, nil
}

func (f *fakeStore) ListScripts(_ context.Context) ([]domain.Script, error) {
	var out []domain.Script
	for _, s := range f.scripts {
		out = append(out, *s)
	}
	return out, nil
}

func (f *fakeStore) UpdateScript(_ context.Context, id int64, title, code string, schedule *string) (*domain.Script, error) {
	s, ok := f.scripts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	s.Title, s.Code, s.Schedule = title, code, schedule
	return s, nil
}

func (f *fakeStore) SetScriptSchedule(_ context.Context, id int64, schedule *string) (*domain.Script, error) {
	s, ok := f.scripts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	s.Schedule = schedule
	return s, nil
}

func (f *fakeStore) SetScriptStatus(_ context.Context, id int64, status domain.ScriptStatus) error {
	s, ok := f.scripts[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.Status = status
	return nil
}

func (f *fakeStore) DeleteScript(_ context.Context, id int64) error {
	if _, ok := f.scripts[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.scripts, id)
	return nil
}

func (f *fakeStore) Ping(context.Context) error { return nil }
func (f *fakeStore) Close() error               { return nil }

func TestRegisterSensorIsIdempotent(t *testing.T) {
	store := newFakeStore()
	reg := New(store)
	ctx := context.Background()

	req := domain.RegisterSensorRequest{SensorType: "temperature", IPAddress: "10.0.0.5", Port: 5683}

	s1, err := reg.RegisterSensor(ctx, req)
	if err != nil {
		t.Fatalf("RegisterSensor: %v", err)
	}
	s2, err := reg.RegisterSensor(ctx, req)
	if err != nil {
		t.Fatalf("RegisterSensor (again): %v", err)
	}
	if s1.ID != s2.ID {
		t.Fatalf("expected same id on repeat registration, got %d and %d", s1.ID, s2.ID)
	}
	if len(store.sensors) != 1 {
		t.Fatalf("expected exactly one sensor row, got %d", len(store.sensors))
	}
	if s1.Name != "Temperature sensor" {
		t.Fatalf("expected default name, got %q", s1.Name)
	}
}

func TestUnregisterSensorCascadesReads(t *testing.T) {
	store := newFakeStore()
	reg := New(store)
	ctx := context.Background()

	s, err := reg.RegisterSensor(ctx, domain.RegisterSensorRequest{SensorType: "humidity", IPAddress: "10.0.0.6", Port: 5683})
	if err != nil {
		t.Fatalf("RegisterSensor: %v", err)
	}
	if _, err := reg.IngestReading(ctx, domain.IngestReadingRequest{SensorID: s.ID, SensorValue: "55"}); err != nil {
		t.Fatalf("IngestReading: %v", err)
	}

	if err := reg.UnregisterSensor(ctx, s.ID); err != nil {
		t.Fatalf("UnregisterSensor: %v", err)
	}
	if len(store.reads[s.ID]) != 0 {
		t.Fatalf("expected reads to be cascaded away, found %d", len(store.reads[s.ID]))
	}
	if _, err := reg.GetSensor(ctx, s.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after unregister, got %v", err)
	}
}

func TestIngestReadingRequiresExistingSensor(t *testing.T) {
	reg := New(newFakeStore())
	_, err := reg.IngestReading(context.Background(), domain.IngestReadingRequest{SensorID: 42, SensorValue: "1"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown sensor, got %v", err)
	}
}

func TestIngestReadingMarksSensorOnline(t *testing.T) {
	store := newFakeStore()
	reg := New(store)
	ctx := context.Background()

	s, err := reg.RegisterSensor(ctx, domain.RegisterSensorRequest{SensorType: "current", IPAddress: "10.0.0.8", Port: 5683})
	if err != nil {
		t.Fatalf("RegisterSensor: %v", err)
	}
	if s.Online {
		t.Fatalf("expected new sensor offline by default")
	}
	if _, err := reg.IngestReading(ctx, domain.IngestReadingRequest{SensorID: s.ID, SensorValue: "4.2"}); err != nil {
		t.Fatalf("IngestReading: %v", err)
	}
	got, err := reg.GetSensor(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetSensor: %v", err)
	}
	if !got.Online {
		t.Fatalf("expected sensor to be marked online after a successful ingest")
	}
}

func TestRegisterActuatorDedupsOnIPPortPulse(t *testing.T) {
	store := newFakeStore()
	reg := New(store)
	ctx := context.Background()

	req := domain.RegisterActuatorRequest{IPAddress: "10.0.0.9", Port: 5683, Pulse: false}
	a1, err := reg.RegisterActuator(ctx, req)
	if err != nil {
		t.Fatalf("RegisterActuator: %v", err)
	}
	a2, err := reg.RegisterActuator(ctx, req)
	if err != nil {
		t.Fatalf("RegisterActuator (again): %v", err)
	}
	if a1.ID != a2.ID {
		t.Fatalf("expected same actuator on repeat registration, got %d and %d", a1.ID, a2.ID)
	}
	if a1.Name != "Actuator" {
		t.Fatalf("expected default actuator name, got %q", a1.Name)
	}
}

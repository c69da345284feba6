package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/plgd-dev/go-coap/v3/message"
	"github.com/plgd-dev/go-coap/v3/udp"

	"github.com/neriamosgionata/homesoil/internal/domain"
)

type fakeRegistry struct {
	sensor   *domain.Sensor
	actuator *domain.Actuator
}

func (f *fakeRegistry) RegisterSensor(context.Context, domain.RegisterSensorRequest) (*domain.Sensor, error) {
	return f.sensor, nil
}
func (f *fakeRegistry) UnregisterSensor(context.Context, int64) error { return nil }
func (f *fakeRegistry) RenameSensor(context.Context, int64, string) (*domain.Sensor, error) {
	return f.sensor, nil
}
func (f *fakeRegistry) IngestReading(context.Context, domain.IngestReadingRequest) (*domain.SensorRead, error) {
	return &domain.SensorRead{ID: 1}, nil
}
func (f *fakeRegistry) RegisterActuator(context.Context, domain.RegisterActuatorRequest) (*domain.Actuator, error) {
	return f.actuator, nil
}
func (f *fakeRegistry) UnregisterActuator(context.Context, int64) error { return nil }
func (f *fakeRegistry) RenameActuator(context.Context, int64, string) (*domain.Actuator, error) {
	return f.actuator, nil
}
func (f *fakeRegistry) SetActuatorState(context.Context, int64, bool) (*domain.Actuator, error) {
	return f.actuator, nil
}

type fakeBus struct {
	events []string
}

func (f *fakeBus) Publish(event string, _ any)                  { f.events = append(f.events, event) }
func (f *fakeBus) PublishTo(_ string, event string, _ any)       { f.events = append(f.events, event) }

func startTestRouter(t *testing.T, reg registry, bus domain.EventPublisher, port int) {
	t.Helper()
	r := New(reg, bus, "127.0.0.1", port)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	time.Sleep(100 * time.Millisecond)
}

func TestSensorRegisterRoundTrip(t *testing.T) {
	reg := &fakeRegistry{sensor: &domain.Sensor{ID: 1, Name: "Temperature sensor"}}
	bus := &fakeBus{}
	const port = 56831
	startTestRouter(t, reg, bus, port)

	conn, err := udp.Dial("127.0.0.1:56831")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	payload, _ := json.Marshal(domain.RegisterSensorRequest{SensorType: "temperature", IPAddress: "10.0.0.5", Port: 5683})
	resp, err := conn.Post(ctx, "/sensor/register", message.AppJSON, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	body, err := resp.ReadBody()
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(body) != "1" {
		t.Fatalf("expected body %q, got %q", "1", string(body))
	}

	found := false
	for _, e := range bus.events {
		if e == "sensor-register" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected sensor-register event to be published, got %v", bus.events)
	}
}

func TestMismatchedMethodYieldsKO(t *testing.T) {
	reg := &fakeRegistry{sensor: &domain.Sensor{ID: 1}}
	bus := &fakeBus{}
	const port = 56832
	startTestRouter(t, reg, bus, port)

	conn, err := udp.Dial("127.0.0.1:56832")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// /sensor/register only accepts POST; issue GET instead.
	resp, err := conn.Get(ctx, "/sensor/register")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, err := resp.ReadBody()
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(body) != "KO" {
		t.Fatalf("expected KO on method mismatch, got %q", string(body))
	}
}

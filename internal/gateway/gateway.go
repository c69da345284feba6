// Package gateway implements HomeSoil's CoAP Endpoint Router (component
// C): a CoAP server that devices push registrations and telemetry into.
// Every handler translates a wire request into one Registry call and, on
// success, fans a bus event out through the dashboard event publisher.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"

	"github.com/google/uuid"
	"github.com/plgd-dev/go-coap/v3/message"
	"github.com/plgd-dev/go-coap/v3/message/codes"
	"github.com/plgd-dev/go-coap/v3/mux"
	"github.com/plgd-dev/go-coap/v3/net/blockwise"
	"github.com/plgd-dev/go-coap/v3/udp"
	"github.com/sirupsen/logrus"

	"github.com/neriamosgionata/homesoil/internal/domain"
	"github.com/neriamosgionata/homesoil/internal/metrics"
)

// registry is the subset of internal/registry.Registry the router needs.
// Declared locally so gateway depends on behavior, not the concrete type.
type registry interface {
	RegisterSensor(ctx context.Context, req domain.RegisterSensorRequest) (*domain.Sensor, error)
	UnregisterSensor(ctx context.Context, id int64) error
	RenameSensor(ctx context.Context, id int64, name string) (*domain.Sensor, error)
	IngestReading(ctx context.Context, req domain.IngestReadingRequest) (*domain.SensorRead, error)
	RegisterActuator(ctx context.Context, req domain.RegisterActuatorRequest) (*domain.Actuator, error)
	UnregisterActuator(ctx context.Context, id int64) error
	RenameActuator(ctx context.Context, id int64, name string) (*domain.Actuator, error)
	SetActuatorState(ctx context.Context, id int64, state bool) (*domain.Actuator, error)
}

// Router owns the CoAP listener and dispatches device requests to the
// Device Registry, publishing a dashboard event on every success.
type Router struct {
	reg  registry
	bus  domain.EventPublisher
	log  *logrus.Entry
	addr string
}

func New(reg registry, bus domain.EventPublisher, bindHost string, port int) *Router {
	return &Router{
		reg:  reg,
		bus:  bus,
		log:  logrus.WithField("component", "gateway"),
		addr: net.JoinHostPort(bindHost, strconv.Itoa(port)),
	}
}

// Serve blocks, running the CoAP server until ctx is cancelled.
func (r *Router) Serve(ctx context.Context) error {
	router := mux.NewRouter()
	router.Use(recoverMiddleware(r.log))

	_ = router.Handle("/sensor/register", mux.HandlerFunc(r.handleSensorRegister))
	_ = router.Handle("/sensor/unregister", mux.HandlerFunc(r.handleSensorUnregister))
	_ = router.Handle("/sensor", mux.HandlerFunc(r.handleSensorIngest))
	_ = router.Handle("/sensor/name", mux.HandlerFunc(r.handleSensorRename))
	_ = router.Handle("/actuator/register", mux.HandlerFunc(r.handleActuatorRegister))
	_ = router.Handle("/actuator/unregister", mux.HandlerFunc(r.handleActuatorUnregister))
	_ = router.Handle("/actuator/name", mux.HandlerFunc(r.handleActuatorRename))
	_ = router.Handle("/actuator/state", mux.HandlerFunc(r.handleActuatorState))

	s := udp.NewServer(
		udp.WithMux(router),
		udp.WithBlockwise(true, blockwise.SZX1024, dialTimeout),
	)

	l, err := net.ListenPacket("udp", r.addr)
	if err != nil {
		return fmt.Errorf("listen coap %s: %w", r.addr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Serve(l)
	}()

	r.log.WithField("addr", r.addr).Info("coap router listening")

	select {
	case <-ctx.Done():
		s.Stop()
		<-errCh
		return nil
	case err := <-errCh:
		return fmt.Errorf("coap server stopped: %w", err)
	}
}

// handleSensorRegister answers POST /sensor/register with the decimal id
// of the (existing or newly created) sensor, and publishes sensor-register.
func (r *Router) handleSensorRegister(w mux.ResponseWriter, msg *mux.Message) {
	var req domain.RegisterSensorRequest
	if !r.requireMethod(w, msg, codes.POST) || !r.decodeBody(w, msg, &req) {
		return
	}

	s, err := r.reg.RegisterSensor(msg.Context(), req)
	if err != nil {
		r.fail(w, "register sensor", err)
		return
	}

	r.bus.Publish("sensor-register", s)
	r.ok(w, "register sensor", []byte(strconv.FormatInt(s.ID, 10)))
}

// handleSensorUnregister answers POST /sensor/unregister with the
// decimal id removed, and publishes sensor-unregister.
func (r *Router) handleSensorUnregister(w mux.ResponseWriter, msg *mux.Message) {
	var req struct {
		ID int64 `json:"id"`
	}
	if !r.requireMethod(w, msg, codes.POST) || !r.decodeBody(w, msg, &req) {
		return
	}

	if err := r.reg.UnregisterSensor(msg.Context(), req.ID); err != nil {
		r.fail(w, "unregister sensor", err)
		return
	}

	r.bus.Publish("sensor-unregister", map[string]any{"id": req.ID})
	r.ok(w, "unregister sensor", []byte(strconv.FormatInt(req.ID, 10)))
}

// handleSensorIngest answers POST /sensor with "OK", and publishes
// sensor-read.
func (r *Router) handleSensorIngest(w mux.ResponseWriter, msg *mux.Message) {
	var req domain.IngestReadingRequest
	if !r.requireMethod(w, msg, codes.POST) || !r.decodeBody(w, msg, &req) {
		return
	}

	read, err := r.reg.IngestReading(msg.Context(), req)
	if err != nil {
		r.fail(w, "ingest reading", err)
		return
	}

	r.bus.Publish("sensor-read", read)
	r.ok(w, "ingest reading", []byte("OK"))
}

// handleSensorRename answers PUT /sensor/name with "OK", and publishes
// sensor-name-change.
func (r *Router) handleSensorRename(w mux.ResponseWriter, msg *mux.Message) {
	var req domain.RenameSensorRequest
	if !r.requireMethod(w, msg, codes.PUT) || !r.decodeBody(w, msg, &req) {
		return
	}

	s, err := r.reg.RenameSensor(msg.Context(), req.ID, req.Name)
	if err != nil {
		r.fail(w, "rename sensor", err)
		return
	}

	r.bus.Publish("sensor-name-change", s)
	r.ok(w, "rename sensor", []byte("OK"))
}

// handleActuatorRegister answers POST /actuator/register with
// {"id":…,"state":…}, and publishes actuator-register.
func (r *Router) handleActuatorRegister(w mux.ResponseWriter, msg *mux.Message) {
	var req domain.RegisterActuatorRequest
	if !r.requireMethod(w, msg, codes.POST) || !r.decodeBody(w, msg, &req) {
		return
	}

	a, err := r.reg.RegisterActuator(msg.Context(), req)
	if err != nil {
		r.fail(w, "register actuator", err)
		return
	}

	r.bus.Publish("actuator-register", a)
	body, _ := json.Marshal(map[string]any{"id": a.ID, "state": a.State})
	r.ok(w, "register actuator", body)
}

// handleActuatorUnregister answers POST /actuator/unregister with the
// decimal id removed, and publishes actuator-unregister.
func (r *Router) handleActuatorUnregister(w mux.ResponseWriter, msg *mux.Message) {
	var req struct {
		ID int64 `json:"id"`
	}
	if !r.requireMethod(w, msg, codes.POST) || !r.decodeBody(w, msg, &req) {
		return
	}

	if err := r.reg.UnregisterActuator(msg.Context(), req.ID); err != nil {
		r.fail(w, "unregister actuator", err)
		return
	}

	r.bus.Publish("actuator-unregister", map[string]any{"id": req.ID})
	r.ok(w, "unregister actuator", []byte(strconv.FormatInt(req.ID, 10)))
}

// handleActuatorRename answers PUT /actuator/name with "OK", and
// publishes actuator-name-change.
func (r *Router) handleActuatorRename(w mux.ResponseWriter, msg *mux.Message) {
	var req domain.RenameActuatorRequest
	if !r.requireMethod(w, msg, codes.PUT) || !r.decodeBody(w, msg, &req) {
		return
	}

	a, err := r.reg.RenameActuator(msg.Context(), req.ID, req.Name)
	if err != nil {
		r.fail(w, "rename actuator", err)
		return
	}

	r.bus.Publish("actuator-name-change", a)
	r.ok(w, "rename actuator", []byte("OK"))
}

// handleActuatorState answers PUT /actuator/state with "OK", and
// publishes actuator-state-change.
func (r *Router) handleActuatorState(w mux.ResponseWriter, msg *mux.Message) {
	var req domain.SetActuatorStateRequest
	if !r.requireMethod(w, msg, codes.PUT) || !r.decodeBody(w, msg, &req) {
		return
	}

	a, err := r.reg.SetActuatorState(msg.Context(), req.ID, req.State)
	if err != nil {
		r.fail(w, "set actuator state", err)
		return
	}

	r.bus.Publish("actuator-state-change", a)
	r.ok(w, "set actuator state", []byte("OK"))
}

// ─── Helpers ──────────────────────────────────────────────────────────────

// requireMethod enforces spec §4.C's strict method matrix: a mismatched
// method yields "KO" without ever reaching the registry.
func (r *Router) requireMethod(w mux.ResponseWriter, msg *mux.Message, want codes.Code) bool {
	if msg.Code() != want {
		r.ko(w)
		return false
	}
	return true
}

func (r *Router) decodeBody(w mux.ResponseWriter, msg *mux.Message, dst any) bool {
	body, err := msg.ReadBody()
	if err != nil {
		r.ko(w)
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		r.ko(w)
		return false
	}
	return true
}

func (r *Router) fail(w mux.ResponseWriter, op string, err error) {
	reqID := uuid.New().String()[:8]
	r.log.WithError(err).WithField("request_id", reqID).Warn(op + " failed")
	metrics.GatewayRequests.WithLabelValues(op, "error").Inc()
	r.ko(w)
}

func (r *Router) ok(w mux.ResponseWriter, route string, body []byte) {
	metrics.GatewayRequests.WithLabelValues(route, "ok").Inc()
	if err := w.SetResponse(codes.Content, message.TextPlain, bytesReader(body)); err != nil {
		r.log.WithError(err).Warn("failed to write coap response")
	}
}

func (r *Router) ko(w mux.ResponseWriter) {
	if err := w.SetResponse(codes.Content, message.TextPlain, bytesReader([]byte("KO"))); err != nil {
		r.log.WithError(err).Warn("failed to write coap error response")
	}
}

// Package bus implements HomeSoil's Dashboard Event Bus (component D): a
// Socket.IO namespace that authenticates operator connections, emits a
// connect-time snapshot, broadcasts every registry mutation, and accepts
// operator commands that mutate sensors, actuators, and scripts.
package bus

import (
	"context"
	"net/http"
	"sync"

	socketio "github.com/googollee/go-socket.io"
	"github.com/sirupsen/logrus"

	"github.com/neriamosgionata/homesoil/internal/metrics"
)

// coapDialer is the subset of domain.CoAPClient the bus needs to drive
// actuator commands directly (pulse-actuator, toggle-actuator).
type coapDialer interface {
	Get(ctx context.Context, ip string, port uint16) (string, error)
	Post(ctx context.Context, ip string, port uint16, body string) (string, error)
}

// scriptRunner is implemented by internal/dsl.Runner; kept as a narrow
// interface so bus never imports the DSL package's internals.
type scriptRunner interface {
	Run(ctx context.Context, scriptID int64)
}

// Bus wraps a socketio.Server with HomeSoil's auth, snapshot, and
// operator-event handlers, and implements domain.EventPublisher.
type Bus struct {
	io         *socketio.Server
	reg        RegistryPort
	coap       coapDialer
	scripts    scriptRunner
	loginToken string
	log        *logrus.Entry

	mu    sync.RWMutex
	conns map[string]socketio.Conn
}

// New wires a Bus around a RegistryPort, a CoAP dialer for device-direct
// actuator commands, a script runner, and the shared-secret login token
// read from the LOGIN_TOKEN environment variable.
func New(reg RegistryPort, coap coapDialer, scripts scriptRunner, loginToken string) *Bus {
	b := &Bus{
		io:         socketio.NewServer(nil),
		reg:        reg,
		coap:       coap,
		scripts:    scripts,
		loginToken: loginToken,
		log:        logrus.WithField("component", "bus"),
		conns:      map[string]socketio.Conn{},
	}
	b.registerHandlers()
	return b
}

// Handler returns the http.Handler to mount at /socket.io/.
func (b *Bus) Handler() http.Handler {
	return b.io
}

// SetScriptRunner wires the DSL runner after construction, breaking the
// Bus/Runner construction cycle (Runner needs a Bus to publish status
// changes; Bus needs a runner to dispatch run-script). Must be called
// before Serve; it is not safe to call once the bus is handling events.
func (b *Bus) SetScriptRunner(scripts scriptRunner) {
	b.scripts = scripts
}

// Serve runs the Socket.IO engine's background loop until ctx is done.
func (b *Bus) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- b.io.Serve()
	}()

	select {
	case <-ctx.Done():
		return b.io.Close()
	case err := <-errCh:
		return err
	}
}

// Publish implements domain.EventPublisher using BroadcastToNamespace,
// which fans the event to every connected client including the
// originator — satisfying spec §4.D's double-delivery requirement with a
// single call, per the design note in §9.
func (b *Bus) Publish(event string, payload any) {
	metrics.BusEventsPublished.WithLabelValues(event).Inc()
	b.io.BroadcastToNamespace("/", event, payload)
}

// PublishTo emits to a single connection only, used for request/reply
// events like get-sensor-readings.
func (b *Bus) PublishTo(connID string, event string, payload any) {
	b.mu.RLock()
	conn, ok := b.conns[connID]
	b.mu.RUnlock()
	if !ok {
		return
	}
	conn.Emit(event, payload)
}

func (b *Bus) trackConn(conn socketio.Conn) {
	b.mu.Lock()
	b.conns[conn.ID()] = conn
	b.mu.Unlock()
	metrics.BusConnections.Inc()
}

func (b *Bus) untrackConn(conn socketio.Conn) {
	b.mu.Lock()
	delete(b.conns, conn.ID())
	b.mu.Unlock()
	metrics.BusConnections.Dec()
}

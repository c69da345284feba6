package bus

import (
	"context"
	"time"

	socketio "github.com/googollee/go-socket.io"

	"github.com/neriamosgionata/homesoil/internal/domain"
)

// pulseDwell is the fixed ON-then-OFF window for a momentary actuator
// pulse (spec §Glossary, "Pulse").
const pulseDwell = 2 * time.Second

type renamePayload struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type idPayload struct {
	ID int64 `json:"id"`
}

type readingsQuery struct {
	ID       int64  `json:"id"`
	FromDate string `json:"from_date"`
	ToDate   string `json:"to_date"`
}

type schedulePayload struct {
	ID       int64  `json:"id"`
	Schedule string `json:"schedule"`
}

func (b *Bus) registerHandlers() {
	b.io.OnConnect("/", b.handleConnect)
	b.io.OnDisconnect("/", func(s socketio.Conn, reason string) {
		b.untrackConn(s)
	})
	b.io.OnError("/", func(s socketio.Conn, err error) {
		b.log.WithError(err).Warn("socket.io connection error")
	})

	b.io.OnEvent("/", "get-sensor-readings", b.handleGetSensorReadings)
	b.io.OnEvent("/", "pulse-actuator", b.handlePulseActuator)
	b.io.OnEvent("/", "toggle-actuator", b.handleToggleActuator)
	b.io.OnEvent("/", "rename-sensor", b.handleRenameSensor)
	b.io.OnEvent("/", "rename-actuator", b.handleRenameActuator)
	b.io.OnEvent("/", "remove-sensor", b.handleRemoveSensor)
	b.io.OnEvent("/", "remove-actuator", b.handleRemoveActuator)
	b.io.OnEvent("/", "get-all-scripts", b.handleGetAllScripts)
	b.io.OnEvent("/", "run-script", b.handleRunScript)
	b.io.OnEvent("/", "add-script", b.handleAddScript)
	b.io.OnEvent("/", "modify-script", b.handleModifyScript)
	b.io.OnEvent("/", "remove-script", b.handleRemoveScript)
	b.io.OnEvent("/", "add-script-schedule", b.handleAddScriptSchedule)
	b.io.OnEvent("/", "remove-script-schedule", b.handleRemoveScriptSchedule)
}

// handleConnect checks the shared LOGIN_TOKEN against the connecting
// client's token query parameter. Returning a non-nil error here aborts
// the handshake before any event is delivered, satisfying spec §4.D /
// invariant 6.
func (b *Bus) handleConnect(s socketio.Conn) error {
	token := s.URL().Query().Get("token")
	if token == "" || token != b.loginToken {
		b.log.Warn("rejecting socket.io connection with invalid token")
		return domain.ErrAuth
	}

	b.trackConn(s)
	b.sendSnapshot(s)
	return nil
}

func (b *Bus) sendSnapshot(s socketio.Conn) {
	ctx := context.Background()

	sensors, err := b.reg.ListSensors(ctx)
	if err != nil {
		b.log.WithError(err).Warn("failed to load sensors for connect snapshot")
	} else {
		s.Emit("all-sensors", sensors)
	}

	reads, err := b.reg.ListLastReadingPerSensor(ctx)
	if err != nil {
		b.log.WithError(err).Warn("failed to load last readings for connect snapshot")
	} else {
		s.Emit("all-last-sensors-reads", reads)
	}

	actuators, err := b.reg.ListActuators(ctx)
	if err != nil {
		b.log.WithError(err).Warn("failed to load actuators for connect snapshot")
	} else {
		s.Emit("all-actuators", actuators)
	}
}

func (b *Bus) handleGetSensorReadings(s socketio.Conn, q readingsQuery) {
	reads, err := b.reg.ReadingsInWindow(context.Background(), q.ID, q.FromDate, q.ToDate)
	if err != nil {
		b.emitError(s, "failed to load sensor readings")
		return
	}
	b.PublishTo(s.ID(), "all-sensor-reads", reads)
}

// handlePulseActuator drives a momentary ON-then-OFF cycle directly
// against the device, per spec §4.D's pulse-actuator row. The 2s dwell
// runs in its own goroutine so it never blocks the event loop.
func (b *Bus) handlePulseActuator(s socketio.Conn, id int64) {
	go func() {
		ctx := context.Background()
		a, err := b.reg.GetActuator(ctx, id)
		if err != nil {
			b.emitError(s, "unknown actuator")
			return
		}

		reply, err := b.coap.Post(ctx, a.IPAddress, a.Port, domain.ActuatorCommandOnPulse)
		if err != nil || reply != domain.ActuatorCommandOnPulse {
			b.emitError(s, "actuator did not acknowledge pulse")
			return
		}

		if updated, err := b.reg.SetActuatorState(ctx, id, true); err == nil {
			b.Publish("actuator-state-change", updated)
		}

		time.Sleep(pulseDwell)

		if updated, err := b.reg.SetActuatorState(ctx, id, false); err == nil {
			b.Publish("actuator-state-change", updated)
		}
	}()
}

// handleToggleActuator reads the device's current state, inverts it, and
// commands the new value, persisting only on a successful round trip.
func (b *Bus) handleToggleActuator(s socketio.Conn, id int64) {
	ctx := context.Background()
	a, err := b.reg.GetActuator(ctx, id)
	if err != nil {
		b.emitError(s, "unknown actuator")
		return
	}

	current, err := b.coap.Get(ctx, a.IPAddress, a.Port)
	if err != nil {
		b.emitError(s, "actuator unreachable")
		return
	}

	next := domain.ActuatorCommandOn
	if current == domain.ActuatorCommandOn || current == domain.ActuatorCommandOnPulse {
		next = domain.ActuatorCommandOff
	}

	if _, err := b.coap.Post(ctx, a.IPAddress, a.Port, next); err != nil {
		b.emitError(s, "actuator did not acknowledge toggle")
		return
	}

	updated, err := b.reg.SetActuatorState(ctx, id, next == domain.ActuatorCommandOn)
	if err != nil {
		b.emitError(s, "failed to persist actuator state")
		return
	}
	b.Publish("actuator-state-change", updated)
}

func (b *Bus) handleRenameSensor(s socketio.Conn, p renamePayload) {
	sensor, err := b.reg.RenameSensor(context.Background(), p.ID, p.Name)
	if err != nil {
		b.emitError(s, "failed to rename sensor")
		return
	}
	b.Publish("sensor-name-change", sensor)
}

func (b *Bus) handleRenameActuator(s socketio.Conn, p renamePayload) {
	actuator, err := b.reg.RenameActuator(context.Background(), p.ID, p.Name)
	if err != nil {
		b.emitError(s, "failed to rename actuator")
		return
	}
	b.Publish("actuator-name-change", actuator)
}

func (b *Bus) handleRemoveSensor(s socketio.Conn, p idPayload) {
	if err := b.reg.UnregisterSensor(context.Background(), p.ID); err != nil {
		b.emitError(s, "failed to remove sensor")
		return
	}
	b.Publish("sensor-unregister", map[string]any{"id": p.ID})
}

func (b *Bus) handleRemoveActuator(s socketio.Conn, p idPayload) {
	if err := b.reg.UnregisterActuator(context.Background(), p.ID); err != nil {
		b.emitError(s, "failed to remove actuator")
		return
	}
	b.Publish("actuator-unregister", map[string]any{"id": p.ID})
}

func (b *Bus) handleGetAllScripts(s socketio.Conn) {
	scripts, err := b.reg.ListScripts(context.Background())
	if err != nil {
		b.emitError(s, "failed to load scripts")
		return
	}
	s.Emit("all-scripts", scripts)
}

// handleRunScript hands off to the DSL runner, which owns the
// script-status-change transitions (1 on start, 0/−1/−2 on completion)
// and any message-sent emissions along the way. Each run gets its own
// goroutine so a DELAY or LOOP never stalls the bus.
func (b *Bus) handleRunScript(s socketio.Conn, id int64) {
	go b.scripts.Run(context.Background(), id)
}

func (b *Bus) handleAddScript(s socketio.Conn, req domain.SaveScriptRequest) {
	req.ID = 0
	script, err := b.reg.SaveScript(context.Background(), req)
	if err != nil {
		b.emitError(s, "failed to save script")
		return
	}
	b.Publish("script-saved", script)
}

func (b *Bus) handleModifyScript(s socketio.Conn, req domain.SaveScriptRequest) {
	script, err := b.reg.SaveScript(context.Background(), req)
	if err != nil {
		b.emitError(s, "failed to modify script")
		return
	}
	b.Publish("script-modified", script)
}

func (b *Bus) handleRemoveScript(s socketio.Conn, p idPayload) {
	if err := b.reg.DeleteScript(context.Background(), p.ID); err != nil {
		b.emitError(s, "failed to remove script")
		return
	}
	b.Publish("script-deleted", map[string]any{"id": p.ID})
}

func (b *Bus) handleAddScriptSchedule(s socketio.Conn, p schedulePayload) {
	schedule := p.Schedule
	script, err := b.reg.SetScriptSchedule(context.Background(), p.ID, &schedule)
	if err != nil {
		b.emitError(s, "failed to add script schedule")
		return
	}
	b.Publish("script-schedule-added", script)
}

func (b *Bus) handleRemoveScriptSchedule(s socketio.Conn, p idPayload) {
	script, err := b.reg.SetScriptSchedule(context.Background(), p.ID, nil)
	if err != nil {
		b.emitError(s, "failed to remove script schedule")
		return
	}
	b.Publish("script-schedule-removed", script)
}

func (b *Bus) emitError(s socketio.Conn, message string) {
	b.log.Warn(message)
	s.Emit("message-sent", map[string]string{"message": message, "type": "error"})
}

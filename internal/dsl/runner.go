package dsl

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/neriamosgionata/homesoil/internal/domain"
	"github.com/neriamosgionata/homesoil/internal/metrics"
)

// scriptStore is the slice of domain.Store/Registry the runner needs to
// load a script and report its status transitions.
type scriptStore interface {
	GetScript(ctx context.Context, id int64) (*domain.Script, error)
	SetScriptStatus(ctx context.Context, id int64, status domain.ScriptStatus) error
}

// Runner loads, parses, and executes HomeSoil automation scripts,
// implementing the scriptRunner interface internal/bus depends on. One
// Run call is one independent script execution on its own goroutine, so
// a DELAY or LOOP in one script never stalls another or the bus.
type Runner struct {
	store scriptStore
	reg   registryPort
	coap  coapPoster
	bus   domain.EventPublisher
	log   *logrus.Entry
}

func NewRunner(store scriptStore, reg registryPort, coap coapPoster, bus domain.EventPublisher) *Runner {
	return &Runner{
		store: store,
		reg:   reg,
		coap:  coap,
		bus:   bus,
		log:   logrus.WithField("component", "dsl"),
	}
}

// Run loads script id, parses it, and executes it to completion,
// persisting and broadcasting the resulting status transition. It never
// returns an error to the caller: run-script is fire-and-forget over
// the bus, with failures surfaced as a status change and a message-sent
// event instead.
func (r *Runner) Run(ctx context.Context, scriptID int64) {
	log := r.log.WithField("script_id", scriptID)

	script, err := r.store.GetScript(ctx, scriptID)
	if err != nil {
		log.WithError(err).Warn("load script for run")
		return
	}

	r.setStatus(ctx, scriptID, domain.ScriptRunning)

	parsed, err := Parse(script.Code)
	if err != nil {
		log.WithError(err).Warn("parse script")
		r.fail(ctx, scriptID, domain.ScriptInfraError, "parse error: "+err.Error())
		return
	}

	ec := &execContext{ctx: ctx, reg: r.reg, coap: r.coap, bus: r.bus, env: newEnv()}
	if err := Run(ec, parsed); err != nil {
		log.WithError(err).Warn("script run failed")
		status := domain.ScriptCommandError
		if errors.Is(err, domain.ErrInfra) {
			status = domain.ScriptInfraError
		}
		r.fail(ctx, scriptID, status, err.Error())
		return
	}

	r.setStatus(ctx, scriptID, domain.ScriptIdle)
}

func (r *Runner) fail(ctx context.Context, scriptID int64, status domain.ScriptStatus, message string) {
	r.setStatus(ctx, scriptID, status)
	r.bus.Publish("message-sent", map[string]any{
		"script_id": scriptID,
		"message":   message,
		"type":      "error",
	})
}

func (r *Runner) setStatus(ctx context.Context, scriptID int64, status domain.ScriptStatus) {
	if err := r.store.SetScriptStatus(ctx, scriptID, status); err != nil {
		r.log.WithError(err).WithField("script_id", scriptID).Warn("persist script status")
		return
	}
	if status != domain.ScriptRunning {
		metrics.ScriptRuns.WithLabelValues(statusLabel(status)).Inc()
	}
	r.bus.Publish("script-status-change", map[string]any{
		"id":     scriptID,
		"status": status,
	})
}

func statusLabel(status domain.ScriptStatus) string {
	switch status {
	case domain.ScriptIdle:
		return "idle"
	case domain.ScriptCommandError:
		return "command_error"
	case domain.ScriptInfraError:
		return "infra_error"
	default:
		return "unknown"
	}
}

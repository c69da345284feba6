// Package prober implements HomeSoil's Liveness Prober (component E): a
// fixed-period background loop that reconciles each device's online
// status against a direct CoAP probe and broadcasts any transition.
package prober

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/neriamosgionata/homesoil/internal/domain"
	"github.com/neriamosgionata/homesoil/internal/metrics"
)

// period is the fixed tick interval spec §4.E mandates.
const period = 5 * time.Second

type registryPort interface {
	ListSensors(ctx context.Context) ([]domain.Sensor, error)
	ListActuators(ctx context.Context) ([]domain.Actuator, error)
	SetSensorOnline(ctx context.Context, id int64, online bool) error
	SetActuatorOnline(ctx context.Context, id int64, online bool) error
}

type coapDialer interface {
	Get(ctx context.Context, ip string, port uint16) (string, error)
}

// Prober periodically probes every registered device.
type Prober struct {
	reg  registryPort
	coap coapDialer
	bus  domain.EventPublisher
	log  *logrus.Entry
}

func New(reg registryPort, coap coapDialer, bus domain.EventPublisher) *Prober {
	return &Prober{reg: reg, coap: coap, bus: bus, log: logrus.WithField("component", "prober")}
}

// Run blocks, ticking every 5 seconds until ctx is cancelled. Probes
// within a tick run sequentially — they never touch the bus's own
// goroutine, so a slow or unreachable device only delays the next
// device's probe, never the dashboard.
func (p *Prober) Run(ctx context.Context) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Prober) tick(ctx context.Context) {
	sensors, err := p.reg.ListSensors(ctx)
	if err != nil {
		p.log.WithError(err).Warn("failed to list sensors for probe tick")
	} else {
		for _, s := range sensors {
			p.probeSensor(ctx, s)
		}
	}

	actuators, err := p.reg.ListActuators(ctx)
	if err != nil {
		p.log.WithError(err).Warn("failed to list actuators for probe tick")
	} else {
		for _, a := range actuators {
			p.probeActuator(ctx, a)
		}
	}
}

func (p *Prober) probeSensor(ctx context.Context, s domain.Sensor) {
	reachable := p.reachable(ctx, s.IPAddress, s.Port)
	if reachable == s.Online {
		return
	}
	if err := p.reg.SetSensorOnline(ctx, s.ID, reachable); err != nil {
		p.log.WithError(err).WithField("sensor_id", s.ID).Warn("failed to persist sensor liveness transition")
		return
	}
	metrics.ProbeTransitions.WithLabelValues("sensor").Inc()
	p.bus.Publish("sensor-change-online", map[string]any{"id": s.ID, "online": reachable})
}

// probeActuator fixes the "online: true" double-emit bug present in
// earlier script revisions — the published value always reflects the
// actual transition, not a hardcoded true.
func (p *Prober) probeActuator(ctx context.Context, a domain.Actuator) {
	reachable := p.reachable(ctx, a.IPAddress, a.Port)
	if reachable == a.Online {
		return
	}
	if err := p.reg.SetActuatorOnline(ctx, a.ID, reachable); err != nil {
		p.log.WithError(err).WithField("actuator_id", a.ID).Warn("failed to persist actuator liveness transition")
		return
	}
	metrics.ProbeTransitions.WithLabelValues("actuator").Inc()
	p.bus.Publish("actuator-change-online", map[string]any{"id": a.ID, "online": reachable})
}

func (p *Prober) reachable(ctx context.Context, ip string, port uint16) bool {
	_, err := p.coap.Get(ctx, ip, port)
	return err == nil
}

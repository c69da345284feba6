package daemon

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/neriamosgionata/homesoil/internal/bus"
	"github.com/neriamosgionata/homesoil/internal/dsl"
	"github.com/neriamosgionata/homesoil/internal/gateway"
	"github.com/neriamosgionata/homesoil/internal/health"
	"github.com/neriamosgionata/homesoil/internal/httpapi"
	"github.com/neriamosgionata/homesoil/internal/infra/coapclient"
	"github.com/neriamosgionata/homesoil/internal/infra/sqlite"
	"github.com/neriamosgionata/homesoil/internal/prober"
	"github.com/neriamosgionata/homesoil/internal/registry"
	"github.com/neriamosgionata/homesoil/internal/sweeper"
)

// Daemon is HomeSoil's Supervisor (component H). It owns the boot order
// from spec §4.H (Store, then Bus, then Prober, then CoAP Router, then
// Sweeper) and the graceful shutdown: every background loop is cancelled
// together, then the HTTP server stops, then the database closes.
type Daemon struct {
	Config Config

	db       *sqlite.DB
	reg      *registry.Registry
	eventBus *bus.Bus
	coap     *coapclient.Client
	router   *gateway.Router
	prober   *prober.Prober
	sweeper  *sweeper.Sweeper
	runner   *dsl.Runner
	checker  *health.Checker
	http     *httpapi.Server

	log    *logrus.Entry
	cancel context.CancelFunc
}

// New loads configuration and wires every component without starting
// any background loop — Serve does that, in boot order.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig wires a Daemon from an already-resolved Config, useful
// for tests that want to bypass environment/TOML loading.
func NewWithConfig(cfg Config) (*Daemon, error) {
	log := logrus.WithField("component", "daemon")

	if level, err := logrus.ParseLevel(cfg.Extras.LogLevel); err == nil {
		logrus.SetLevel(level)
	}

	db, err := sqlite.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	reg := registry.New(db)
	coap := coapclient.New(cfg.CoAPDialTimeout())

	d := &Daemon{
		Config: cfg,
		db:     db,
		reg:    reg,
		coap:   coap,
		log:    log,
	}

	d.eventBus = bus.New(reg, coap, nil, cfg.LoginToken)
	d.runner = dsl.NewRunner(reg, reg, coap, d.eventBus)
	d.eventBus.SetScriptRunner(d.runner)

	d.prober = prober.New(reg, coap, d.eventBus)
	d.router = gateway.New(reg, d.eventBus, cfg.BindHost(), cfg.CoAPPort)
	d.sweeper = sweeper.New(reg.GCOldReadings)

	d.checker = health.NewChecker(30*time.Second, health.Check{
		Name:    "sqlite",
		CheckFn: db.Ping,
	})
	d.http = httpapi.NewServer(d.checker)
	d.http.Mount("/socket.io/", d.eventBus.Handler())

	return d, nil
}

// Serve starts every background component in boot order and blocks
// until ctx is cancelled or SIGINT/SIGTERM is received, then cancels
// every background loop, shuts down the HTTP server and closes the
// database.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	go d.checker.Run(ctx)
	go func() {
		if err := d.eventBus.Serve(ctx); err != nil {
			d.log.WithError(err).Warn("dashboard bus stopped")
		}
	}()
	go d.prober.Run(ctx)
	go func() {
		if err := d.router.Serve(ctx); err != nil {
			d.log.WithError(err).Warn("coap gateway stopped")
		}
	}()
	go d.sweeper.Run(ctx)

	addr := fmt.Sprintf("%s:%d", d.Config.BindHost(), d.Config.SocketPort)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.http.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		cancel()
		_ = httpServer.Shutdown(shutdownCtx)
		_ = d.db.Close()
	}()

	d.log.WithField("addr", addr).Info("homesoil serving")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close releases daemon resources outside of a Serve call (used by
// tests that construct a Daemon without starting it).
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.db != nil {
		_ = d.db.Close()
	}
}

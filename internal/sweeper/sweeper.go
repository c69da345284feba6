// Package sweeper implements HomeSoil's Retention Sweeper (component F):
// a fixed-period background loop that reclaims telemetry older than the
// retention horizon.
package sweeper

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// period is the fixed tick interval spec §4.F mandates.
const period = time.Hour

type gcFunc func(ctx context.Context) (int64, error)

// Sweeper calls gc on a one-hour tick, logging and continuing on failure.
type Sweeper struct {
	gc  gcFunc
	log *logrus.Entry
}

func New(gc gcFunc) *Sweeper {
	return &Sweeper{gc: gc, log: logrus.WithField("component", "sweeper")}
}

// Run blocks, ticking every hour until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Sweeper) tick(ctx context.Context) {
	n, err := s.gc(ctx)
	if err != nil {
		s.log.WithError(err).Warn("retention sweep failed")
		return
	}
	if n > 0 {
		s.log.WithField("rows_deleted", n).Info("retention sweep reclaimed old readings")
	}
}

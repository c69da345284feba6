package sweeper

import (
	"context"
	"errors"
	"testing"
)

func TestTickDeletesOldReadings(t *testing.T) {
	called := false
	s := New(func(context.Context) (int64, error) {
		called = true
		return 1, nil
	})

	s.tick(context.Background())

	if !called {
		t.Fatalf("expected gc to be invoked")
	}
}

func TestTickToleratesFailureAndContinues(t *testing.T) {
	s := New(func(context.Context) (int64, error) {
		return 0, errors.New("db unavailable")
	})

	// Must not panic; the loop continues on the next tick.
	s.tick(context.Background())
}

package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// The taxonomy matches spec §7. Layers wrap these with fmt.Errorf("%w: ...")
// so errors.Is keeps working across package boundaries.

var (
	// Store errors (component A).
	ErrNotFound        = errors.New("not found")
	ErrUniqueViolation = errors.New("unique constraint violation")
	ErrConnectFailed   = errors.New("database connection failed")

	// Registry / validation errors (component B).
	ErrValidation = errors.New("validation error")

	// CoAP / device errors (components C, E).
	ErrDeviceUnreachable = errors.New("device unreachable")

	// General persistence/auth errors (§7 taxonomy).
	ErrPersistence = errors.New("persistence error")
	ErrAuth        = errors.New("auth error")
	ErrParse       = errors.New("parse error")

	// DSL-specific errors (component G).
	ErrCommand = errors.New("command error")
	ErrInfra   = errors.New("infrastructure error")
)

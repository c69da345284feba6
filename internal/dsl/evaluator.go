package dsl

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"time"

	"github.com/neriamosgionata/homesoil/internal/domain"
)

// outcomeKind tags how a statement or block finished, the Go-native
// stand-in for the source's Outcome enum (SaveVariable/Return/Continue/
// Break/Error): env mutation happens in place instead of being threaded
// through the return value, since a script's variables live in one
// mutable env for its whole run.
type outcomeKind int

const (
	outcomeNormal outcomeKind = iota
	outcomeBreak
	outcomeContinue
	outcomeError
)

type outcome struct {
	kind outcomeKind
	err  error
}

var varSubstitution = regexp.MustCompile(`\$[A-Za-z_][A-Za-z0-9_]*`)

// coapPoster is the narrow CoAP surface the evaluator needs: every
// device-facing DSL command is a POST.
type coapPoster interface {
	Post(ctx context.Context, ip string, port uint16, body string) (string, error)
}

// registryPort is the narrow registry surface the evaluator needs to
// resolve a sensor/actuator id into an address.
type registryPort interface {
	GetActuator(ctx context.Context, id int64) (*domain.Actuator, error)
	GetSensor(ctx context.Context, id int64) (*domain.Sensor, error)
}

// execContext threads the shared handles through one script run, per
// the "global-ish state lives in a struct, not per-command closures"
// design note.
type execContext struct {
	ctx  context.Context
	reg  registryPort
	coap coapPoster
	bus  domain.EventPublisher
	env  *env
}

// Run evaluates a parsed Script to completion (or until ctx is
// cancelled), returning the error that aborted it, if any. A BREAK or
// CONTINUE outside any loop ends the script early; that also returns nil.
func Run(ec *execContext, script *Script) error {
	out := execBlock(ec, script.body)
	if out.kind == outcomeError {
		return out.err
	}
	return nil
}

func execBlock(ec *execContext, stmts []statement) outcome {
	for _, s := range stmts {
		out := execStatement(ec, s)
		if out.kind != outcomeNormal {
			return out
		}
		if ec.ctx.Err() != nil {
			return outcome{kind: outcomeError, err: fmt.Errorf("script cancelled: %w", errInfra)}
		}
	}
	return outcome{kind: outcomeNormal}
}

func execStatement(ec *execContext, s statement) outcome {
	switch s.kind {
	case stmtCommand:
		return execCommand(ec, s.cmd)
	case stmtIf:
		if !s.cond.eval(ec.env) {
			// An unmet IF condition completes normally; it is not an error.
			return outcome{kind: outcomeNormal}
		}
		return execBlock(ec, s.body)
	case stmtLoop:
		return execLoop(ec, s.body)
	case stmtWhile:
		return execWhile(ec, s)
	}
	return outcome{kind: outcomeNormal}
}

// execLoop runs an unconditional LOOP, absorbing BREAK (terminates
// normally) and CONTINUE (restarts the next iteration), propagating any
// command_error/infra_error outward.
func execLoop(ec *execContext, body []statement) outcome {
	for {
		if ec.ctx.Err() != nil {
			return outcome{kind: outcomeError, err: fmt.Errorf("script cancelled: %w", errInfra)}
		}
		out := execBlock(ec, body)
		switch out.kind {
		case outcomeBreak:
			return outcome{kind: outcomeNormal}
		case outcomeContinue, outcomeNormal:
			continue
		default:
			return out
		}
	}
}

func execWhile(ec *execContext, s statement) outcome {
	for s.cond.eval(ec.env) {
		if ec.ctx.Err() != nil {
			return outcome{kind: outcomeError, err: fmt.Errorf("script cancelled: %w", errInfra)}
		}
		out := execBlock(ec, s.body)
		switch out.kind {
		case outcomeBreak:
			return outcome{kind: outcomeNormal}
		case outcomeContinue, outcomeNormal:
			continue
		default:
			return out
		}
	}
	return outcome{kind: outcomeNormal}
}

func execCommand(ec *execContext, c command) outcome {
	switch c.kind {
	case cmdActivate:
		return ec.actuatorCommand(c.args[0], domain.ActuatorCommandOn)
	case cmdDeactivate:
		return ec.actuatorCommand(c.args[0], domain.ActuatorCommandOff)
	case cmdPulse:
		return ec.actuatorCommand(c.args[0], domain.ActuatorCommandOnPulse)
	case cmdRead:
		return ec.readSensor(c.args[0])
	case cmdDashboard:
		return ec.dashboard(c.args[0])
	case cmdSet:
		return ec.set(c.args[0], c.args[1])
	case cmdUnset:
		return ec.unset(c.args[0])
	case cmdAdd:
		return ec.arithmetic(c.args[0], c.args[1], func(a, b float64) (float64, error) { return a + b, nil })
	case cmdSubtract:
		return ec.arithmetic(c.args[0], c.args[1], func(a, b float64) (float64, error) { return a - b, nil })
	case cmdMultiply:
		return ec.arithmetic(c.args[0], c.args[1], func(a, b float64) (float64, error) { return a * b, nil })
	case cmdDivide:
		return ec.arithmetic(c.args[0], c.args[1], func(a, b float64) (float64, error) {
			if b == 0 {
				return 0, fmt.Errorf("division by zero: %w", errCommand)
			}
			return a / b, nil
		})
	case cmdModulo:
		return ec.arithmetic(c.args[0], c.args[1], func(a, b float64) (float64, error) {
			if b == 0 {
				return 0, fmt.Errorf("modulo by zero: %w", errCommand)
			}
			return math.Mod(a, b), nil
		})
	case cmdDelay:
		return ec.delay(c.args[0])
	case cmdBreak:
		return outcome{kind: outcomeBreak}
	case cmdContinue:
		return outcome{kind: outcomeContinue}
	}
	return outcome{kind: outcomeNormal}
}

func (ec *execContext) resolveID(v Value) (int64, bool) {
	f, ok := v.resolve(ec.env).asFloat()
	return int64(f), ok
}

func (ec *execContext) actuatorCommand(idArg Value, wireCommand string) outcome {
	id, ok := ec.resolveID(idArg)
	if !ok {
		return outcome{kind: outcomeError, err: fmt.Errorf("actuator id is not numeric: %w", errCommand)}
	}
	a, err := ec.reg.GetActuator(ec.ctx, id)
	if err != nil {
		return outcome{kind: outcomeError, err: fmt.Errorf("look up actuator %d: %w", id, errInfra)}
	}
	if _, err := ec.coap.Post(ec.ctx, a.IPAddress, a.Port, wireCommand); err != nil {
		return outcome{kind: outcomeError, err: fmt.Errorf("command actuator %d: %w", id, errInfra)}
	}
	return outcome{kind: outcomeNormal}
}

func (ec *execContext) readSensor(idArg Value) outcome {
	id, ok := ec.resolveID(idArg)
	if !ok {
		return outcome{kind: outcomeError, err: fmt.Errorf("sensor id is not numeric: %w", errCommand)}
	}
	s, err := ec.reg.GetSensor(ec.ctx, id)
	if err != nil {
		return outcome{kind: outcomeError, err: fmt.Errorf("look up sensor %d: %w", id, errInfra)}
	}
	reply, err := ec.coap.Post(ec.ctx, s.IPAddress, s.Port, domain.SensorCommandRead)
	if err != nil {
		return outcome{kind: outcomeError, err: fmt.Errorf("read sensor %d: %w", id, errInfra)}
	}
	ec.env.set(fmt.Sprintf("sensor_id_%d", id), stringValue(reply))
	return outcome{kind: outcomeNormal}
}

// dashboard substitutes $name references inside the message template
// from the current variable map before emitting, per spec §4.G.
func (ec *execContext) dashboard(messageArg Value) outcome {
	resolved := messageArg.resolve(ec.env)
	text := varSubstitution.ReplaceAllStringFunc(resolved.strV, func(ref string) string {
		name := ref[1:]
		if v, ok := ec.env.get(name); ok {
			return v.String()
		}
		return ref
	})
	ec.bus.Publish("message-sent", map[string]string{"message": text, "type": "info"})
	return outcome{kind: outcomeNormal}
}

func (ec *execContext) set(varArg, valueArg Value) outcome {
	if varArg.kind != valVarRef {
		return outcome{kind: outcomeError, err: fmt.Errorf("SET requires a $variable target: %w", errCommand)}
	}
	ec.env.set(varArg.varName, valueArg.resolve(ec.env))
	return outcome{kind: outcomeNormal}
}

func (ec *execContext) unset(varArg Value) outcome {
	if varArg.kind != valVarRef {
		return outcome{kind: outcomeError, err: fmt.Errorf("UNSET requires a $variable target: %w", errCommand)}
	}
	ec.env.unset(varArg.varName)
	return outcome{kind: outcomeNormal}
}

func (ec *execContext) arithmetic(varArg, operandArg Value, apply func(a, b float64) (float64, error)) outcome {
	if varArg.kind != valVarRef {
		return outcome{kind: outcomeError, err: fmt.Errorf("arithmetic commands require a $variable target: %w", errCommand)}
	}
	current, ok := ec.env.get(varArg.varName)
	if !ok {
		return outcome{kind: outcomeError, err: fmt.Errorf("%s is not set: %w", varArg.varName, errCommand)}
	}
	a, ok := current.asFloat()
	if !ok {
		return outcome{kind: outcomeError, err: fmt.Errorf("%s is not numeric: %w", varArg.varName, errCommand)}
	}
	b, ok := operandArg.resolve(ec.env).asFloat()
	if !ok {
		return outcome{kind: outcomeError, err: fmt.Errorf("operand is not numeric: %w", errCommand)}
	}
	result, err := apply(a, b)
	if err != nil {
		return outcome{kind: outcomeError, err: err}
	}
	ec.env.set(varArg.varName, numberValue(result))
	return outcome{kind: outcomeNormal}
}

// delay implements a cooperative sleep: it runs on the script's own
// goroutine, so it never blocks the event bus or CoAP server.
func (ec *execContext) delay(msArg Value) outcome {
	ms, ok := msArg.resolve(ec.env).asFloat()
	if !ok {
		return outcome{kind: outcomeError, err: fmt.Errorf("DELAY duration is not numeric: %w", errCommand)}
	}
	select {
	case <-time.After(time.Duration(ms) * time.Millisecond):
	case <-ec.ctx.Done():
	}
	return outcome{kind: outcomeNormal}
}

package core

import (
	"context"

	"hcsr04-go/bus"
	"hcsr04-go/errcode"
	"hcsr04-go/types"
)

// ---- Capability & device model ----

type CapabilitySpec struct {
	Domain string // empty: inferred from Kind
	Kind   types.Kind
	Name   string // empty: device ID
	Info   types.Info
}

// CapAddr is the public address of one capability:
// hal/cap/<domain>/<kind>/<name>.
type CapAddr struct {
	Domain string
	Kind   types.Kind
	Name   string
}

// EnqueueResult is the immediate outcome of a control. Controls never block
// the HAL loop: a device either answers at once (OK or Error) or takes the
// request and answers later through an Event carrying Reply (Deferred).
type EnqueueResult struct {
	OK       bool
	Deferred bool
	Error    errcode.Code
}

type Device interface {
	ID() string
	Capabilities() []CapabilitySpec
	Init(ctx context.Context) error
	// Control must not block. req is nil for poller-initiated reads.
	Control(addr CapAddr, verb string, req *bus.Message) (EnqueueResult, error)
	Close() error // release claimed resources
}

// Builder input
type BuilderInput struct {
	ID, Type string
	Params   any
	Res      Resources
}

type Builder interface {
	Build(ctx context.Context, in BuilderInput) (Device, error)
}

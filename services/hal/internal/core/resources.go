package core

import "hcsr04-go/bus"

// ---- GPIO ----

type Pull uint8

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

// ParsePull maps a config string ("up", "down", anything else) to a Pull.
func ParsePull(s string) Pull {
	switch s {
	case "up":
		return PullUp
	case "down":
		return PullDown
	default:
		return PullNone
	}
}

type Edge uint8

const (
	EdgeNone Edge = iota
	EdgeRising
	EdgeFalling
	EdgeBoth
)

type PinFunc uint8

const (
	FuncGPIOIn PinFunc = iota
	FuncGPIOOut
)

type GPIOHandle interface {
	Number() int
	ConfigureInput(pull Pull) error
	ConfigureOutput(initial bool) error
	Set(bool)
	Get() bool
}

// IRQPin is a GPIO that can run a handler in interrupt context on an edge.
// The handler must not block or allocate.
type IRQPin interface {
	GPIOHandle
	SetIRQ(edge Edge, handler func()) error
	ClearIRQ() error
}

// EdgeLine reports rising and falling edges of an input through callbacks
// run in edge context. One set of handlers at a time.
type EdgeLine interface {
	SetEdgeHandlers(rising, falling func()) error
	ClearEdgeHandlers() error
}

// PinHandle is a claimed pin.
type PinHandle interface {
	Pin() int
	AsGPIO() GPIOHandle
	// AsEdgeLine configures the pin as an edge-reporting input.
	AsEdgeLine(pull Pull) (EdgeLine, error)
}

// ---- Device → HAL telemetry (single shape) ----
// By default, an Event represents a "value-like" update for a capability that
// HAL should publish to .../value (retained). If IsEvent is true, HAL instead
// publishes to .../event (non-retained). Err, when non-empty, causes HAL to
// publish only .../status=degraded (retained). Reply, when set, is answered
// with Payload or with an ErrorReply carrying Err.

type Event struct {
	Addr     CapAddr
	Payload  any
	TSms     int64
	Err      string // "timeout","busy","closed",...
	IsEvent  bool
	EventTag string // optional subtopic tag for events (e.g. "stats")
	Reply    *bus.Message
}

// ---- Event emission (devices → HAL) ----

type EventEmitter interface {
	// Emit tries to enqueue an Event for HAL publication.
	// It must be non-blocking; false indicates a drop under pressure.
	Emit(ev Event) bool
}

// ---- HAL-injected resources ----

type Resources struct {
	Reg ResourceRegistry
	Pub EventEmitter // provided by HAL
}

// ResourceRegistry owns the board's pins. Claims fail with
// errcode.UnknownPin or errcode.PinInUse.
type ResourceRegistry interface {
	ClaimPin(devID string, pin int, fn PinFunc) (PinHandle, error)
	ReleasePin(devID string, pin int)
}

// services/hal/internal/platform/rp2.go
//go:build rp2040 || rp2350

package platform

import (
	"machine"

	"hcsr04-go/services/hal/internal/core"
	"hcsr04-go/services/hal/internal/platform/boards"
)

// DefaultRegistry maps logical numbers directly to machine.Pin(n), matching
// Pico/Pico 2 GP numbering.
func DefaultRegistry() core.ResourceRegistry {
	return newIRQRegistry(boards.Pico, func(n int) core.IRQPin {
		return &rp2Pin{p: machine.Pin(n), n: n}
	})
}

func DefaultBoard() boards.Board { return boards.Pico }

// ---- GPIO implementation (includes IRQ support) ----

type rp2Pin struct {
	p machine.Pin
	n int
}

func (r *rp2Pin) ConfigureInput(pull core.Pull) error {
	var mode machine.PinMode
	switch pull {
	case core.PullUp:
		mode = machine.PinInputPullup
	case core.PullDown:
		mode = machine.PinInputPulldown
	default:
		mode = machine.PinInput
	}
	r.p.Configure(machine.PinConfig{Mode: mode})
	return nil
}

func (r *rp2Pin) ConfigureOutput(initial bool) error {
	r.p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	r.p.Set(initial)
	return nil
}

func (r *rp2Pin) Set(level bool) { r.p.Set(level) }
func (r *rp2Pin) Get() bool      { return r.p.Get() }
func (r *rp2Pin) Number() int    { return r.n }

// IRQ support. The RP2 port provides SetInterrupt with PinChange flags; the
// callback runs in interrupt context.
func (r *rp2Pin) SetIRQ(edge core.Edge, handler func()) error {
	return r.p.SetInterrupt(toPinChange(edge), func(machine.Pin) { handler() })
}

func (r *rp2Pin) ClearIRQ() error {
	var zero machine.PinChange
	return r.p.SetInterrupt(zero, nil)
}

func toPinChange(e core.Edge) machine.PinChange {
	switch e {
	case core.EdgeRising:
		return machine.PinRising
	case core.EdgeFalling:
		return machine.PinFalling
	case core.EdgeBoth:
		return machine.PinToggle
	default:
		// Zero value is a no-op/disabled.
		var zero machine.PinChange
		return zero
	}
}

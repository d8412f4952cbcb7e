// services/hal/internal/gpioirq/line.go
package gpioirq

import (
	"sync/atomic"

	"hcsr04-go/errcode"
	"hcsr04-go/services/hal/internal/core"
)

// Line turns one both-edges interrupt into separate rising and falling
// callbacks. Direction is taken from the level sampled inside the ISR and
// compared with the previous sample; an interrupt that shows no change
// (both edges of a very short pulse coalesced, or contact noise) is
// counted and dropped.
type Line struct {
	pin  core.IRQPin
	last atomic.Bool
	h    atomic.Pointer[handlers]

	drops atomic.Uint32
}

type handlers struct {
	rising, falling func()
}

// NewLine configures pin as an input. Handlers are installed later with
// SetEdgeHandlers.
func NewLine(pin core.IRQPin, pull core.Pull) (*Line, error) {
	if err := pin.ConfigureInput(pull); err != nil {
		return nil, err
	}
	return &Line{pin: pin}, nil
}

// SetEdgeHandlers arms the interrupt. A second call without
// ClearEdgeHandlers fails with errcode.PinInUse.
func (l *Line) SetEdgeHandlers(rising, falling func()) error {
	if rising == nil || falling == nil {
		return errcode.InvalidParams
	}
	if !l.h.CompareAndSwap(nil, &handlers{rising: rising, falling: falling}) {
		return errcode.PinInUse
	}
	l.last.Store(l.pin.Get())
	if err := l.pin.SetIRQ(core.EdgeBoth, l.isr); err != nil {
		l.h.Store(nil)
		return err
	}
	return nil
}

func (l *Line) ClearEdgeHandlers() error {
	err := l.pin.ClearIRQ()
	l.h.Store(nil)
	return err
}

// ISR handler: one register read, no blocking, no allocation. The edge
// handlers read the clock after the level sample.
func (l *Line) isr() {
	h := l.h.Load()
	if h == nil {
		return
	}
	lvl := l.pin.Get()
	prev := l.last.Swap(lvl)
	switch {
	case lvl && !prev:
		h.rising()
	case !lvl && prev:
		h.falling()
	default:
		l.drops.Add(1)
	}
}

// Drops counts interrupts that showed no level change.
func (l *Line) Drops() uint32 { return l.drops.Load() }

func (l *Line) Number() int { return l.pin.Number() }

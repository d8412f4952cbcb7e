package echo

import "time"

// Clock is a monotonic timestamp source.
type Clock interface {
	Now() time.Duration
}

// TriggerLine is the digital output that starts a measurement.
type TriggerLine interface {
	SetLevel(high bool)
}

// EdgeLine is the digital input carrying the echo pulse. Installed callbacks
// run in edge context: they must not block. A line accepts one set of
// handlers at a time and returns ErrLineInUse for a second one.
type EdgeLine interface {
	SetEdgeHandlers(rising, falling func()) error
	ClearEdgeHandlers() error
}

// Handlers are the edge-context entry points. Each captures the clock first,
// then steps the machine; Falling wakes the waiter on completion.
type Handlers struct {
	m     *Machine
	clock Clock
	wake  chan struct{} // cap 1
}

func newHandlers(m *Machine, clock Clock) *Handlers {
	return &Handlers{m: m, clock: clock, wake: make(chan struct{}, 1)}
}

func (h *Handlers) Rising() {
	now := h.clock.Now()
	h.m.OnRisingEdge(now)
}

func (h *Handlers) Falling() {
	now := h.clock.Now()
	if h.m.OnFallingEdge(now) {
		select {
		case h.wake <- struct{}{}:
		default:
		}
	}
}

// drain discards a wakeup left over from an earlier cycle.
func (h *Handlers) drain() {
	select {
	case <-h.wake:
	default:
	}
}

// Package echo times the echo pulse of an ultrasonic ranging module
// (HC-SR04 and compatibles).
//
// A measurement is shared between two contexts: the requester goroutine that
// calls Session.Measure, and the edge context (an interrupt handler or a GPIO
// event callback) that reports echo edges. All state crossing between them
// lives in Machine and is accessed only through atomics.
package echo

import (
	"sync/atomic"
	"time"
)

// State is the phase of the single in-flight measurement.
type State uint8

const (
	Ready State = iota
	WaitingEchoStart
	WaitingEchoStop
	Complete
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case WaitingEchoStart:
		return "waiting_echo_start"
	case WaitingEchoStop:
		return "waiting_echo_stop"
	case Complete:
		return "complete"
	default:
		return "invalid"
	}
}

// State word layout: generation<<2 | state.
const (
	stateBits = 2
	stateMask = 1<<stateBits - 1
)

func pack(gen uint64, s State) uint64 { return gen<<stateBits | uint64(s) }

func unpack(w uint64) (uint64, State) { return w >> stateBits, State(w & stateMask) }

// Timestamp slot layout: tag<<48 | offset, where tag is the low 16 bits of
// the generation that wrote the slot and offset is nanoseconds since Arm.
const (
	tagBits = 16
	offBits = 64 - tagBits
	tagMask = 1<<tagBits - 1
	offMask = 1<<offBits - 1
)

func stamp(gen uint64, off time.Duration) uint64 {
	if off > offMask {
		off = offMask
	}
	return (gen&tagMask)<<offBits | uint64(off)
}

func unstamp(v uint64) (tag uint64, off time.Duration) {
	return v >> offBits, time.Duration(v & offMask)
}

// Machine is the measurement state machine. The zero value is Ready.
//
// Edge callbacks only act when the state is exactly the one they expect and
// only advance it with a compare-and-swap against the word they loaded, so an
// edge from an earlier (timed out) cycle can never move a later one along.
// Timestamps are written before the transition that publishes them.
//
// Edge callbacks for one line must not run concurrently with each other;
// interrupt controllers and the GPIO character device both deliver edges
// sequentially.
type Machine struct {
	word  atomic.Uint64
	armed atomic.Int64 // clock reading at Arm
	start atomic.Uint64
	end   atomic.Uint64

	spurious atomic.Uint32
}

// Arm opens a new cycle and returns its generation. It fails while a cycle is
// in flight; a Complete cycle that was never reset is discarded.
func (m *Machine) Arm(now time.Duration) (uint64, bool) {
	w := m.word.Load()
	gen, s := unpack(w)
	if s != Ready && s != Complete {
		return 0, false
	}
	next := gen + 1
	m.armed.Store(int64(now))
	if !m.word.CompareAndSwap(w, pack(next, WaitingEchoStart)) {
		return 0, false
	}
	return next, true
}

// OnRisingEdge records the echo start. Outside WaitingEchoStart it is a no-op.
func (m *Machine) OnRisingEdge(now time.Duration) {
	w := m.word.Load()
	gen, s := unpack(w)
	if s != WaitingEchoStart {
		m.spurious.Add(1)
		return
	}
	off := now - time.Duration(m.armed.Load())
	if off < 0 {
		// Captured before this cycle was armed.
		m.spurious.Add(1)
		return
	}
	v := stamp(gen, off)
	m.start.Store(v)
	m.end.Store(v)
	if !m.word.CompareAndSwap(w, pack(gen, WaitingEchoStop)) {
		m.spurious.Add(1)
	}
}

// OnFallingEdge records the echo end. It reports true when the cycle became
// Complete and the waiter must be woken. Outside WaitingEchoStop it is a no-op.
func (m *Machine) OnFallingEdge(now time.Duration) bool {
	w := m.word.Load()
	gen, s := unpack(w)
	if s != WaitingEchoStop {
		m.spurious.Add(1)
		return false
	}
	off := now - time.Duration(m.armed.Load())
	if off < 0 {
		m.spurious.Add(1)
		return false
	}
	m.end.Store(stamp(gen, off))
	if !m.word.CompareAndSwap(w, pack(gen, Complete)) {
		m.spurious.Add(1)
		return false
	}
	return true
}

// Reset returns the machine to Ready, keeping the generation. Idempotent.
func (m *Machine) Reset() {
	for {
		w := m.word.Load()
		gen, s := unpack(w)
		if s == Ready || m.word.CompareAndSwap(w, pack(gen, Ready)) {
			return
		}
	}
}

func (m *Machine) State() State {
	_, s := unpack(m.word.Load())
	return s
}

// Load returns the current generation and state as one consistent pair.
func (m *Machine) Load() (uint64, State) { return unpack(m.word.Load()) }

// Timestamps returns the echo start and end of cycle gen. ok is false unless
// that exact cycle is Complete and both slots were written by it.
func (m *Machine) Timestamps(gen uint64) (start, end time.Duration, ok bool) {
	g, s := unpack(m.word.Load())
	if g != gen || s != Complete {
		return 0, 0, false
	}
	st, so := unstamp(m.start.Load())
	et, eo := unstamp(m.end.Load())
	if st != gen&tagMask || et != gen&tagMask || eo < so {
		return 0, 0, false
	}
	base := time.Duration(m.armed.Load())
	return base + so, base + eo, true
}

// Spurious counts edges rejected as no-ops since creation.
func (m *Machine) Spurious() uint32 { return m.spurious.Load() }

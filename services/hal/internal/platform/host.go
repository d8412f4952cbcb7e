// services/hal/internal/platform/host.go
//go:build !rp2040 && !rp2350

package platform

import (
	"context"
	"sync"
	"time"

	"hcsr04-go/services/hal/internal/core"
	"hcsr04-go/services/hal/internal/platform/boards"
)

// ----------------------------- GPIO (host) -----------------------------------

// FakePin implements core.IRQPin in memory. Set on a pin with an armed IRQ
// calls the handler synchronously, the way a level change raises an ISR.
type FakePin struct {
	mu      sync.RWMutex
	number  int
	level   bool
	modeOut bool
	pull    core.Pull
	irqEdge core.Edge
	irqFunc func()
}

func (p *FakePin) ConfigureInput(pull core.Pull) error {
	p.mu.Lock()
	p.modeOut = false
	p.pull = pull
	p.level = pull == core.PullUp
	p.mu.Unlock()
	return nil
}

func (p *FakePin) ConfigureOutput(initial bool) error {
	p.mu.Lock()
	p.modeOut = true
	p.level = initial
	p.mu.Unlock()
	return nil
}

func (p *FakePin) Set(level bool) {
	p.mu.Lock()
	old := p.level
	p.level = level
	irq := p.irqFunc
	want := irqWanted(p.irqEdge, edgeFrom(old, level))
	p.mu.Unlock()
	if want && irq != nil {
		irq()
	}
}

func (p *FakePin) Get() bool {
	p.mu.RLock()
	v := p.level
	p.mu.RUnlock()
	return v
}

func (p *FakePin) Number() int { return p.number }

// IsOutput reports the configured direction.
func (p *FakePin) IsOutput() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.modeOut
}

func (p *FakePin) SetIRQ(edge core.Edge, handler func()) error {
	p.mu.Lock()
	p.irqEdge = edge
	p.irqFunc = handler
	p.mu.Unlock()
	return nil
}

func (p *FakePin) ClearIRQ() error {
	p.mu.Lock()
	p.irqEdge = core.EdgeNone
	p.irqFunc = nil
	p.mu.Unlock()
	return nil
}

func edgeFrom(old, new bool) core.Edge {
	switch {
	case !old && new:
		return core.EdgeRising
	case old && !new:
		return core.EdgeFalling
	default:
		return core.EdgeNone
	}
}

func irqWanted(cfg, seen core.Edge) bool {
	switch cfg {
	case core.EdgeBoth:
		return seen == core.EdgeRising || seen == core.EdgeFalling
	case core.EdgeNone:
		return false
	default:
		return cfg == seen
	}
}

// HostRegistry is the resource registry of host builds: stable *FakePin
// instances per number on the simulated board.
type HostRegistry struct {
	*irqRegistry
	pins sync.Map // int -> *FakePin
}

func NewHostRegistry() *HostRegistry {
	r := &HostRegistry{}
	r.irqRegistry = newIRQRegistry(boards.Host, func(n int) core.IRQPin { return r.Pin(n) })
	return r
}

// Pin exposes the underlying *FakePin (e.g. to drive edges in tests).
func (r *HostRegistry) Pin(n int) *FakePin {
	p, _ := r.pins.LoadOrStore(n, &FakePin{number: n})
	return p.(*FakePin)
}

// DefaultRegistry is the registry hal.Run uses when none is injected.
func DefaultRegistry() core.ResourceRegistry { return NewHostRegistry() }

// DefaultBoard describes the target of this build.
func DefaultBoard() boards.Board { return boards.Host }

// ----------------------------- Echo simulation --------------------------------

// EchoModel returns the echo round trip for the next trigger. Zero or
// negative means nothing in range: no echo pulse at all.
type EchoModel func() time.Duration

// FixedEcho models a target at a constant distance.
func FixedEcho(d time.Duration) EchoModel { return func() time.Duration { return d } }

// Simulate plays an ultrasonic module between two host pins: every falling
// edge on trigger starts an echo pulse on echo whose width comes from model.
// It runs until ctx is done.
func (r *HostRegistry) Simulate(ctx context.Context, trigger, echo int, model EchoModel) {
	trig := r.Pin(trigger)
	out := r.Pin(echo)
	fired := make(chan struct{}, 1)
	// The module's own trigger input; it sees the line the MCU drives.
	_ = trig.SetIRQ(core.EdgeFalling, func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	})
	go func() {
		defer trig.ClearIRQ()
		for {
			select {
			case <-ctx.Done():
				return
			case <-fired:
			}
			rt := model()
			if rt <= 0 {
				continue
			}
			// The module emits its 8-cycle burst before raising echo.
			time.Sleep(200 * time.Microsecond)
			out.Set(true)
			time.Sleep(rt)
			out.Set(false)
		}
	}()
}

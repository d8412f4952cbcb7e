package platform

import (
	"sync"

	"hcsr04-go/errcode"
	"hcsr04-go/services/hal/internal/core"
	"hcsr04-go/services/hal/internal/gpioirq"
	"hcsr04-go/services/hal/internal/platform/boards"
	"hcsr04-go/x/mathx"
)

// claims tracks which device owns each pin.
type claims struct {
	mu    sync.Mutex
	board boards.Board
	used  map[int]string // pin -> devID
}

func newClaims(b boards.Board) claims {
	return claims{board: b, used: make(map[int]string)}
}

func (c *claims) valid(n int) bool { return mathx.Between(n, c.board.GPIOMin, c.board.GPIOMax) }

// claim must be called with c.mu held.
func (c *claims) claim(devID string, n int) error {
	if !c.valid(n) {
		return errcode.UnknownPin
	}
	if owner, inUse := c.used[n]; inUse && owner != "" {
		return errcode.PinInUse
	}
	c.used[n] = devID
	return nil
}

// release must be called with c.mu held. It reports whether devID owned n.
func (c *claims) release(devID string, n int) bool {
	if owner, ok := c.used[n]; ok && owner == devID {
		delete(c.used, n)
		return true
	}
	return false
}

// ---- Registry over interrupt-capable pins (MCU and host simulation) ----

// irqRegistry hands out IRQPins; edge lines are built with gpioirq.
type irqRegistry struct {
	claims
	open  func(n int) core.IRQPin
	cache map[int]core.IRQPin
	fns   map[int]core.PinFunc
}

func newIRQRegistry(b boards.Board, open func(n int) core.IRQPin) *irqRegistry {
	return &irqRegistry{claims: newClaims(b), open: open, cache: make(map[int]core.IRQPin), fns: make(map[int]core.PinFunc)}
}

func (r *irqRegistry) lookup(n int) core.IRQPin {
	if p, ok := r.cache[n]; ok {
		return p
	}
	p := r.open(n)
	r.cache[n] = p
	return p
}

func (r *irqRegistry) ClaimPin(devID string, n int, fn core.PinFunc) (core.PinHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.claim(devID, n); err != nil {
		return nil, err
	}
	r.fns[n] = fn
	return &irqHandle{n: n, p: r.lookup(n), fn: fn}, nil
}

func (r *irqRegistry) ReleasePin(devID string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.release(devID, n) {
		return
	}
	// Only inputs carry this registry's interrupts.
	if p, ok := r.cache[n]; ok && r.fns[n] == core.FuncGPIOIn {
		_ = p.ClearIRQ()
	}
	delete(r.fns, n)
}

type irqHandle struct {
	n  int
	p  core.IRQPin
	fn core.PinFunc
}

func (h *irqHandle) Pin() int                { return h.n }
func (h *irqHandle) AsGPIO() core.GPIOHandle { return h.p }

func (h *irqHandle) AsEdgeLine(pull core.Pull) (core.EdgeLine, error) {
	if h.fn != core.FuncGPIOIn {
		return nil, errcode.Unsupported
	}
	return gpioirq.NewLine(h.p, pull)
}

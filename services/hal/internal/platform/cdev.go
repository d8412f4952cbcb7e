// services/hal/internal/platform/cdev.go
//go:build linux && !rp2040 && !rp2350 && !baremetal

package platform

import (
	"sync"

	"github.com/warthog618/go-gpiocdev"

	"hcsr04-go/errcode"
	"hcsr04-go/services/hal/internal/core"
	"hcsr04-go/services/hal/internal/platform/boards"
)

// ChipRegistry serves pins of one Linux GPIO character device
// (/dev/gpiochipN). Outputs are requested when configured; edge inputs are
// requested when handlers are installed, because the kernel binds the event
// handler to the line request.
type ChipRegistry struct {
	claims
	chip     string
	consumer string
	pins     map[int]*cdevPin
}

// NewChipRegistry opens chip (e.g. "gpiochip0") to learn its line count.
// consumer labels the requested lines in gpioinfo.
func NewChipRegistry(chip, consumer string) (*ChipRegistry, error) {
	c, err := gpiocdev.NewChip(chip, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, err
	}
	n := c.Lines()
	_ = c.Close()
	if n == 0 {
		return nil, &errcode.E{C: errcode.UnknownPin, Op: "cdev.open", Msg: chip + " has no lines"}
	}
	return &ChipRegistry{
		claims:   newClaims(boards.Board{Name: chip, GPIOMin: 0, GPIOMax: n - 1}),
		chip:     chip,
		consumer: consumer,
		pins:     make(map[int]*cdevPin),
	}, nil
}

func (r *ChipRegistry) ClaimPin(devID string, n int, fn core.PinFunc) (core.PinHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.claim(devID, n); err != nil {
		return nil, err
	}
	p := &cdevPin{reg: r, n: n, fn: fn}
	r.pins[n] = p
	return p, nil
}

func (r *ChipRegistry) ReleasePin(devID string, n int) {
	r.mu.Lock()
	p := r.pins[n]
	owned := r.release(devID, n)
	if owned {
		delete(r.pins, n)
	}
	r.mu.Unlock()
	if owned && p != nil {
		p.close()
	}
}

// Close releases every line still held.
func (r *ChipRegistry) Close() error {
	r.mu.Lock()
	pins := r.pins
	r.pins = make(map[int]*cdevPin)
	clear(r.used)
	r.mu.Unlock()
	for _, p := range pins {
		p.close()
	}
	return nil
}

// ---- pin handle ----

type cdevPin struct {
	reg *ChipRegistry
	n   int
	fn  core.PinFunc

	mu   sync.Mutex
	line *gpiocdev.Line
}

func (p *cdevPin) Pin() int                { return p.n }
func (p *cdevPin) Number() int             { return p.n }
func (p *cdevPin) AsGPIO() core.GPIOHandle { return p }

func (p *cdevPin) request(opts ...gpiocdev.LineReqOption) (*gpiocdev.Line, error) {
	opts = append(opts, gpiocdev.WithConsumer(p.reg.consumer))
	return gpiocdev.RequestLine(p.reg.chip, p.n, opts...)
}

func (p *cdevPin) ConfigureOutput(initial bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	v := level(initial)
	if p.line == nil {
		l, err := p.request(gpiocdev.AsOutput(v))
		if err != nil {
			return err
		}
		p.line = l
		return nil
	}
	return p.line.Reconfigure(gpiocdev.AsOutput(v))
}

func (p *cdevPin) ConfigureInput(pull core.Pull) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.line == nil {
		l, err := p.request(gpiocdev.AsInput, bias(pull))
		if err != nil {
			return err
		}
		p.line = l
		return nil
	}
	return p.line.Reconfigure(gpiocdev.AsInput, bias(pull))
}

func (p *cdevPin) Set(b bool) {
	p.mu.Lock()
	if p.line != nil {
		_ = p.line.SetValue(level(b))
	}
	p.mu.Unlock()
}

func (p *cdevPin) Get() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.line == nil {
		return false
	}
	v, err := p.line.Value()
	return err == nil && v == 1
}

func (p *cdevPin) AsEdgeLine(pull core.Pull) (core.EdgeLine, error) {
	if p.fn != core.FuncGPIOIn {
		return nil, errcode.Unsupported
	}
	return &cdevEdge{p: p, pull: pull}, nil
}

// close reverts an output to input on the way out, then frees the line.
func (p *cdevPin) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.line == nil {
		return
	}
	_ = p.line.Reconfigure(gpiocdev.AsInput)
	_ = p.line.Close()
	p.line = nil
}

// ---- edge line ----

// cdevEdge delivers kernel edge events. The event handler runs on the
// library's watcher goroutine, one event at a time.
type cdevEdge struct {
	p    *cdevPin
	pull core.Pull
}

func (e *cdevEdge) SetEdgeHandlers(rising, falling func()) error {
	if rising == nil || falling == nil {
		return errcode.InvalidParams
	}
	e.p.mu.Lock()
	defer e.p.mu.Unlock()
	if e.p.line != nil {
		return errcode.PinInUse
	}
	l, err := e.p.request(
		gpiocdev.AsInput,
		bias(e.pull),
		gpiocdev.WithBothEdges,
		// evt.Timestamp is on the kernel clock, not the session clock, so
		// the handlers sample their own on this goroutine.
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			switch evt.Type {
			case gpiocdev.LineEventRisingEdge:
				rising()
			case gpiocdev.LineEventFallingEdge:
				falling()
			}
		}),
	)
	if err != nil {
		return err
	}
	e.p.line = l
	return nil
}

func (e *cdevEdge) ClearEdgeHandlers() error {
	e.p.mu.Lock()
	defer e.p.mu.Unlock()
	if e.p.line == nil {
		return nil
	}
	err := e.p.line.Close()
	e.p.line = nil
	return err
}

func bias(p core.Pull) gpiocdev.LineBias {
	switch p {
	case core.PullUp:
		return gpiocdev.WithPullUp
	case core.PullDown:
		return gpiocdev.WithPullDown
	default:
		return gpiocdev.WithBiasDisabled
	}
}

func level(b bool) int {
	if b {
		return 1
	}
	return 0
}

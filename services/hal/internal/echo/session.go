package echo

import (
	"context"
	"sync/atomic"
	"time"

	"hcsr04-go/errcode"
	"hcsr04-go/services/hal/internal/util"
	"hcsr04-go/x/mathx"
	"hcsr04-go/x/timex"
)

const (
	// TriggerPulse is the minimum trigger width the module reacts to reliably.
	TriggerPulse = 10 * time.Microsecond
	// DefaultTimeout is the module's worst-case echo width with nothing in range.
	DefaultTimeout = 38 * time.Millisecond

	minTimeout = time.Millisecond
	maxTimeout = time.Second
)

var (
	ErrTimeout   = errcode.Timeout
	ErrBusy      = errcode.Busy
	ErrLineInUse = errcode.PinInUse
	ErrClosed    = errcode.Closed
)

// Phase is the session-level view of a request.
type Phase uint32

const (
	PhaseIdle Phase = iota
	PhaseTriggering
	PhaseWaiting
	PhaseCompleted
	PhaseTimedOut
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseTriggering:
		return "triggering"
	case PhaseWaiting:
		return "waiting"
	case PhaseCompleted:
		return "completed"
	case PhaseTimedOut:
		return "timed_out"
	default:
		return "invalid"
	}
}

// Result is one completed measurement.
type Result struct {
	RoundTrip  time.Duration
	Generation uint64
}

// Stats are cumulative counters for one session.
type Stats struct {
	Measurements uint32
	Timeouts     uint32
	Spurious     uint32
	Fenced       uint32
}

// Options tune a session. Zero values select defaults.
type Options struct {
	Clock   Clock
	Timeout time.Duration
	// Delay holds the trigger high; time.Sleep when nil. It must wait at
	// least the requested duration.
	Delay func(time.Duration)
}

// Session is the synchronous entry point. It serialises requests, drives the
// trigger and waits for the edge context to complete the cycle.
type Session struct {
	m       *Machine
	h       *Handlers
	trigger TriggerLine
	clock   Clock
	timeout time.Duration
	delay   func(time.Duration)

	timer  *time.Timer   // reused across measurements; owned by the sem holder
	sem    chan struct{} // 1 slot: the in-flight measurement
	phase  atomic.Uint32
	closed atomic.Bool

	measurements atomic.Uint32
	timeouts     atomic.Uint32
	fenced       atomic.Uint32
}

func newSession(trigger TriggerLine, o Options) *Session {
	if o.Clock == nil {
		o.Clock = timex.Mono{}
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Delay == nil {
		o.Delay = time.Sleep
	}
	m := &Machine{}
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	return &Session{
		timer:   timer,
		m:       m,
		h:       newHandlers(m, o.Clock),
		trigger: trigger,
		clock:   o.Clock,
		timeout: mathx.Clamp(o.Timeout, minTimeout, maxTimeout),
		delay:   o.Delay,
		sem:     make(chan struct{}, 1),
	}
}

// Measure takes one measurement, waiting for any measurement already in
// flight to finish first. It returns ErrTimeout when no complete echo was
// seen within the timeout, or ctx.Err() if ctx ends first.
func (s *Session) Measure(ctx context.Context) (Result, error) {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	defer func() { <-s.sem }()
	return s.measure(ctx)
}

// TryMeasure is Measure that fails with ErrBusy instead of waiting.
func (s *Session) TryMeasure(ctx context.Context) (Result, error) {
	select {
	case s.sem <- struct{}{}:
	default:
		return Result{}, ErrBusy
	}
	defer func() { <-s.sem }()
	return s.measure(ctx)
}

func (s *Session) measure(ctx context.Context) (Result, error) {
	if s.closed.Load() {
		return Result{}, ErrClosed
	}
	s.phase.Store(uint32(PhaseTriggering))

	s.h.drain()
	gen, ok := s.m.Arm(s.clock.Now())
	if !ok {
		// Only reachable if a cycle escaped its reset; clear it and retry once.
		s.m.Reset()
		if gen, ok = s.m.Arm(s.clock.Now()); !ok {
			s.phase.Store(uint32(PhaseIdle))
			return Result{}, ErrBusy
		}
	}

	// Armed before the pulse so that a very fast echo is not missed.
	s.trigger.SetLevel(true)
	s.delay(TriggerPulse)
	s.trigger.SetLevel(false)

	s.phase.Store(uint32(PhaseWaiting))
	util.ResetTimer(s.timer, s.timeout)
	defer s.timer.Stop()

	for {
		select {
		case <-s.h.wake:
			if res, done, err := s.settle(gen); done {
				return res, err
			}
			// Late wakeup from an earlier cycle.
		case <-s.timer.C:
			if res, done, err := s.settle(gen); done {
				return res, err
			}
			s.m.Reset()
			s.timeouts.Add(1)
			s.phase.Store(uint32(PhaseTimedOut))
			return Result{}, ErrTimeout
		case <-ctx.Done():
			s.m.Reset()
			s.phase.Store(uint32(PhaseIdle))
			return Result{}, ctx.Err()
		}
	}
}

// settle consumes cycle gen if it is Complete.
func (s *Session) settle(gen uint64) (Result, bool, error) {
	g, st := s.m.Load()
	if g != gen || st != Complete {
		return Result{}, false, nil
	}
	start, end, ok := s.m.Timestamps(gen)
	s.m.Reset()
	if !ok {
		s.fenced.Add(1)
		s.timeouts.Add(1)
		s.phase.Store(uint32(PhaseTimedOut))
		return Result{}, true, ErrTimeout
	}
	s.measurements.Add(1)
	s.phase.Store(uint32(PhaseCompleted))
	return Result{RoundTrip: end - start, Generation: gen}, true, nil
}

// Phase reports what the session is doing. Completed and TimedOut persist
// until the next measurement starts; a cancelled one leaves Idle.
func (s *Session) Phase() Phase { return Phase(s.phase.Load()) }

// State reports the state machine's current state.
func (s *Session) State() State { return s.m.State() }

// Timeout is the effective echo timeout.
func (s *Session) Timeout() time.Duration { return s.timeout }

func (s *Session) Stats() Stats {
	return Stats{
		Measurements: s.measurements.Load(),
		Timeouts:     s.timeouts.Load(),
		Spurious:     s.m.Spurious(),
		Fenced:       s.fenced.Load(),
	}
}

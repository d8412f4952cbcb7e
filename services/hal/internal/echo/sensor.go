package echo

import "hcsr04-go/errcode"

// Lines are the two digital lines of one sensor.
type Lines struct {
	Trigger TriggerLine
	Echo    EdgeLine
}

// Sensor is the exclusive handle on one sensor. It owns the edge handlers
// installed on the echo line until Close.
type Sensor struct {
	*Session
	lines Lines
}

// Open drives the trigger low, installs the edge handlers on the echo line
// and returns a ready handle. It fails with ErrLineInUse when the echo line
// already has handlers.
func Open(lines Lines, o Options) (*Sensor, error) {
	if lines.Trigger == nil || lines.Echo == nil {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "echo.open", Msg: "missing line"}
	}
	lines.Trigger.SetLevel(false)

	sess := newSession(lines.Trigger, o)
	if err := lines.Echo.SetEdgeHandlers(sess.h.Rising, sess.h.Falling); err != nil {
		return nil, &errcode.E{C: errcode.Of(err), Op: "echo.open", Err: err}
	}
	return &Sensor{Session: sess, lines: lines}, nil
}

// Close waits for an in-flight measurement, resets the machine and removes
// the edge handlers. Measurements after Close fail with ErrClosed.
// Repeated calls are no-ops.
func (s *Sensor) Close() error {
	s.sem <- struct{}{}
	defer func() { <-s.sem }()
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.m.Reset()
	s.lines.Trigger.SetLevel(false)
	return s.lines.Echo.ClearEdgeHandlers()
}

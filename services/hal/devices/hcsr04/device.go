package hcsr04

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"tinygo.org/x/drivers"

	"hcsr04-go/bus"
	"hcsr04-go/errcode"
	"hcsr04-go/services/hal/internal/core"
	"hcsr04-go/services/hal/internal/echo"
	"hcsr04-go/types"
	"hcsr04-go/x/timex"
)

const kind = types.KindDistance

var _ drivers.Sensor = (*Device)(nil)

// edgeLatencyNote goes into the capability info. Every delay between the
// physical edge and the clock read lengthens the measured round trip.
const edgeLatencyNote = "round trips include edge delivery latency: " +
	"interrupt pins read the level in the ISR before the clock is sampled; " +
	"Linux cdev lines sample the clock on the event watcher goroutine rather than " +
	"using the kernel edge timestamp, so scheduler jitter adds to each reading"

type request struct {
	reply *bus.Message // nil for poller reads
}

// Device serves one ultrasonic sensor. Reads are queued to a worker
// goroutine, one at a time; a read arriving while one is queued is refused
// with busy.
type Device struct {
	id     string
	params Params
	sensor *echo.Sensor

	pub core.EventEmitter
	reg core.ResourceRegistry
	a   core.CapAddr

	reqs   chan request
	cancel context.CancelFunc
	wg     sync.WaitGroup

	lastMm atomic.Int32
}

func (d *Device) ID() string { return d.id }

func (d *Device) Capabilities() []core.CapabilitySpec {
	return []core.CapabilitySpec{{
		Domain: d.a.Domain,
		Kind:   kind,
		Name:   d.a.Name,
		Info: types.Info{SchemaVersion: 1, Driver: "hcsr04", Detail: types.RangeInfo{
			TriggerPin:      d.params.TriggerPin,
			EchoPin:         d.params.EchoPin,
			TimeoutMs:       int(d.sensor.Timeout().Milliseconds()),
			SpeedMps:        d.params.SpeedMps,
			EdgeLatencyNote: edgeLatencyNote,
		}},
	}}
}

func (d *Device) Init(ctx context.Context) error {
	ctx, d.cancel = context.WithCancel(ctx)
	d.wg.Add(1)
	go d.loop(ctx)
	return nil
}

func (d *Device) Close() error {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
	err := d.sensor.Close()
	d.reg.ReleasePin(d.id, d.params.EchoPin)
	d.reg.ReleasePin(d.id, d.params.TriggerPin)
	return err
}

func (d *Device) Control(_ core.CapAddr, verb string, req *bus.Message) (core.EnqueueResult, error) {
	switch verb {
	case "read":
		select {
		case d.reqs <- request{reply: req}:
			return core.EnqueueResult{Deferred: req.CanReply(), OK: !req.CanReply()}, nil
		default:
			return core.EnqueueResult{Error: errcode.Busy}, nil
		}
	case "write":
		// Accepted for compatibility; the sensor has nothing to write.
		return core.EnqueueResult{OK: true}, nil
	case "stats":
		st := d.sensor.Stats()
		ok := d.pub.Emit(core.Event{
			Addr:     d.a,
			IsEvent:  true,
			EventTag: "stats",
			Payload: types.RangeStats{
				Measurements: st.Measurements,
				Timeouts:     st.Timeouts,
				Spurious:     st.Spurious,
				Fenced:       st.Fenced,
			},
			Reply: req,
		})
		if !ok {
			return core.EnqueueResult{Error: errcode.Busy}, nil
		}
		return core.EnqueueResult{Deferred: req.CanReply(), OK: !req.CanReply()}, nil
	default:
		return core.EnqueueResult{Error: errcode.Unsupported}, nil
	}
}

func (d *Device) loop(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-d.reqs:
			d.emit(d.measure(ctx, r))
		}
	}
}

func (d *Device) measure(ctx context.Context, r request) core.Event {
	res, err := d.sensor.Measure(ctx)
	now := timex.NowMs()
	if err != nil {
		code := errcode.Of(err)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			code = errcode.Canceled
		}
		return core.Event{Addr: d.a, Err: string(code), TSms: now, Reply: r.reply}
	}
	v := d.value(res, now)
	return core.Event{Addr: d.a, Payload: v, TSms: now, Reply: r.reply}
}

func (d *Device) value(res echo.Result, now int64) types.RangeValue {
	mm := echo.DistanceMm(res.RoundTrip, d.params.SpeedMps)
	d.lastMm.Store(mm)
	return types.RangeValue{RoundTripUs: timex.Micros(res.RoundTrip), DistanceMm: mm, TSms: now}
}

func (d *Device) emit(ev core.Event) {
	if !d.pub.Emit(ev) {
		println("[hcsr04]", d.id, "event dropped")
	}
}

// ---- tinygo.org/x/drivers.Sensor ----

// Update takes a measurement synchronously when Distance is requested,
// queueing behind any read already in flight.
func (d *Device) Update(which drivers.Measurement) error {
	if which&drivers.Distance == 0 {
		return nil
	}
	res, err := d.sensor.Measure(context.Background())
	if err != nil {
		return err
	}
	d.value(res, timex.NowMs())
	return nil
}

// Distance returns the last measured distance in millimetres.
func (d *Device) Distance() int32 { return d.lastMm.Load() }

package core

import (
	"context"
	"time"

	"hcsr04-go/bus"
	"hcsr04-go/errcode"
	"hcsr04-go/types"
	"hcsr04-go/x/mathx"
	"hcsr04-go/x/timex"
)

const (
	eventQueueLen = 16
	pollQueueLen  = 8

	minPollInterval = 60 * time.Millisecond
	maxPollInterval = time.Hour
)

type HAL struct {
	conn *bus.Connection
	res  Resources

	// Device registry
	dev map[string]Device // devID -> device

	// Capability index: address -> devID
	capIndex map[CapAddr]string

	cfgSub  *bus.Subscription
	ctrlSub *bus.Subscription

	// Single-threaded publication of device events
	evCh chan Event

	pollCh chan PollReq
	poller *Poller
}

func NewHAL(conn *bus.Connection, reg ResourceRegistry) *HAL {
	h := &HAL{
		conn:     conn,
		res:      Resources{Reg: reg},
		dev:      map[string]Device{},
		capIndex: map[CapAddr]string{},
		evCh:     make(chan Event, eventQueueLen),
		pollCh:   make(chan PollReq, pollQueueLen),
	}
	// HAL provides the emitter to devices.
	h.res.Pub = h
	h.poller = NewPoller(h.pollCh)
	return h
}

func (h *HAL) Run(ctx context.Context) {
	h.cfgSub = h.conn.Subscribe(TopicConfigHAL())
	h.ctrlSub = h.conn.Subscribe(ctrlWildcard())
	defer h.conn.Unsubscribe(h.cfgSub)
	defer h.conn.Unsubscribe(h.ctrlSub)

	go h.poller.Run(ctx)
	h.pubHALState("idle", "awaiting_config")

	ready := false
	for {
		select {
		case <-ctx.Done():
			h.closeDevices()
			h.pubHALState("stopped", "context_cancelled")
			return
		case msg := <-h.cfgSub.Channel():
			if v, ok := msg.Payload.(types.HALConfig); ok {
				// applyConfig is additive/idempotent for existing devices.
				h.applyConfig(ctx, v)
				if !ready {
					ready = true
					h.pubHALState("ready", "")
				}
			} else {
				println("[hal] ignoring config/hal payload of unexpected type")
			}
		case m := <-h.ctrlSub.Channel():
			if !ready {
				// Reject controls until HAL has a configuration.
				h.replyErr(m, errcode.HALNotReady)
				continue
			}
			h.handleControl(m) // strictly non-blocking
		case pr := <-h.pollCh:
			h.handlePoll(pr)
		case ev := <-h.evCh:
			// All device→HAL telemetry is published from this goroutine.
			h.handleEvent(ev)
		}
	}
}

func (h *HAL) applyConfig(ctx context.Context, cfg types.HALConfig) {
	for i := range cfg.Devices {
		dc := cfg.Devices[i]
		if _, exists := h.dev[dc.ID]; exists {
			continue
		}
		b, ok := lookupBuilder(dc.Type)
		if !ok {
			println("[hal] no builder for type:", dc.Type, "id:", dc.ID)
			continue
		}
		dev, err := b.Build(ctx, BuilderInput{
			ID:     dc.ID,
			Type:   dc.Type,
			Params: dc.Params,
			Res:    h.res,
		})
		if err != nil {
			println("[hal] build failed for:", dc.ID, "err:", err.Error())
			continue
		}
		if err := dev.Init(ctx); err != nil {
			println("[hal] init failed for:", dc.ID, "err:", err.Error())
			_ = dev.Close()
			continue
		}
		h.dev[dev.ID()] = dev

		// Register capabilities, publish retained info + initial status:down
		for _, cs := range dev.Capabilities() {
			a := CapAddr{Domain: cs.Domain, Kind: cs.Kind, Name: cs.Name}
			if a.Domain == "" {
				a.Domain = defaultDomainFor(cs.Kind)
			}
			if a.Name == "" {
				a.Name = dev.ID()
			}
			h.capIndex[a] = dev.ID()

			h.conn.Publish(h.conn.NewMessage(CapInfo(a), cs.Info, true))
			h.conn.Publish(h.conn.NewMessage(
				CapStatus(a),
				types.CapabilityStatus{Link: types.LinkDown, TSms: timex.NowMs()},
				true,
			))
		}
	}

	for _, ps := range cfg.Pollers {
		every := mathx.Clamp(time.Duration(ps.IntervalMs)*time.Millisecond, minPollInterval, maxPollInterval)
		verb := ps.Verb
		if verb == "" {
			verb = "read"
		}
		a := CapAddr{Domain: ps.Domain, Kind: ps.Kind, Name: ps.Name}
		h.poller.Upsert(a, verb, every, time.Duration(ps.JitterMs)*time.Millisecond)
	}
}

func (h *HAL) handleControl(msg *bus.Message) {
	// hal/cap/<domain>/<kind>/<name>/control/<verb>
	if msg.Topic.Len() < 7 {
		h.replyErr(msg, errcode.InvalidTopic)
		return
	}
	domain, _ := msg.Topic.At(2).(string)
	kind, _ := msg.Topic.At(3).(string)
	name, _ := msg.Topic.At(4).(string)
	verb, _ := msg.Topic.At(6).(string)
	a := CapAddr{Domain: domain, Kind: types.Kind(kind), Name: name}

	dev := h.owner(a)
	if dev == nil {
		h.replyErr(msg, errcode.UnknownCapability)
		return
	}

	res, err := dev.Control(a, verb, msg)
	if err != nil {
		h.replyFromError(msg, err)
		return
	}
	switch {
	case res.Deferred:
		// The device answers through an Event carrying msg.
	case res.OK:
		h.replyOK(msg)
	default:
		code := res.Error
		if code == "" {
			code = errcode.Busy
		}
		h.replyErr(msg, code)
	}
}

func (h *HAL) handlePoll(pr PollReq) {
	dev := h.owner(pr.Addr)
	if dev == nil {
		return
	}
	// A busy device simply skips this tick.
	_, _ = dev.Control(pr.Addr, pr.Verb, nil)
}

func (h *HAL) owner(a CapAddr) Device {
	id, ok := h.capIndex[a]
	if !ok {
		return nil
	}
	return h.dev[id]
}

func (h *HAL) handleEvent(ev Event) {
	a := ev.Addr
	if ev.TSms == 0 {
		ev.TSms = timex.NowMs()
	}

	// 1) Error → retained status:degraded; no value/event published.
	if ev.Err != "" {
		h.conn.Publish(h.conn.NewMessage(
			CapStatus(a),
			types.CapabilityStatus{Link: types.LinkDegraded, TSms: ev.TSms, Error: ev.Err},
			true,
		))
		h.replyErr(ev.Reply, errcode.Code(ev.Err))
		return
	}

	// 2) Success: event vs value
	if ev.IsEvent {
		if ev.EventTag != "" {
			h.conn.Publish(h.conn.NewMessage(capEventTagged(a, ev.EventTag), ev.Payload, false))
		} else {
			h.conn.Publish(h.conn.NewMessage(CapEvent(a), ev.Payload, false))
		}
		if ev.Reply.CanReply() {
			h.conn.Reply(ev.Reply, ev.Payload, false)
		}
		return
	}

	h.conn.Publish(h.conn.NewMessage(CapValue(a), ev.Payload, true))
	h.conn.Publish(h.conn.NewMessage(
		CapStatus(a),
		types.CapabilityStatus{Link: types.LinkUp, TSms: ev.TSms},
		true,
	))
	if ev.Reply.CanReply() {
		h.conn.Reply(ev.Reply, ev.Payload, false)
	}
	// A fresh value restarts the poll interval.
	h.poller.BumpAfter(a, "read", time.Now())
}

func (h *HAL) closeDevices() {
	for id, d := range h.dev {
		if err := d.Close(); err != nil {
			println("[hal] close failed for:", id, "err:", err.Error())
		}
		delete(h.dev, id)
	}
	clear(h.capIndex)
}

func (h *HAL) pubHALState(level, status string) {
	h.conn.Publish(h.conn.NewMessage(
		TopicHALState(),
		types.HALState{Level: level, Status: status, TSms: timex.NowMs()},
		true,
	))
}

func defaultDomainFor(kind types.Kind) string {
	switch kind {
	case types.KindDistance:
		return "range"
	default:
		return "io"
	}
}

// ---- HAL as EventEmitter (enqueue to single publisher) ----

func (h *HAL) Emit(ev Event) bool {
	select {
	case h.evCh <- ev:
		return true
	default:
		return false
	}
}

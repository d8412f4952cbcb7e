package bus

import (
	"context"
	"sort"
	"testing"
	"time"
)

// rangeTopic builds hal/cap/range/distance/<name>/<leaf...>.
func rangeTopic(name string, leaf ...string) Topic {
	t := Topic{"hal", "cap", "range", "distance", name}
	for _, l := range leaf {
		t = append(t, l)
	}
	return t
}

func TestValueReachesSensorSubscriber(t *testing.T) {
	b := NewBus(4)
	conn := b.NewConnection("test")

	sub := conn.Subscribe(rangeTopic("front", "value"))
	other := conn.Subscribe(rangeTopic("rear", "value"))

	conn.Publish(conn.NewMessage(rangeTopic("front", "value"), "1250", false))

	expectOneOf(t, sub, "1250")
	expectNoMessage(t, other)
}

func TestRetainedStatusSeenByLateSubscriber(t *testing.T) {
	b := NewBus(2)
	conn := b.NewConnection("test")

	conn.Publish(conn.NewMessage(rangeTopic("front", "status"), "up", true))
	conn.Publish(conn.NewMessage(rangeTopic("front", "status"), "degraded", true))

	sub := conn.Subscribe(rangeTopic("front", "status"))
	got := drainPayloads(t, sub, 1)
	if got[0] != "degraded" {
		t.Fatalf("retained status=%q want degraded", got[0])
	}
	expectNoMessage(t, sub)
}

// -----------------------------------------------------------------------------
// Wildcards
// -----------------------------------------------------------------------------

func TestWildcard_SensorName(t *testing.T) {
	b := NewBus(16)
	c := b.NewConnection("test")

	sValues := c.Subscribe(rangeTopic("+", "value"))
	sFront := c.Subscribe(rangeTopic("front", "+"))
	sAny := c.Subscribe(rangeTopic("+", "+"))
	sStatus := c.Subscribe(rangeTopic("+", "status"))

	c.Publish(b.NewMessage(rangeTopic("front", "value"), "v-front", false))
	expectOneOf(t, sValues, "v-front")
	expectOneOf(t, sFront, "v-front")
	expectOneOf(t, sAny, "v-front")
	expectNoMessage(t, sStatus)

	c.Publish(b.NewMessage(rangeTopic("rear", "status"), "s-rear", false))
	expectOneOf(t, sAny, "s-rear")
	expectOneOf(t, sStatus, "s-rear")
	expectNoMessage(t, sValues)
	expectNoMessage(t, sFront)

	// Control verbs sit one level deeper and miss every two-level pattern.
	c.Publish(b.NewMessage(rangeTopic("front", "control", "read"), "req", false))
	expectNoMessage(t, sValues)
	expectNoMessage(t, sFront)
	expectNoMessage(t, sAny)
	expectNoMessage(t, sStatus)
}

func TestWildcard_MultiLevel(t *testing.T) {
	b := NewBus(16)
	c := b.NewConnection("test")

	sHAL := c.Subscribe(Topic{"hal", "#"})
	sAll := c.Subscribe(Topic{"#"})
	sFront := c.Subscribe(rangeTopic("front", "#"))
	sState := c.Subscribe(Topic{"hal", "state"})

	c.Publish(b.NewMessage(Topic{"hal", "state"}, "ready", false))
	expectOneOf(t, sHAL, "ready")
	expectOneOf(t, sAll, "ready")
	expectOneOf(t, sState, "ready")
	expectNoMessage(t, sFront)

	c.Publish(b.NewMessage(rangeTopic("front"), "bare", false))
	expectOneOf(t, sHAL, "bare")
	expectOneOf(t, sAll, "bare")
	expectOneOf(t, sFront, "bare")
	expectNoMessage(t, sState)

	c.Publish(b.NewMessage(rangeTopic("front", "control", "stats"), "stats", false))
	expectOneOf(t, sHAL, "stats")
	expectOneOf(t, sAll, "stats")
	expectOneOf(t, sFront, "stats")
	expectNoMessage(t, sState)
}

func TestWildcard_RetainedDelivery(t *testing.T) {
	b := NewBus(32)
	c := b.NewConnection("test")

	c.Publish(b.NewMessage(rangeTopic("front", "info"), "i-front", true))
	c.Publish(b.NewMessage(rangeTopic("front", "status"), "s-front", true))
	c.Publish(b.NewMessage(rangeTopic("rear", "status"), "s-rear", true))
	c.Publish(b.NewMessage(rangeTopic("rear", "value"), "v-rear", true))

	sAll := c.Subscribe(rangeTopic("+", "#"))
	assertUnorderedEqual(t, drainPayloads(t, sAll, 4), []string{"i-front", "s-front", "s-rear", "v-rear"})

	sStatus := c.Subscribe(rangeTopic("+", "status"))
	assertUnorderedEqual(t, drainPayloads(t, sStatus, 2), []string{"s-front", "s-rear"})

	sRear := c.Subscribe(rangeTopic("rear", "+"))
	assertUnorderedEqual(t, drainPayloads(t, sRear, 2), []string{"s-rear", "v-rear"})
}

func TestWildcard_RetainedClear(t *testing.T) {
	b := NewBus(16)
	c := b.NewConnection("test")

	c.Publish(b.NewMessage(rangeTopic("front", "info"), "gone", true))
	c.Publish(b.NewMessage(rangeTopic("rear", "info"), "kept", true))

	// A nil retained payload clears the slot, as when a device is removed.
	c.Publish(b.NewMessage(rangeTopic("front", "info"), nil, true))

	s := c.Subscribe(rangeTopic("+", "info"))
	got := drainPayloads(t, s, 1)
	if got[0] != "kept" {
		t.Fatalf("expected only 'kept' after clear, got %v", got)
	}
	expectNoMessage(t, s)
}

func TestWildcard_NoMatchCases(t *testing.T) {
	b := NewBus(8)
	c := b.NewConnection("test")

	s := c.Subscribe(rangeTopic("+", "control", "read"))

	c.Publish(b.NewMessage(rangeTopic("front", "read"), "x", false))
	expectNoMessage(t, s)

	c.Publish(b.NewMessage(rangeTopic("front", "control", "write"), "y", false))
	expectNoMessage(t, s)

	c.Publish(b.NewMessage(Topic{"hal", "cap", "range", "temperature", "front", "control", "read"}, "z", false))
	expectNoMessage(t, s)
}

// -----------------------------------------------------------------------------
// Request–Reply
// -----------------------------------------------------------------------------

func TestRequestReply_RequestWait(t *testing.T) {
	b := NewBus(8)
	reqConn := b.NewConnection("requester")
	respConn := b.NewConnection("responder")

	reqTopic := rangeTopic("front", "control", "read")
	respSub := respConn.Subscribe(reqTopic)
	defer respConn.Unsubscribe(respSub)

	go func() {
		if msg, ok := <-respSub.Channel(); ok {
			respConn.Reply(msg, "1250", false)
		}
	}()

	req := b.NewMessage(reqTopic, nil, false)
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	reply, err := reqConn.RequestWait(ctx, req)
	if err != nil {
		t.Fatalf("unexpected error waiting for reply: %v", err)
	}
	if got, ok := reply.Payload.(string); !ok || got != "1250" {
		t.Fatalf("unexpected reply payload: %#v", reply.Payload)
	}
	if len(req.ReplyTo) == 0 {
		t.Fatal("request lacks ReplyTo after RequestWait")
	}
	if !topicsEqual(reply.Topic, req.ReplyTo) {
		t.Fatalf("reply topic %v != request ReplyTo %v", reply.Topic, req.ReplyTo)
	}
}

func TestRequestReply_Timeout(t *testing.T) {
	b := NewBus(8)
	reqConn := b.NewConnection("requester")

	req := b.NewMessage(rangeTopic("missing", "control", "read"), nil, false)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := reqConn.RequestWait(ctx, req)
	if err == nil {
		t.Fatal("expected timeout error, got nil")
	}
}

func TestRequestReply_ManualSubscription(t *testing.T) {
	b := NewBus(8)
	reqConn := b.NewConnection("requester")
	respConn := b.NewConnection("responder")

	reqTopic := rangeTopic("rear", "control", "write")
	reqSub := respConn.Subscribe(reqTopic)
	defer respConn.Unsubscribe(reqSub)

	reqMsg := b.NewMessage(reqTopic, nil, false)
	replySub := reqConn.Request(reqMsg)
	defer reqConn.Unsubscribe(replySub)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if msg, ok := <-reqSub.Channel(); ok {
			respConn.Reply(msg, map[string]any{"round_trip_us": 580}, false)
		}
	}()

	select {
	case got := <-replySub.Channel():
		m, ok := got.Payload.(map[string]any)
		if !ok {
			t.Fatalf("unexpected reply type: %#v", got.Payload)
		}
		if m["round_trip_us"] != 580 {
			t.Fatalf("unexpected reply content: %#v", m)
		}
	case <-time.After(300 * time.Millisecond):
		t.Fatal("timeout waiting for manual reply")
	}

	<-done
}

// -----------------------------------------------------------------------------
// helpers
// -----------------------------------------------------------------------------

func topicsEqual(a, b Topic) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func expectOneOf(t *testing.T, sub *Subscription, want string) {
	t.Helper()
	select {
	case got := <-sub.Channel():
		s, ok := got.Payload.(string)
		if !ok || s != want {
			t.Fatalf("unexpected payload: %v (want %q)", got.Payload, want)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("timeout waiting for %q", want)
	}
}

func expectNoMessage(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case got := <-sub.Channel():
		t.Fatalf("unexpected message: %#v", got)
	case <-time.After(60 * time.Millisecond):
	}
}

func drainPayloads(t *testing.T, sub *Subscription, n int) []string {
	t.Helper()
	var out []string
	deadline := time.Now().Add(300 * time.Millisecond)
	for len(out) < n && time.Now().Before(deadline) {
		select {
		case m := <-sub.Channel():
			if s, ok := m.Payload.(string); ok {
				out = append(out, s)
			} else {
				t.Fatalf("non-string payload in drain: %#v", m.Payload)
			}
		case <-time.After(10 * time.Millisecond):
		}
	}
	if len(out) != n {
		t.Fatalf("drainPayloads: expected %d messages, got %d (%v)", n, len(out), out)
	}
	return out
}

func assertUnorderedEqual(t *testing.T, got, want []string) {
	t.Helper()
	sort.Strings(got)
	sort.Strings(want)
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d (%v vs %v)", len(got), len(want), got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("mismatch at %d: got %q, want %q (got=%v want=%v)", i, got[i], want[i], got, want)
		}
	}
}

func TestTopic_InvalidTokenPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic for non-comparable token, got none")
		}
	}()

	// []byte is not comparable, so T should panic
	_ = T([]byte{1, 2, 3})
}

func TestUnsubscribeTwiceIsNoop(t *testing.T) {
	b := NewBus(2)
	c := b.NewConnection("test")
	s := c.Subscribe(T("hal", "state"))
	c.Unsubscribe(s)
	c.Unsubscribe(s)

	if _, ok := <-s.Channel(); ok {
		t.Fatal("expected closed channel after unsubscribe")
	}
	// Publishing after the last subscriber left must not panic.
	c.Publish(b.NewMessage(T("hal", "state"), "ready", false))
}

func TestQueueOverflowDropsOldest(t *testing.T) {
	b := NewBus(2)
	c := b.NewConnection("test")
	s := c.Subscribe(rangeTopic("front", "value"))

	for _, p := range []string{"v1", "v2", "v3"} {
		c.Publish(b.NewMessage(rangeTopic("front", "value"), p, false))
	}
	got := drainPayloads(t, s, 2)
	if got[0] != "v2" || got[1] != "v3" {
		t.Fatalf("expected newest two messages, got %v", got)
	}
}

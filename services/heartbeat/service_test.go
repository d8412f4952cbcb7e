package heartbeat

import (
	"context"
	"strings"
	"testing"
	"time"

	"hcsr04-go/bus"
	"hcsr04-go/types"
)

func TestSummaryReportsStateAndLatestValues(t *testing.T) {
	b := bus.NewBus(8)
	pub := b.NewConnection("hal")
	pub.Publish(pub.NewMessage(topicHALState, types.HALState{Level: "ready"}, true))
	pub.Publish(pub.NewMessage(bus.T("hal", "cap", "range", "distance", "rear", "value"),
		types.RangeValue{RoundTripUs: 2915, DistanceMm: 500}, true))
	pub.Publish(pub.NewMessage(bus.T("hal", "cap", "range", "distance", "front", "value"),
		types.RangeValue{RoundTripUs: 1166, DistanceMm: 200}, true))
	pub.Publish(pub.NewMessage(topicConfigHeartbeat, map[string]any{"interval": 0.02}, true))

	lines := make(chan string, 8)
	s := &Service{Out: func(l string) {
		select {
		case lines <- l:
		default:
		}
	}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = s.Start(ctx, b.NewConnection("heartbeat"))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case l := <-lines:
			if strings.HasSuffix(l, "hal=ready front=1166us/200mm rear=2915us/500mm") {
				return
			}
		case <-deadline:
			t.Fatal("no complete summary")
		}
	}
}

func TestIntervalRejectsBadPayloads(t *testing.T) {
	for _, p := range []any{nil, "5", map[string]any{}, map[string]any{"interval": -1.0}} {
		if _, ok := interval(p); ok {
			t.Fatalf("accepted %#v", p)
		}
	}
	if d, ok := interval(map[string]any{"interval": 1.5}); !ok || d != 1500*time.Millisecond {
		t.Fatalf("d=%v ok=%v", d, ok)
	}
}

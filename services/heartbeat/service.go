// Package heartbeat prints a periodic one-line summary of HAL state and the
// latest range readings.
package heartbeat

import (
	"context"
	"sort"
	"time"

	"hcsr04-go/bus"
	"hcsr04-go/types"
	"hcsr04-go/x/conv"
)

var (
	topicConfigHeartbeat = bus.T("config", "heartbeat")
	topicHALState        = bus.T("hal", "state")
	topicRangeValues     = bus.T("hal", "cap", "range", "distance", "+", "value")
)

const defaultInterval = 10 * time.Second

type Service struct {
	// Out receives each summary line; nil prints to the console.
	Out func(line string)

	state string
	last  map[string]types.RangeValue
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigHeartbeat)
	defer conn.Unsubscribe(cfgSub)
	stateSub := conn.Subscribe(topicHALState)
	defer conn.Unsubscribe(stateSub)
	valSub := conn.Subscribe(topicRangeValues)
	defer conn.Unsubscribe(valSub)

	s.last = map[string]types.RangeValue{}
	tick := time.NewTicker(defaultInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			println("[heartbeat] stopping")
			return
		case t := <-tick.C:
			s.emit(s.summary(t))
		case m := <-stateSub.Channel():
			if st, ok := m.Payload.(types.HALState); ok {
				s.state = st.Level
			}
		case m := <-valSub.Channel():
			name, _ := m.Topic.At(4).(string)
			if v, ok := m.Payload.(types.RangeValue); ok {
				s.last[name] = v
			}
		case msg := <-cfgSub.Channel():
			if iv, ok := interval(msg.Payload); ok {
				tick.Reset(iv)
				println("[heartbeat] interval set to", iv.String())
			}
		}
	}
}

// interval accepts {"interval": seconds} as decoded from the embedded JSON.
func interval(payload any) (time.Duration, bool) {
	m, ok := payload.(map[string]any)
	if !ok {
		return 0, false
	}
	secs, ok := m["interval"].(float64)
	if !ok || secs <= 0 {
		return 0, false
	}
	return time.Duration(secs * float64(time.Second)), true
}

func (s *Service) summary(t time.Time) string {
	line := t.Format("15:04:05") + " hal=" + s.state
	if s.state == "" {
		line += "unknown"
	}
	names := make([]string, 0, len(s.last))
	for n := range s.last {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		v := s.last[n]
		var us, mm [20]byte
		line += " " + n + "=" + string(conv.Itoa(us[:], v.RoundTripUs)) + "us/" +
			string(conv.Itoa(mm[:], int64(v.DistanceMm))) + "mm"
	}
	return line
}

func (s *Service) emit(line string) {
	if s.Out != nil {
		s.Out(line)
		return
	}
	println("[heartbeat]", line)
}

// Start the heartbeat service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}

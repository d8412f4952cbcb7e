// services/hal/hal_host.go
//go:build !rp2040 && !rp2350

package hal

import (
	"context"
	"time"

	"hcsr04-go/bus"
	"hcsr04-go/services/hal/internal/platform"
)

// Target is one simulated object in front of a sensor wired to Trigger/Echo.
// RoundTrip returns the echo width per trigger; zero or negative means
// nothing in range.
type Target struct {
	Trigger, Echo int
	RoundTrip     func() time.Duration
}

// RunSimulated runs the HAL on simulated host pins with a simulated module
// answering each target's trigger.
func RunSimulated(ctx context.Context, conn *bus.Connection, targets ...Target) {
	reg := platform.NewHostRegistry()
	for _, t := range targets {
		reg.Simulate(ctx, t.Trigger, t.Echo, platform.EchoModel(t.RoundTrip))
	}
	run(ctx, conn, reg)
}

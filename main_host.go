//go:build !rp2040 && !rp2350

package main

import (
	"context"
	"os"
	"time"

	"hcsr04-go/bus"
	"hcsr04-go/services/console"
	"hcsr04-go/services/hal"
)

const (
	deviceID  = "host"
	bootDelay = 0
)

// runHAL simulates an object sweeping from 20 cm to 2 m and back, leaving
// range for one reading in every sixteen.
func runHAL(ctx context.Context, conn *bus.Connection) {
	n := 0
	sweep := func() time.Duration {
		n++
		if n%16 == 0 {
			return 0
		}
		step := n % 32
		if step > 16 {
			step = 32 - step
		}
		return time.Duration(1166+step*640) * time.Microsecond
	}
	hal.RunSimulated(ctx, conn, hal.Target{Trigger: 16, Echo: 17, RoundTrip: sweep})
}

func consolePort() console.Port { return console.NewStream(os.Stdin, os.Stdout) }

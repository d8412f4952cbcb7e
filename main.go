// Command hcsr04-go runs the ranging firmware: embedded config, HAL with the
// HC-SR04 driver, a heartbeat summary and the serial console. Host builds
// run the same stack against a simulated sensor on stdio.
package main

import (
	"context"
	"time"

	"hcsr04-go/bus"
	"hcsr04-go/services/config"
	"hcsr04-go/services/console"
	"hcsr04-go/services/heartbeat"
)

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(bootDelay)
	println("[main] boot", deviceID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := bus.NewBus(16)

	config.NewConfigService().Start(config.WithDevice(ctx, deviceID), b.NewConnection("config"))
	_ = (&heartbeat.Service{}).Start(ctx, b.NewConnection("heartbeat"))

	halDone := make(chan struct{})
	go func() {
		runHAL(ctx, b.NewConnection("hal"))
		close(halDone)
	}()

	console.New(b.NewConnection("console"), consolePort()).Run(ctx)

	cancel()
	<-halDone
}

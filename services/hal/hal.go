// services/hal/hal.go
package hal

import (
	"context"

	"hcsr04-go/bus"
	"hcsr04-go/services/hal/internal/core"
	"hcsr04-go/services/hal/internal/platform"
	"hcsr04-go/types"

	// Device builders register themselves with core.
	_ "hcsr04-go/services/hal/devices/hcsr04"
)

// Run starts the HAL on the platform's default resource registry and blocks
// until ctx is done. Configuration arrives on "config/hal".
func Run(ctx context.Context, conn *bus.Connection) {
	run(ctx, conn, platform.DefaultRegistry())
}

func run(ctx context.Context, conn *bus.Connection, reg core.ResourceRegistry) {
	println("[hal] starting on board", platform.DefaultBoard().Name)
	core.NewHAL(conn, reg).Run(ctx)
	println("[hal] stopped")
}

// ConsolePins returns the board's recommended UART0 TX/RX GPIOs.
func ConsolePins() (tx, rx int) {
	d := platform.DefaultBoard().Defaults
	return d.UART0_TX, d.UART0_RX
}

const distanceKind = types.KindDistance

// Capability topics, for clients that talk to the HAL over the bus.

func ControlTopic(domain, name, verb string) bus.Topic {
	return core.CapCtrl(core.CapAddr{Domain: domain, Kind: distanceKind, Name: name}, verb)
}

func ValueTopic(domain, name string) bus.Topic {
	return core.CapValue(core.CapAddr{Domain: domain, Kind: distanceKind, Name: name})
}

func StatusTopic(domain, name string) bus.Topic {
	return core.CapStatus(core.CapAddr{Domain: domain, Kind: distanceKind, Name: name})
}

func StateTopic() bus.Topic { return core.TopicHALState() }

//go:build rp2040 || rp2350

package main

import (
	"time"

	"hcsr04-go/services/console"
	"hcsr04-go/services/hal"
)

const (
	deviceID    = "pico"
	bootDelay   = 2 * time.Second
	consoleBaud = 115200
)

var runHAL = hal.Run

func consolePort() console.Port {
	tx, rx := hal.ConsolePins()
	return console.UART0(consoleBaud, tx, rx)
}

//go:build rp2040 || rp2350

package console

import (
	"machine"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
)

// UART0 configures the first hardware UART on the given GPIOs and returns
// it as a console port. Zero baud selects the uartx default.
func UART0(baud uint32, tx, rx int) Port {
	hw := uartx.UART0
	if err := hw.Configure(uartx.UARTConfig{
		BaudRate: baud,
		TX:       machine.Pin(tx),
		RX:       machine.Pin(rx),
	}); err != nil {
		println("[console] uart0 configure failed:", err.Error())
	}
	return hw
}

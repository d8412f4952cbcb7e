package boards

// Board describes what the PCB/SoC can do (GPIO range, UARTs) plus the
// recommended default wiring for a ranging sensor. Mapping from GPIO number
// to a concrete pin happens in the platform registries.
type Board struct {
	Name             string
	GPIOMin, GPIOMax int

	UART []string

	// Recommended default aliases for setups and tools. Plain GPIO numbers.
	Defaults struct {
		UART0_TX, UART0_RX int
		Trigger, Echo      int
	}
}

// Pico covers the Raspberry Pi Pico and Pico 2 (user GPIOs GP0..GP28).
var Pico = func() Board {
	b := Board{Name: "pico", GPIOMin: 0, GPIOMax: 28, UART: []string{"uart0", "uart1"}}
	b.Defaults.UART0_TX, b.Defaults.UART0_RX = 0, 1
	b.Defaults.Trigger, b.Defaults.Echo = 16, 17
	return b
}()

// Host is the simulated board used by host builds and tests.
var Host = func() Board {
	b := Board{Name: "host", GPIOMin: 0, GPIOMax: 63}
	b.Defaults.Trigger, b.Defaults.Echo = 16, 17
	return b
}()

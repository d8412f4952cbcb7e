// services/hal/hal_linux.go
//go:build linux && !rp2040 && !rp2350 && !baremetal

package hal

import (
	"context"

	"hcsr04-go/bus"
	"hcsr04-go/services/hal/internal/platform"
)

// RunChip runs the HAL on a Linux GPIO character device (e.g. "gpiochip0").
// Lines are labelled with consumer. It returns once ctx is done and every
// line has been released.
func RunChip(ctx context.Context, conn *bus.Connection, chip, consumer string) error {
	reg, err := platform.NewChipRegistry(chip, consumer)
	if err != nil {
		return err
	}
	defer reg.Close()
	run(ctx, conn, reg)
	return nil
}

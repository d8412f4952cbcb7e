package main

import (
	"fmt"
	"time"
)

// speedOfSound in air at about 20 °C, metres per second.
const speedOfSound = 343.0

// metres converts an echo round trip to the one-way distance.
func metres(rt time.Duration) float64 {
	return rt.Seconds() * speedOfSound / 2
}

func validUnit(unit string) bool {
	switch unit {
	case "us", "mm", "cm", "in":
		return true
	}
	return false
}

func formatReading(rt time.Duration, unit string) string {
	m := metres(rt)
	switch unit {
	case "us":
		return fmt.Sprintf("%d us", rt.Microseconds())
	case "mm":
		return fmt.Sprintf("%.0f mm", m*1000)
	case "in":
		return fmt.Sprintf("%.1f in", m/0.0254)
	default:
		return fmt.Sprintf("%.1f cm", m*100)
	}
}

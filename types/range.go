package types

// ---- Ultrasonic range capability ----

// RangeInfo is the retained info detail for a distance capability.
type RangeInfo struct {
	TriggerPin int     `json:"trigger_pin"`
	EchoPin    int     `json:"echo_pin"`
	TimeoutMs  int     `json:"timeout_ms"`
	SpeedMps   float64 `json:"speed_mps"`
	// Edge delivery latency adds directly to every round trip.
	EdgeLatencyNote string `json:"edge_latency_note,omitempty"`
}

// RangeValue is one completed measurement.
type RangeValue struct {
	RoundTripUs int64 `json:"round_trip_us"`
	DistanceMm  int32 `json:"distance_mm"`
	TSms        int64 `json:"ts_ms"`
}

// RangeStats are cumulative counters published with ".../event/stats".
type RangeStats struct {
	Measurements uint32 `json:"measurements"`
	Timeouts     uint32 `json:"timeouts"`
	Spurious     uint32 `json:"spurious"`
	Fenced       uint32 `json:"fenced"`
}

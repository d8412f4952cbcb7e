package echo

import "time"

// SpeedOfSound in dry air at 20 °C, metres per second.
const SpeedOfSound = 343.0

// Distance converts an echo round trip to a one-way distance in metres.
func Distance(roundTrip time.Duration, speedMps float64) float64 {
	if roundTrip <= 0 {
		return 0
	}
	if speedMps <= 0 {
		speedMps = SpeedOfSound
	}
	return roundTrip.Seconds() * speedMps / 2
}

// DistanceMm is Distance in whole millimetres, rounded to nearest.
func DistanceMm(roundTrip time.Duration, speedMps float64) int32 {
	return int32(Distance(roundTrip, speedMps)*1000 + 0.5)
}

func (r Result) Millimeters() float64 { return Distance(r.RoundTrip, SpeedOfSound) * 1000 }
func (r Result) Centimeters() float64 { return Distance(r.RoundTrip, SpeedOfSound) * 100 }
func (r Result) Inches() float64      { return Distance(r.RoundTrip, SpeedOfSound) / 0.0254 }

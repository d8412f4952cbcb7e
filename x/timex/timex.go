package timex

import "time"

// NowMs returns Unix milliseconds as int64.
func NowMs() int64 { return time.Now().UnixMilli() }

var epoch = time.Now()

// Mono is a monotonic clock counting from process start. It reads the
// runtime's monotonic reading, so wall-clock steps do not affect it.
type Mono struct{}

func (Mono) Now() time.Duration { return time.Since(epoch) }

// Micros converts d to whole microseconds, truncating.
func Micros(d time.Duration) int64 { return int64(d / time.Microsecond) }

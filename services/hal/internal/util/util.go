// services/hal/internal/util/util.go
package util

import (
	"encoding/json"
	"time"
)

// ResetTimer re-arms t for d, discarding a pending fire. Negative d fires
// immediately.
func ResetTimer(t *time.Timer, d time.Duration) {
	if d < 0 {
		d = 0
	}
	if !t.Stop() {
		DrainTimer(t)
	}
	t.Reset(d)
}

func DrainTimer(t *time.Timer) {
	select {
	case <-t.C:
	default:
	}
}

// DecodeJSON decodes src into dst. src may be raw JSON ([]byte or string) or
// any JSON-shaped value (for example map[string]any from a YAML or JSON
// config), which is re-encoded first.
func DecodeJSON[T any](src any, dst *T) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return json.Unmarshal(b, dst)
	}
}

package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Key: device ID (same value placed in ctx under CtxDeviceKey)
// Val: raw JSON bytes for that device
// -----------------------------------------------------------------------------

// Pico: sensor on GP16 (trigger) / GP17 (echo), console on UART0.
const cfgPico = `{
  "hal": {
    "devices": [
      {
        "id": "front",
        "type": "hcsr04",
        "params": {"trigger_pin": 16, "echo_pin": 17, "pull": "down", "timeout_ms": 38}
      }
    ],
    "pollers": [
      {"domain": "range", "kind": "distance", "name": "front", "verb": "read", "interval_ms": 1000, "jitter_ms": 50}
    ]
  },
  "console": {"default": "front", "prompt": "> "},
  "heartbeat": {"interval": 10}
}`

// Host simulation: same wiring on simulated pins, no poller.
const cfgHost = `{
  "hal": {
    "devices": [
      {"id": "front", "type": "hcsr04", "params": {"trigger_pin": 16, "echo_pin": 17}}
    ]
  },
  "console": {"default": "front", "prompt": "> "}
}`

var embeddedConfigs = map[string][]byte{
	"pico": []byte(cfgPico),
	"host": []byte(cfgHost),
}

//go:build linux

package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"hcsr04-go/types"
)

// fileConfig is the on-disk YAML layout.
//
//	chip: gpiochip0
//	consumer: rangerd
//	console:
//	  default: front
//	sensors:
//	  - id: front
//	    trigger_pin: 23
//	    echo_pin: 24
//	    pull: down
//	    poll_ms: 500
type fileConfig struct {
	Chip     string              `yaml:"chip"`
	Consumer string              `yaml:"consumer"`
	Console  types.ConsoleConfig `yaml:"console"`
	Sensors  []sensorConfig      `yaml:"sensors"`
}

type sensorConfig struct {
	ID         string  `yaml:"id"`
	Name       string  `yaml:"name,omitempty"`
	TriggerPin int     `yaml:"trigger_pin"`
	EchoPin    int     `yaml:"echo_pin"`
	Pull       string  `yaml:"pull,omitempty"`
	TimeoutMs  int     `yaml:"timeout_ms,omitempty"`
	SpeedMps   float64 `yaml:"speed_mps,omitempty"`
	PollMs     uint32  `yaml:"poll_ms,omitempty"`
	JitterMs   uint16  `yaml:"jitter_ms,omitempty"`
}

func loadConfig(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseConfig(data)
}

func parseConfig(data []byte) (*fileConfig, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if fc.Chip == "" {
		fc.Chip = "gpiochip0"
	}
	if fc.Consumer == "" {
		fc.Consumer = "rangerd"
	}
	seen := map[string]bool{}
	for i, s := range fc.Sensors {
		if s.ID == "" {
			return nil, fmt.Errorf("sensor %d: missing id", i)
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("sensor %q: duplicate id", s.ID)
		}
		seen[s.ID] = true
		if s.TriggerPin == s.EchoPin {
			return nil, fmt.Errorf("sensor %q: trigger and echo share GPIO %d", s.ID, s.EchoPin)
		}
	}
	if fc.Console.Default == "" && len(fc.Sensors) > 0 {
		fc.Console.Default = fc.Sensors[0].capName()
	}
	return &fc, nil
}

func (s sensorConfig) capName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}

// halConfig converts the file layout to the HAL's configuration message.
// Sensor params use the same keys the hcsr04 builder decodes.
func (fc *fileConfig) halConfig() types.HALConfig {
	var cfg types.HALConfig
	for _, s := range fc.Sensors {
		params := map[string]any{
			"trigger_pin": s.TriggerPin,
			"echo_pin":    s.EchoPin,
		}
		if s.Name != "" {
			params["name"] = s.Name
		}
		if s.Pull != "" {
			params["pull"] = s.Pull
		}
		if s.TimeoutMs > 0 {
			params["timeout_ms"] = s.TimeoutMs
		}
		if s.SpeedMps > 0 {
			params["speed_mps"] = s.SpeedMps
		}
		cfg.Devices = append(cfg.Devices, types.HALDevice{ID: s.ID, Type: "hcsr04", Params: params})
		if s.PollMs > 0 {
			cfg.Pollers = append(cfg.Pollers, types.PollSpec{
				Domain:     "range",
				Kind:       types.KindDistance,
				Name:       s.capName(),
				Verb:       "read",
				IntervalMs: s.PollMs,
				JitterMs:   s.JitterMs,
			})
		}
	}
	return cfg
}

package core

import "hcsr04-go/bus"

// Opaque-topic helpers

func T(tokens ...bus.Token) bus.Topic { return bus.T(tokens...) }

func TopicConfigHAL() bus.Topic { return T("config", "hal") }

func TopicHALState() bus.Topic { return T("hal", "state") }

// hal/cap/<domain>/<kind>/<name>/...
func CapBase(a CapAddr) bus.Topic { return T("hal", "cap", a.Domain, string(a.Kind), a.Name) }

func CapInfo(a CapAddr) bus.Topic   { return CapBase(a).Append("info") }
func CapStatus(a CapAddr) bus.Topic { return CapBase(a).Append("status") }
func CapValue(a CapAddr) bus.Topic  { return CapBase(a).Append("value") }
func CapEvent(a CapAddr) bus.Topic  { return CapBase(a).Append("event") }

func capEventTagged(a CapAddr, tag string) bus.Topic { return CapEvent(a).Append(tag) }

// capability control
// hal/cap/<domain>/<kind>/<name>/control/<verb>
func CapCtrl(a CapAddr, verb string) bus.Topic { return CapBase(a).Append("control", verb) }

// hal/cap/+/+/+/control/+
func ctrlWildcard() bus.Topic {
	return T("hal", "cap", "+", "+", "+", "control", "+")
}

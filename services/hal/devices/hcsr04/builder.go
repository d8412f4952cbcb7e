package hcsr04

import (
	"context"
	"time"

	"hcsr04-go/errcode"
	"hcsr04-go/services/hal/internal/core"
	"hcsr04-go/services/hal/internal/echo"
	"hcsr04-go/x/strx"
)

func init() { core.RegisterBuilder("hcsr04", builder{}) }

// Params configure one sensor. Zero values select defaults.
type Params struct {
	TriggerPin int     `json:"trigger_pin"`
	EchoPin    int     `json:"echo_pin"`
	Pull       string  `json:"pull,omitempty"`       // echo input bias: "none","up","down"
	TimeoutMs  int     `json:"timeout_ms,omitempty"` // default 38
	SpeedMps   float64 `json:"speed_mps,omitempty"`  // default 343
	Domain     string  `json:"domain,omitempty"`     // default "range"
	Name       string  `json:"name,omitempty"`       // default device ID
}

type builder struct{}

func (builder) Build(ctx context.Context, in core.BuilderInput) (core.Device, error) {
	p, err := core.DecodeParams[Params](in.Params)
	if err != nil {
		return nil, err
	}
	if p.TriggerPin < 0 || p.EchoPin < 0 || p.TriggerPin == p.EchoPin {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "hcsr04.build", Msg: "pins"}
	}
	if p.TimeoutMs < 0 || p.SpeedMps < 0 {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "hcsr04.build", Msg: "timeout/speed"}
	}
	p.Domain = strx.Coalesce(p.Domain, "range")
	p.Name = strx.Coalesce(p.Name, in.ID)
	if p.SpeedMps == 0 {
		p.SpeedMps = echo.SpeedOfSound
	}
	timeout := echo.DefaultTimeout
	if p.TimeoutMs > 0 {
		timeout = time.Duration(p.TimeoutMs) * time.Millisecond
	}

	reg := in.Res.Reg
	th, err := reg.ClaimPin(in.ID, p.TriggerPin, core.FuncGPIOOut)
	if err != nil {
		return nil, err
	}
	eh, err := reg.ClaimPin(in.ID, p.EchoPin, core.FuncGPIOIn)
	if err != nil {
		reg.ReleasePin(in.ID, p.TriggerPin)
		return nil, err
	}
	release := func() {
		reg.ReleasePin(in.ID, p.EchoPin)
		reg.ReleasePin(in.ID, p.TriggerPin)
	}

	trig := th.AsGPIO()
	if err := trig.ConfigureOutput(false); err != nil {
		release()
		return nil, err
	}
	line, err := eh.AsEdgeLine(core.ParsePull(p.Pull))
	if err != nil {
		release()
		return nil, err
	}
	s, err := echo.Open(echo.Lines{Trigger: trigger{trig}, Echo: line}, echo.Options{Timeout: timeout})
	if err != nil {
		release()
		return nil, err
	}
	println("[hcsr04]", in.ID, "trigger", p.TriggerPin, "echo", p.EchoPin)

	return &Device{
		id:     in.ID,
		params: p,
		sensor: s,
		pub:    in.Res.Pub,
		reg:    reg,
		a:      core.CapAddr{Domain: p.Domain, Kind: kind, Name: p.Name},
		reqs:   make(chan request, 1),
	}, nil
}

// trigger adapts a GPIO output to echo.TriggerLine.
type trigger struct{ g core.GPIOHandle }

func (t trigger) SetLevel(high bool) { t.g.Set(high) }

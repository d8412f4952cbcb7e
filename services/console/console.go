// Package console serves a line-oriented command console over a serial
// port. It answers "read" with the round trip in microseconds, or -1 when
// the measurement failed, and accepts "write" without effect.
package console

import (
	"context"
	"errors"
	"strings"
	"time"

	"hcsr04-go/bus"
	"hcsr04-go/errcode"
	"hcsr04-go/services/hal"
	"hcsr04-go/types"
	"hcsr04-go/x/conv"
	"hcsr04-go/x/strx"

	"github.com/google/shlex"
)

const (
	defaultDomain = "range"
	defaultPrompt = "> "

	requestTimeout = time.Second
	maxLine        = 256
)

// Port is a byte stream the console reads commands from and writes replies
// to. uartx.UART satisfies it directly.
type Port interface {
	Write(p []byte) (int, error)
	RecvSomeContext(ctx context.Context, buf []byte) (int, error)
}

type Console struct {
	conn *bus.Connection
	port Port
	cfg  types.ConsoleConfig
}

func New(conn *bus.Connection, port Port) *Console {
	return &Console{
		conn: conn,
		port: port,
		cfg:  types.ConsoleConfig{Domain: defaultDomain, Prompt: defaultPrompt},
	}
}

// TopicConfig is where the console takes its configuration from.
func TopicConfig() bus.Topic { return bus.T("config", "console") }

// Run serves commands until ctx is done or the port fails.
func (c *Console) Run(ctx context.Context) {
	cfgSub := c.conn.Subscribe(TopicConfig())
	defer c.conn.Unsubscribe(cfgSub)

	// Retained configuration applies before the first prompt.
	for drained := false; !drained; {
		select {
		case m := <-cfgSub.Channel():
			c.onConfig(m)
		default:
			drained = true
		}
	}

	lines := make(chan string, 1)
	go c.readLines(ctx, lines)

	println("[console] ready")
	c.prompt()
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-cfgSub.Channel():
			c.onConfig(m)
		case line, ok := <-lines:
			if !ok {
				println("[console] port closed")
				return
			}
			if out := c.Exec(ctx, line); out != "" {
				c.write(out + "\r\n")
			}
			c.prompt()
		}
	}
}

func (c *Console) onConfig(m *bus.Message) {
	if v, ok := m.Payload.(types.ConsoleConfig); ok {
		c.apply(v)
		return
	}
	println("[console] ignoring config/console payload of unexpected type")
}

func (c *Console) apply(v types.ConsoleConfig) {
	v.Domain = strx.Coalesce(v.Domain, defaultDomain)
	v.Prompt = strx.Coalesce(v.Prompt, c.cfg.Prompt)
	c.cfg = v
}

// Exec runs one command line and returns the text to print.
func (c *Console) Exec(ctx context.Context, line string) string {
	args, err := shlex.Split(line)
	if err != nil {
		return "error: " + string(errcode.InvalidParams)
	}
	if len(args) == 0 {
		return ""
	}
	switch strings.ToLower(args[0]) {
	case "help", "?":
		return helpText
	case "read":
		return c.read(ctx, c.target(args))
	case "write":
		// Writes are accepted and ignored.
		return "ok"
	case "stats":
		return c.stats(ctx, c.target(args))
	default:
		return "error: " + string(errcode.Unsupported)
	}
}

const helpText = "read [name]   round trip in us, -1 on failure\r\n" +
	"write ...     accepted, no effect\r\n" +
	"stats [name]  measurement counters\r\n" +
	"help          this text"

func (c *Console) target(args []string) string {
	if len(args) > 1 {
		return args[1]
	}
	return c.cfg.Default
}

func (c *Console) read(ctx context.Context, name string) string {
	if name == "" {
		return "-1"
	}
	reply, err := c.request(ctx, name, "read")
	if err != nil {
		return "-1"
	}
	v, ok := reply.(types.RangeValue)
	if !ok {
		return "-1"
	}
	var buf [20]byte
	return string(conv.Itoa(buf[:], v.RoundTripUs))
}

func (c *Console) stats(ctx context.Context, name string) string {
	if name == "" {
		return "error: " + string(errcode.InvalidParams)
	}
	reply, err := c.request(ctx, name, "stats")
	if err != nil {
		return "error: " + string(codeOf(err))
	}
	switch v := reply.(type) {
	case types.RangeStats:
		var buf [20]byte
		out := make([]byte, 0, 64)
		out = append(append(out, "measurements="...), conv.Utoa(buf[:], uint64(v.Measurements))...)
		out = append(append(out, " timeouts="...), conv.Utoa(buf[:], uint64(v.Timeouts))...)
		out = append(append(out, " spurious="...), conv.Utoa(buf[:], uint64(v.Spurious))...)
		out = append(append(out, " fenced="...), conv.Utoa(buf[:], uint64(v.Fenced))...)
		return string(out)
	case types.ErrorReply:
		return "error: " + v.Error
	default:
		return "error: " + string(errcode.Error)
	}
}

// request issues a control and returns the reply payload. An ErrorReply to
// a read is reported as an error.
func (c *Console) request(ctx context.Context, name, verb string) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	msg := c.conn.NewMessage(hal.ControlTopic(c.cfg.Domain, name, verb), nil, false)
	reply, err := c.conn.RequestWait(ctx, msg)
	if err != nil {
		return nil, err
	}
	if er, ok := reply.Payload.(types.ErrorReply); ok && verb == "read" {
		return nil, errcode.Code(er.Error)
	}
	return reply.Payload, nil
}

func codeOf(err error) errcode.Code {
	if errors.Is(err, context.DeadlineExceeded) {
		return errcode.Timeout
	}
	return errcode.Of(err)
}

func (c *Console) prompt() {
	if c.cfg.Prompt != "" {
		c.write(c.cfg.Prompt)
	}
}

func (c *Console) write(s string) {
	if _, err := c.port.Write([]byte(s)); err != nil {
		println("[console] write failed:", err.Error())
	}
}

// readLines splits the port stream on CR or LF. Overlong lines are cut at
// maxLine bytes.
func (c *Console) readLines(ctx context.Context, out chan<- string) {
	defer close(out)
	buf := make([]byte, 64)
	line := make([]byte, 0, maxLine)
	for {
		n, err := c.port.RecvSomeContext(ctx, buf)
		for _, b := range buf[:n] {
			switch b {
			case '\r', '\n':
				if len(line) == 0 {
					continue
				}
				select {
				case out <- string(line):
				case <-ctx.Done():
					return
				}
				line = line[:0]
			default:
				if len(line) < maxLine {
					line = append(line, b)
				}
			}
		}
		if err != nil {
			return
		}
	}
}

package console

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"hcsr04-go/bus"
	"hcsr04-go/errcode"
	"hcsr04-go/types"
)

// responder answers controls on the "front" capability the way the HAL would.
func responder(t *testing.T, b *bus.Bus, read any) {
	t.Helper()
	conn := b.NewConnection("fake-hal")
	sub := conn.Subscribe(bus.T("hal", "cap", "range", "distance", "+", "control", "+"))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case m := <-sub.Channel():
				name, _ := m.Topic.At(4).(string)
				verb, _ := m.Topic.At(6).(string)
				switch {
				case name != "front":
					conn.Reply(m, types.ErrorReply{Error: string(errcode.UnknownCapability)}, false)
				case verb == "read":
					conn.Reply(m, read, false)
				case verb == "stats":
					conn.Reply(m, types.RangeStats{Measurements: 3, Timeouts: 1}, false)
				default:
					conn.Reply(m, types.ErrorReply{Error: string(errcode.Unsupported)}, false)
				}
			}
		}
	}()
}

func newConsole(t *testing.T, read any) *Console {
	t.Helper()
	b := bus.NewBus(8)
	responder(t, b, read)
	c := New(b.NewConnection("console"), nil)
	c.apply(types.ConsoleConfig{Default: "front"})
	return c
}

func TestReadPrintsRoundTrip(t *testing.T) {
	c := newConsole(t, types.RangeValue{RoundTripUs: 1166, DistanceMm: 200})
	if got := c.Exec(context.Background(), "read"); got != "1166" {
		t.Fatalf("read=%q", got)
	}
	if got := c.Exec(context.Background(), "read front"); got != "1166" {
		t.Fatalf("read front=%q", got)
	}
}

func TestReadFailurePrintsMinusOne(t *testing.T) {
	c := newConsole(t, types.ErrorReply{Error: string(errcode.Timeout)})
	if got := c.Exec(context.Background(), "read"); got != "-1" {
		t.Fatalf("read=%q", got)
	}
	if got := c.Exec(context.Background(), "read rear"); got != "-1" {
		t.Fatalf("unknown sensor=%q", got)
	}
}

func TestReadWithoutResponderTimesOut(t *testing.T) {
	b := bus.NewBus(8)
	c := New(b.NewConnection("console"), nil)
	c.apply(types.ConsoleConfig{Default: "front"})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if got := c.Exec(ctx, "read"); got != "-1" {
		t.Fatalf("read=%q", got)
	}
}

func TestWriteHelpStatsAndUnknown(t *testing.T) {
	c := newConsole(t, types.RangeValue{RoundTripUs: 1})
	ctx := context.Background()

	if got := c.Exec(ctx, `write "anything at all"`); got != "ok" {
		t.Fatalf("write=%q", got)
	}
	if got := c.Exec(ctx, "help"); !strings.Contains(got, "read [name]") {
		t.Fatalf("help=%q", got)
	}
	if got := c.Exec(ctx, "stats"); got != "measurements=3 timeouts=1 spurious=0 fenced=0" {
		t.Fatalf("stats=%q", got)
	}
	if got := c.Exec(ctx, "stats rear"); got != "error: unknown_capability" {
		t.Fatalf("stats rear=%q", got)
	}
	if got := c.Exec(ctx, "reboot"); got != "error: unsupported" {
		t.Fatalf("unknown=%q", got)
	}
	if got := c.Exec(ctx, `read "unterminated`); got != "error: invalid_params" {
		t.Fatalf("bad quoting=%q", got)
	}
	if got := c.Exec(ctx, "   "); got != "" {
		t.Fatalf("blank=%q", got)
	}
}

func TestRunServesPortAndTakesConfig(t *testing.T) {
	b := bus.NewBus(8)
	responder(t, b, types.RangeValue{RoundTripUs: 583})

	cfgConn := b.NewConnection("config")
	cfgConn.Publish(cfgConn.NewMessage(TopicConfig(), types.ConsoleConfig{Default: "front", Prompt: "$ "}, true))

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	c := New(b.NewConnection("console"), NewStream(inR, outW))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { c.Run(ctx); close(done) }()
	defer func() {
		cancel()
		outR.Close()
		<-done
	}()

	// Wait for the configured prompt before typing.
	got := make(chan string, 16)
	go func() {
		buf := make([]byte, 64)
		var acc strings.Builder
		for {
			n, err := outR.Read(buf)
			acc.Write(buf[:n])
			got <- acc.String()
			if err != nil {
				return
			}
		}
	}()
	waitFor := func(want string) {
		t.Helper()
		deadline := time.After(2 * time.Second)
		for {
			select {
			case s := <-got:
				if strings.Contains(s, want) {
					return
				}
			case <-deadline:
				t.Fatalf("never saw %q", want)
			}
		}
	}

	go inW.Write([]byte("read\r\n"))
	waitFor("583\r\n")
	go inW.Write([]byte("write 1\n"))
	waitFor("ok\r\n")
	waitFor("$ ")
}

func TestStreamReportsEOF(t *testing.T) {
	s := NewStream(strings.NewReader("ab"), io.Discard)
	buf := make([]byte, 1)
	for _, want := range []byte("ab") {
		n, err := s.RecvSomeContext(context.Background(), buf)
		if err != nil || n != 1 || buf[0] != want {
			t.Fatalf("n=%d err=%v b=%q", n, err, buf[0])
		}
	}
	if _, err := s.RecvSomeContext(context.Background(), buf); err != io.EOF {
		t.Fatalf("err=%v want EOF", err)
	}
}

// Command rangectl reads distances from the ranging console over a serial
// port, either a fixed number of times or interactively.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/tarm/serial"
)

func main() {
	port := flag.String("port", "/dev/ttyACM0", "serial device of the console")
	baud := flag.Int("baud", 115200, "baud rate")
	count := flag.Int("n", 1, "number of readings (0 = until interrupted)")
	every := flag.Duration("every", 200*time.Millisecond, "delay between readings")
	unit := flag.String("unit", "cm", "output unit: us, mm, cm or in")
	name := flag.String("name", "", "sensor name (console default when empty)")
	interactive := flag.Bool("i", false, "interactive console session")
	flag.Parse()

	if !validUnit(*unit) {
		fmt.Fprintf(os.Stderr, "rangectl: unknown unit %q\n", *unit)
		os.Exit(2)
	}

	sp, err := serial.OpenPort(&serial.Config{
		Name:        *port,
		Baud:        *baud,
		ReadTimeout: 100 * time.Millisecond,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "rangectl: failed to open serial port %s: %v\n", *port, err)
		os.Exit(1)
	}
	defer sp.Close()

	c := newClient(sp, "> ", time.Second)
	if *interactive {
		err = repl(c, *unit)
	} else {
		err = readN(os.Stdout, c, *name, *unit, *count, *every)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "rangectl: %v\n", err)
		os.Exit(1)
	}
}

func readN(w io.Writer, c *client, name, unit string, n int, every time.Duration) error {
	for i := 0; n == 0 || i < n; i++ {
		if i > 0 {
			time.Sleep(every)
		}
		rt, err := c.Read(name)
		switch {
		case errors.Is(err, errOutOfRange):
			fmt.Fprintln(w, "out of range")
		case err != nil:
			return err
		default:
			fmt.Fprintln(w, formatReading(rt, unit))
		}
	}
	return nil
}

// repl forwards each line to the console. Replies to "read" are also shown
// converted to unit.
func repl(c *client, unit string) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "range> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			return nil
		}
		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "quit", "exit":
			return nil
		}
		reply, err := c.Do(line)
		if err != nil {
			fmt.Fprintln(rl.Stderr(), "error:", err)
			continue
		}
		fmt.Fprintln(rl.Stdout(), describe(line, reply, unit))
	}
}

func describe(cmd, reply, unit string) string {
	if !strings.HasPrefix(cmd, "read") {
		return reply
	}
	var us int64
	if _, err := fmt.Sscan(reply, &us); err != nil {
		return reply
	}
	if us < 0 {
		return reply + " (out of range)"
	}
	return reply + " (" + formatReading(time.Duration(us)*time.Microsecond, unit) + ")"
}

package main

import (
	"errors"
	"io"
	"strconv"
	"strings"
	"time"
)

var (
	errNoReply    = errors.New("no reply from console")
	errOutOfRange = errors.New("out of range")
)

// client speaks the line console: one command out, one reply line back.
// Prompts the console prints ahead of a reply are stripped.
type client struct {
	rw      io.ReadWriter
	prompt  string
	timeout time.Duration
	pending []byte
}

func newClient(rw io.ReadWriter, prompt string, timeout time.Duration) *client {
	return &client{rw: rw, prompt: strings.TrimSpace(prompt), timeout: timeout}
}

// Do sends cmd and returns the first non-empty reply line.
func (c *client) Do(cmd string) (string, error) {
	if _, err := c.rw.Write([]byte(cmd + "\r\n")); err != nil {
		return "", err
	}
	deadline := time.Now().Add(c.timeout)
	buf := make([]byte, 64)
	for {
		if s, ok := c.takeLine(); ok {
			return s, nil
		}
		n, err := c.rw.Read(buf)
		c.pending = append(c.pending, buf[:n]...)
		if err != nil && err != io.EOF {
			return "", err
		}
		if n == 0 {
			if err == io.EOF || time.Now().After(deadline) {
				return "", errNoReply
			}
		}
	}
}

// takeLine pops complete lines from pending until one has content.
func (c *client) takeLine() (string, bool) {
	for {
		i := strings.IndexByte(string(c.pending), '\n')
		if i < 0 {
			return "", false
		}
		s := c.clean(string(c.pending[:i]))
		c.pending = c.pending[i+1:]
		if s != "" {
			return s, true
		}
	}
}

func (c *client) clean(s string) string {
	s = strings.TrimSpace(s)
	for c.prompt != "" && strings.HasPrefix(s, c.prompt) {
		s = strings.TrimSpace(strings.TrimPrefix(s, c.prompt))
	}
	return s
}

// Read runs one measurement and returns the round trip.
func (c *client) Read(name string) (time.Duration, error) {
	cmd := "read"
	if name != "" {
		cmd += " " + name
	}
	reply, err := c.Do(cmd)
	if err != nil {
		return 0, err
	}
	us, err := strconv.ParseInt(reply, 10, 64)
	if err != nil {
		return 0, errors.New("console: " + reply)
	}
	if us < 0 {
		return 0, errOutOfRange
	}
	return time.Duration(us) * time.Microsecond, nil
}

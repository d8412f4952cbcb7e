//go:build linux

// Command rangerd runs HC-SR04 sensors wired to a Linux GPIO character
// device. It logs every reading and, with -console, serves the line console
// on stdio.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"hcsr04-go/bus"
	"hcsr04-go/services/console"
	"hcsr04-go/services/hal"
	"hcsr04-go/types"
)

func main() {
	cfgPath := flag.String("config", "/etc/rangerd.yaml", "YAML configuration file")
	chip := flag.String("chip", "", "override the GPIO chip from the config")
	withConsole := flag.Bool("console", false, "serve the line console on stdio")
	quiet := flag.Bool("q", false, "do not log readings")
	flag.Parse()

	fc, err := loadConfig(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rangerd: %v\n", err)
		os.Exit(1)
	}
	if *chip != "" {
		fc.Chip = *chip
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b := bus.NewBus(32)
	cfgConn := b.NewConnection("config")
	cfgConn.Publish(cfgConn.NewMessage(bus.T("config", "hal"), fc.halConfig(), true))
	cfgConn.Publish(cfgConn.NewMessage(console.TopicConfig(), fc.Console, true))

	if !*quiet {
		go logReadings(ctx, b.NewConnection("log"))
	}
	if *withConsole {
		go console.New(b.NewConnection("console"), console.NewStream(os.Stdin, os.Stdout)).Run(ctx)
	}

	log.Printf("rangerd: %d sensor(s) on %s", len(fc.Sensors), fc.Chip)
	if err := hal.RunChip(ctx, b.NewConnection("hal"), fc.Chip, fc.Consumer); err != nil {
		log.Fatalf("rangerd: %v", err)
	}
}

func logReadings(ctx context.Context, conn *bus.Connection) {
	values := conn.Subscribe(bus.T("hal", "cap", "range", "distance", "+", "value"))
	defer conn.Unsubscribe(values)
	status := conn.Subscribe(bus.T("hal", "cap", "range", "distance", "+", "status"))
	defer conn.Unsubscribe(status)

	for {
		select {
		case <-ctx.Done():
			return
		case m := <-values.Channel():
			if v, ok := m.Payload.(types.RangeValue); ok {
				log.Printf("%v: %d us, %d mm", m.Topic.At(4), v.RoundTripUs, v.DistanceMm)
			}
		case m := <-status.Channel():
			if st, ok := m.Payload.(types.CapabilityStatus); ok && st.Link == types.LinkDegraded {
				log.Printf("%v: %s", m.Topic.At(4), st.Error)
			}
		}
	}
}

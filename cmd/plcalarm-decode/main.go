// Command plcalarm-decode decodes a captured notification buffer offline.
//
// The buffer is read from a file or, with -hex, from the command line. The
// tool applies the same classification as the live monitor: short buffers
// are reported as heartbeats, everything else is decoded as an event entry.
//
// Usage:
//
//	plcalarm-decode [flags] <file>
//	plcalarm-decode -hex 010000000100...
//
// Flags:
//
//	-hex string  Decode a hex string instead of a file
//
// Examples:
//
//	# Decode a raw capture
//	plcalarm-decode notification.bin
//
//	# Decode pasted bytes
//	plcalarm-decode -hex 01000000010078000000...
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/plcalarm/plcalarm-go/pkg/wire"
)

func main() {
	hexInput := flag.String("hex", "", "Decode a hex string instead of a file")
	flag.Parse()

	buf, err := readInput(*hexInput, flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "plcalarm-decode: %v\n", err)
		os.Exit(1)
	}

	if len(buf) <= wire.MaxHeartbeatSize {
		fmt.Printf("heartbeat (%d bytes, no event payload)\n", len(buf))
		return
	}

	event, err := wire.DecodeEntry(buf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "plcalarm-decode: %d-byte buffer: %v\n", len(buf), err)
		os.Exit(1)
	}

	printEvent(event, len(buf))
}

func readInput(hexInput string, args []string) ([]byte, error) {
	if hexInput != "" {
		cleaned := strings.Map(func(r rune) rune {
			switch r {
			case ' ', '\t', '\n', ':':
				return -1
			}
			return r
		}, hexInput)
		buf, err := hex.DecodeString(cleaned)
		if err != nil {
			return nil, fmt.Errorf("bad hex input: %w", err)
		}
		return buf, nil
	}

	if len(args) != 1 {
		return nil, fmt.Errorf("expected one input file (or -hex)")
	}
	buf, err := os.ReadFile(args[0])
	if err != nil {
		return nil, err
	}
	return buf, nil
}

func printEvent(event *wire.Event, size int) {
	fmt.Printf("buffer size:    %d bytes\n", size)
	fmt.Printf("version:        %d\n", event.Version)
	fmt.Printf("message type:   %s\n", event.MessageType)
	fmt.Printf("event class:    %s\n", event.EventClassID)
	fmt.Printf("event id:       %d\n", event.EventID)
	fmt.Printf("severity:       %s\n", event.Severity)
	fmt.Printf("alarm:          %t\n", event.IsAlarm)
	if event.IsAlarm {
		fmt.Printf("alarm state:    %s\n", event.AlarmState)
	}
	printTime("time raised", event.TimeRaised)
	printTime("time cleared", event.TimeCleared)
	printTime("time confirmed", event.TimeConfirmed)
	fmt.Printf("source:         %q\n", event.SourceName)
	fmt.Printf("message:        %q\n", event.Message)
}

func printTime(label string, at time.Time) {
	fmt.Printf("%-15s ", label+":")
	if at.IsZero() {
		fmt.Println("absent")
		return
	}
	fmt.Println(at.Format("2006-01-02 15:04:05.000000 MST"))
}

// Command plcalarm-monitor connects to an alarm publisher and tails decoded
// events.
//
// Usage:
//
//	plcalarm-monitor [flags]
//
// Flags:
//
//	-config string     Configuration file path (YAML)
//	-address string    Publisher TCP address, host:port (overrides config)
//	-net-id string     Publisher AMS net ID (overrides config)
//	-discover          Find the publisher via mDNS when no address is set
//	-history string    History database path (overrides config)
//	-capture string    Protocol capture log path (overrides config)
//	-log-level string  Log level: debug, info, warn, error
//	-interactive       Start the interactive console
//
// Examples:
//
//	# Tail events from a known publisher
//	plcalarm-monitor -address 192.168.0.10:48898 -net-id 192.168.0.10.1.1
//
//	# Use a config file and the interactive console
//	plcalarm-monitor -config /etc/plcalarm/monitor.yaml -interactive
//
//	# Discover the publisher on the local network
//	plcalarm-monitor -discover
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/plcalarm/plcalarm-go/cmd/plcalarm-monitor/interactive"
	"github.com/plcalarm/plcalarm-go/pkg/config"
	"github.com/plcalarm/plcalarm-go/pkg/discovery"
	"github.com/plcalarm/plcalarm-go/pkg/service"
	"github.com/plcalarm/plcalarm-go/pkg/wire"
)

var flags struct {
	configFile  string
	address     string
	netID       string
	discover    bool
	historyPath string
	capturePath string
	logLevel    string
	interactive bool
}

func init() {
	flag.StringVar(&flags.configFile, "config", "", "Configuration file path (YAML)")
	flag.StringVar(&flags.address, "address", "", "Publisher TCP address, host:port")
	flag.StringVar(&flags.netID, "net-id", "", "Publisher AMS net ID")
	flag.BoolVar(&flags.discover, "discover", false, "Find the publisher via mDNS when no address is set")
	flag.StringVar(&flags.historyPath, "history", "", "History database path")
	flag.StringVar(&flags.capturePath, "capture", "", "Protocol capture log path")
	flag.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.BoolVar(&flags.interactive, "interactive", false, "Start the interactive console")
}

func main() {
	flag.Parse()

	cfg, err := buildConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "plcalarm-monitor: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log.Level)

	client, err := service.New(cfg, service.Options{Logger: logger})
	if err != nil {
		fmt.Fprintf(os.Stderr, "plcalarm-monitor: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var console *interactive.Console
	out := os.Stdout
	if flags.interactive {
		console, err = interactive.New(client)
		if err != nil {
			fmt.Fprintf(os.Stderr, "plcalarm-monitor: %v\n", err)
			os.Exit(1)
		}
	}

	client.OnConnectionState(func(connected bool) {
		state := "disconnected"
		if connected {
			state = "connected"
		}
		if console != nil {
			fmt.Fprintf(console.Stdout(), "** publisher %s\n", state)
			return
		}
		fmt.Fprintf(out, "** publisher %s\n", state)
	})

	if _, err := client.Subscribe(ctx, func(event *wire.Event) {
		line := formatEvent(event)
		if console != nil {
			fmt.Fprintln(console.Stdout(), line)
			return
		}
		fmt.Fprintln(out, line)
	}); err != nil {
		logger.Warn("event subscription deferred", "error", err)
	}

	if err := client.Start(ctx); err != nil {
		logger.Warn("initial connect failed, retrying in background", "error", err)
	}
	defer client.Stop()

	if console != nil {
		console.Run(ctx, cancel)
		return
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
}

// buildConfig assembles the configuration from the file, flags and
// discovery, in that order of precedence (flags win).
func buildConfig() (*config.Config, error) {
	var cfg *config.Config
	if flags.configFile != "" {
		loaded, err := config.Load(flags.configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}

	if flags.address != "" {
		cfg.Target.Address = flags.address
	}
	if flags.netID != "" {
		cfg.Target.NetID = flags.netID
	}
	if flags.historyPath != "" {
		cfg.History.Path = flags.historyPath
	}
	if flags.capturePath != "" {
		cfg.Capture.Path = flags.capturePath
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}

	if cfg.Target.Address == "" && flags.discover {
		if err := discoverPublisher(cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func discoverPublisher(cfg *config.Config) error {
	fmt.Fprintln(os.Stderr, "searching for publishers...")

	browser := discovery.NewBrowser(discovery.BrowserConfig{})
	svc, err := browser.FindFirst(context.Background())
	if err != nil {
		return fmt.Errorf("discover publisher: %w", err)
	}

	cfg.Target.Address = svc.Address()
	cfg.Target.NetID = svc.NetID
	if svc.AMSPort != 0 {
		cfg.Target.Port = svc.AMSPort
	}
	fmt.Fprintf(os.Stderr, "found %s at %s (net id %s)\n", svc.InstanceName, svc.Address(), svc.NetID)
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// formatEvent renders one decoded event as a log line.
func formatEvent(event *wire.Event) string {
	state := ""
	if event.IsAlarm {
		state = " " + event.AlarmState.String()
	}
	when := "-"
	if !event.TimeRaised.IsZero() {
		when = event.TimeRaised.Format("2006-01-02 15:04:05.000")
	}
	return fmt.Sprintf("%s  %-8s%s  %s/%d  %s: %s",
		when, event.Severity, state, event.EventClassID, event.EventID,
		event.SourceName, event.Message)
}

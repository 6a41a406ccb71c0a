// Package interactive provides the interactive console for
// plcalarm-monitor.
package interactive

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/plcalarm/plcalarm-go/pkg/history"
	"github.com/plcalarm/plcalarm-go/pkg/service"
)

// Console is the readline-driven command loop.
type Console struct {
	client *service.Client
	rl     *readline.Instance
}

// New creates a console over the given client.
func New(client *service.Client) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "plcalarm> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return nil, fmt.Errorf("create readline: %w", err)
	}
	return &Console{client: client, rl: rl}, nil
}

// Stdout returns a writer that coordinates with the prompt. Use it for
// asynchronous output such as tailed events.
func (c *Console) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Run starts the command loop and blocks until quit or context
// cancellation.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.rl.Stdout(), "exiting")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		fields := strings.Fields(input)
		switch fields[0] {
		case "status":
			c.cmdStatus()
		case "history":
			c.cmdHistory(fields[1:])
		case "resubscribe":
			c.cmdResubscribe(ctx)
		case "help":
			c.printHelp()
		case "quit", "exit":
			cancel()
			return
		default:
			fmt.Fprintf(c.rl.Stdout(), "unknown command %q, try \"help\"\n", fields[0])
		}
	}
}

func (c *Console) printHelp() {
	fmt.Fprint(c.rl.Stdout(), `Commands:
  status          Connection and subscription state
  history [n]     Show the n most recent stored events (default 20)
  resubscribe     Drop and recreate the event subscription
  help            Show this help
  quit            Exit
`)
}

func (c *Console) cmdStatus() {
	stats := c.client.Stats()
	out := c.rl.Stdout()

	fmt.Fprintf(out, "connection:      %s\n", stats.State)
	fmt.Fprintf(out, "subscription:    active=%t consumers=%d\n",
		stats.Subscription.Subscribed, stats.Subscription.Subscribers)
	fmt.Fprintf(out, "delivered:       %d\n", stats.Subscription.Delivered)
	fmt.Fprintf(out, "heartbeats:      %d\n", stats.Subscription.Heartbeats)
	fmt.Fprintf(out, "decode failures: %d\n", stats.Subscription.DecodeFailures)
	if stats.HistoryRecords >= 0 {
		fmt.Fprintf(out, "history records: %d\n", stats.HistoryRecords)
	} else {
		fmt.Fprintln(out, "history:         disabled")
	}
}

func (c *Console) cmdHistory(args []string) {
	out := c.rl.Stdout()

	store := c.client.History()
	if store == nil {
		fmt.Fprintln(out, "history is disabled; start with -history or configure history.path")
		return
	}

	limit := 20
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			fmt.Fprintf(out, "bad count %q\n", args[0])
			return
		}
		limit = n
	}

	records, err := store.Query(history.Filter{})
	if err != nil {
		fmt.Fprintf(out, "query failed: %v\n", err)
		return
	}
	if len(records) > limit {
		records = records[len(records)-limit:]
	}
	if len(records) == 0 {
		fmt.Fprintln(out, "no stored events")
		return
	}

	for _, r := range records {
		when := "-"
		if !r.TimeRaised.IsZero() {
			when = r.TimeRaised.Format("2006-01-02 15:04:05.000")
		}
		state := ""
		if r.IsAlarm {
			state = " " + r.AlarmState.String()
		}
		fmt.Fprintf(out, "%s  %-8s%s  %s/%d  %s: %s\n",
			when, r.Severity, state, r.EventClassID, r.EventID,
			r.SourceName, r.Message)
	}
}

func (c *Console) cmdResubscribe(ctx context.Context) {
	if err := c.client.ForceResubscribe(ctx); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "resubscribe failed: %v\n", err)
		return
	}
	fmt.Fprintln(c.rl.Stdout(), "subscription recreated")
}

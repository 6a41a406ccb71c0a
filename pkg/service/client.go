package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/plcalarm/plcalarm-go/pkg/config"
	"github.com/plcalarm/plcalarm-go/pkg/connection"
	"github.com/plcalarm/plcalarm-go/pkg/history"
	plog "github.com/plcalarm/plcalarm-go/pkg/log"
	"github.com/plcalarm/plcalarm-go/pkg/subscription"
	"github.com/plcalarm/plcalarm-go/pkg/transport"
)

// Service errors.
var (
	ErrAlreadyStarted = errors.New("client already started")
)

// Options carries optional collaborators for New. The zero value builds
// everything from the configuration.
type Options struct {
	// Session overrides the AMS/TCP transport, used by tests and
	// alternative transports. Nil builds a transport.Client from the
	// configuration.
	Session transport.Session

	// Logger receives operational log records. Nil disables logging.
	Logger *slog.Logger

	// CaptureLogger is an additional capture sink beside the configured
	// capture file.
	CaptureLogger plog.Logger
}

// Stats is a snapshot of the client's runtime state.
type Stats struct {
	// State is the connection state.
	State connection.State

	// Subscription is the broker's counter snapshot.
	Subscription subscription.Stats

	// HistoryRecords is the stored record count; -1 when history is
	// disabled or unreadable.
	HistoryRecords int
}

// Client is the assembled monitor: transport, supervisor, broker, and the
// optional history store and capture log.
type Client struct {
	config *config.Config
	logger *slog.Logger

	session    transport.Session
	supervisor *connection.Supervisor
	broker     *subscription.Broker
	store      *history.Store
	capture    plog.Logger

	// captureFile is the configured capture sink, closed on Stop.
	captureFile *plog.FileLogger

	mu                sync.Mutex
	started           bool
	historyConsumerID uint64
	stateObservers    []func(connected bool)
}

// New assembles a client from the configuration. The configuration must be
// defaulted and validated (config.Load does both).
func New(cfg *config.Config, opts Options) (*Client, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	captures := []plog.Logger{}
	var captureFile *plog.FileLogger
	if cfg.Capture.Path != "" {
		var err error
		captureFile, err = plog.NewFileLogger(cfg.Capture.Path)
		if err != nil {
			return nil, fmt.Errorf("open capture log: %w", err)
		}
		captures = append(captures, captureFile)
	}
	if opts.CaptureLogger != nil {
		captures = append(captures, opts.CaptureLogger)
	}
	var capture plog.Logger = plog.NoopLogger{}
	if len(captures) > 0 {
		capture = plog.NewMultiLogger(captures...)
	}

	session := opts.Session
	if session == nil {
		clientConfig := cfg.ClientConfig()
		clientConfig.Logger = logger
		clientConfig.CaptureLogger = capture
		session = transport.NewClient(clientConfig)
	}

	var store *history.Store
	if cfg.History.Path != "" {
		var err error
		store, err = history.Open(cfg.History.Path, history.StoreConfig{Logger: logger})
		if err != nil {
			if captureFile != nil {
				captureFile.Close()
			}
			return nil, fmt.Errorf("open history: %w", err)
		}
	}

	supervisor := connection.NewSupervisor(session, connection.SupervisorConfig{
		RetryInterval: cfg.Connection.RetryInterval,
		Logger:        logger,
		CaptureLogger: capture,
	})

	params := subscription.DefaultParams()
	params.BufferSize = cfg.Subscription.BufferSize
	broker := subscription.NewBroker(session, subscription.BrokerConfig{
		Params:        params,
		Logger:        logger,
		CaptureLogger: capture,
	})

	c := &Client{
		config:      cfg,
		logger:      logger,
		session:     session,
		supervisor:  supervisor,
		broker:      broker,
		store:       store,
		capture:     capture,
		captureFile: captureFile,
	}

	supervisor.OnStateChange(c.handleStateChange)
	return c, nil
}

// Start connects to the publisher and attaches the history consumer. A
// connect failure is returned, but the supervisor keeps retrying in the
// background; the client counts as started either way.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	c.mu.Unlock()

	if c.store != nil {
		id, err := c.broker.Attach(ctx, c.store.Consumer())
		if err != nil {
			c.logger.Warn("history consumer attach failed", "error", err)
		}
		c.mu.Lock()
		c.historyConsumerID = id
		c.mu.Unlock()
	}

	if err := c.supervisor.Connect(ctx); err != nil {
		c.logger.Warn("initial connect failed, retrying", "error", err)
		return err
	}
	return nil
}

// Stop tears the client down: consumers detach, the session closes, the
// history store and capture log close. Stop is idempotent.
func (c *Client) Stop() error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = false
	historyID := c.historyConsumerID
	c.historyConsumerID = 0
	c.mu.Unlock()

	if c.store != nil && historyID != 0 {
		c.broker.Detach(context.Background(), historyID)
	}

	err := c.supervisor.Close()

	if c.store != nil {
		if cerr := c.store.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if c.captureFile != nil {
		if cerr := c.captureFile.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Subscribe attaches a consumer for decoded events and returns its ID.
func (c *Client) Subscribe(ctx context.Context, consumer subscription.Consumer) (uint64, error) {
	return c.broker.Attach(ctx, consumer)
}

// Unsubscribe detaches a consumer by ID.
func (c *Client) Unsubscribe(ctx context.Context, id uint64) {
	c.broker.Detach(ctx, id)
}

// OnConnectionState registers an observer for connected/disconnected
// notifications. Observers see one notification per real transition.
func (c *Client) OnConnectionState(fn func(connected bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stateObservers = append(c.stateObservers, fn)
}

// ForceResubscribe drops and recreates the underlying subscription.
func (c *Client) ForceResubscribe(ctx context.Context) error {
	return c.broker.ForceResubscribe(ctx)
}

// IsConnected reports whether the session is established.
func (c *Client) IsConnected() bool {
	return c.supervisor.IsConnected()
}

// History returns the history store, or nil when history is disabled.
func (c *Client) History() *history.Store {
	return c.store
}

// Stats returns a snapshot of connection, subscription and history state.
func (c *Client) Stats() Stats {
	stats := Stats{
		State:          c.supervisor.State(),
		Subscription:   c.broker.Stats(),
		HistoryRecords: -1,
	}
	if c.store != nil {
		if n, err := c.store.Count(); err == nil {
			stats.HistoryRecords = n
		}
	}
	return stats
}

// handleStateChange relays supervisor transitions to the broker and to the
// registered observers. CONNECTING is internal; observers see the boolean
// connected/disconnected edges only.
func (c *Client) handleStateChange(oldState, newState connection.State) {
	switch newState {
	case connection.StateConnected:
		c.broker.HandleConnectionState(true)
		c.notifyConnectionState(true)
	case connection.StateDisconnected:
		c.broker.HandleConnectionState(false)
		c.notifyConnectionState(false)
	}
}

func (c *Client) notifyConnectionState(connected bool) {
	c.mu.Lock()
	observers := slices.Clone(c.stateObservers)
	c.mu.Unlock()

	for _, fn := range observers {
		fn(connected)
	}
}

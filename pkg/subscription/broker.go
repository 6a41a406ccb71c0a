package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	plog "github.com/plcalarm/plcalarm-go/pkg/log"
	"github.com/plcalarm/plcalarm-go/pkg/transport"
	"github.com/plcalarm/plcalarm-go/pkg/wire"
)

// Broker owns the single underlying notification subscription and fans
// decoded events out to attached consumers.
type Broker struct {
	session transport.Session
	params  transport.SubscriptionParams
	logger  *slog.Logger
	capture plog.Logger

	mu              sync.Mutex
	subscriberCount int
	nextConsumerID  uint64
	consumers       map[uint64]Consumer
	handle          transport.Handle
	connected       bool

	// flight deduplicates concurrent subscribe attempts: any number of
	// attaches while no subscription exists share one transport call.
	flight singleflight.Group

	heartbeats     atomic.Uint64
	decodeFailures atomic.Uint64
	delivered      atomic.Uint64
}

// BrokerConfig configures a Broker.
type BrokerConfig struct {
	// Params are the subscription parameters (default: DefaultParams).
	Params transport.SubscriptionParams

	// Logger receives operational log records. Nil disables logging.
	Logger *slog.Logger

	// CaptureLogger receives protocol capture events. Nil disables capture.
	CaptureLogger plog.Logger
}

// NewBroker creates a broker over the given session.
func NewBroker(session transport.Session, config BrokerConfig) *Broker {
	params := config.Params
	if params == (transport.SubscriptionParams{}) {
		params = DefaultParams()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	capture := config.CaptureLogger
	if capture == nil {
		capture = plog.NoopLogger{}
	}

	return &Broker{
		session:   session,
		params:    params,
		logger:    logger,
		capture:   capture,
		consumers: make(map[uint64]Consumer),
	}
}

// Attach registers a consumer and increments the interest count, returning
// the consumer's ID for Detach.
//
// If a subscription already exists the consumer joins it immediately. If the
// session is not connected, subscribing is deferred to the next connected
// transition and Attach returns without error. Otherwise Attach ensures the
// underlying subscription exists; on failure the consumer stays registered
// (it is picked up by the next connected transition or ForceResubscribe) and
// the error is returned to this caller.
func (b *Broker) Attach(ctx context.Context, consumer Consumer) (uint64, error) {
	b.mu.Lock()
	b.nextConsumerID++
	id := b.nextConsumerID
	b.consumers[id] = consumer
	b.subscriberCount++
	subscribed := b.handle != nil
	connected := b.connected
	b.mu.Unlock()

	if subscribed || !connected {
		return id, nil
	}
	if err := b.ensureSubscribed(ctx); err != nil {
		return id, err
	}
	return id, nil
}

// Detach removes a consumer and decrements the interest count, floored at
// zero. When the count reaches zero and a subscription exists it is torn
// down; an unsubscribe failure is logged, never propagated, and the local
// handle is cleared regardless.
func (b *Broker) Detach(ctx context.Context, id uint64) {
	b.mu.Lock()
	if _, ok := b.consumers[id]; ok {
		delete(b.consumers, id)
	}
	if b.subscriberCount > 0 {
		b.subscriberCount--
	}
	var handle transport.Handle
	if b.subscriberCount == 0 && b.handle != nil {
		handle = b.handle
		b.handle = nil
	}
	b.mu.Unlock()

	if handle == nil {
		return
	}
	if err := handle.Unsubscribe(ctx); err != nil {
		b.logger.Warn("unsubscribe failed", "error", err)
		b.capture.Log(plog.ErrorEvent(plog.LayerService, "unsubscribe", err))
	}
	b.capture.Log(plog.StateChanged(plog.StateEntitySubscription, "ACTIVE", "RELEASED", "no subscribers"))
}

// ensureSubscribed establishes the underlying subscription if none exists.
// Concurrent callers share a single in-flight attempt; on failure the
// interest count is left unchanged and the shared error is returned.
func (b *Broker) ensureSubscribed(ctx context.Context) error {
	_, err, _ := b.flight.Do("subscribe", func() (any, error) {
		b.mu.Lock()
		if b.handle != nil {
			b.mu.Unlock()
			return nil, nil
		}
		if !b.connected {
			// Deferred to the next connected transition.
			b.mu.Unlock()
			return nil, nil
		}
		session := b.session
		params := b.params
		b.mu.Unlock()

		handle, err := session.Subscribe(ctx, params, b.handleNotification)
		if err != nil {
			return nil, fmt.Errorf("subscribe: %w", err)
		}

		b.mu.Lock()
		if !b.connected {
			// Lost the session while subscribing; the handle is already
			// invalid and must not be stored.
			b.mu.Unlock()
			return nil, nil
		}
		b.handle = handle
		b.mu.Unlock()

		b.capture.Log(plog.StateChanged(plog.StateEntitySubscription, "", "ACTIVE", ""))
		b.logger.Debug("event stream subscribed")
		return nil, nil
	})
	return err
}

// handleNotification classifies and dispatches one raw notification buffer.
// Registered once as the subscription callback; decode errors are contained
// here so the transport keeps delivering subsequent notifications.
func (b *Broker) handleNotification(data []byte) {
	if len(data) <= wire.MaxHeartbeatSize {
		b.heartbeats.Add(1)
		b.capture.Log(plog.Heartbeat(len(data)))
		return
	}

	event, err := wire.DecodeEntry(data)
	if err != nil {
		b.decodeFailures.Add(1)
		b.logger.Warn("dropping undecodable notification", "size", len(data), "error", err)
		b.capture.Log(plog.ErrorEvent(plog.LayerWire, "decode", err))
		return
	}

	b.capture.Log(plog.EntryDecoded(plog.EntryEvent{
		EventClassID: event.EventClassID,
		EventID:      event.EventID,
		Severity:     event.Severity.String(),
		IsAlarm:      event.IsAlarm,
		AlarmState:   event.AlarmState.String(),
		SourceName:   event.SourceName,
		BufferSize:   len(data),
	}))

	b.mu.Lock()
	consumers := make([]Consumer, 0, len(b.consumers))
	for _, c := range b.consumers {
		consumers = append(consumers, c)
	}
	b.mu.Unlock()

	b.delivered.Add(1)
	for _, c := range consumers {
		c(event)
	}
}

// HandleConnectionState reacts to a connection state transition.
//
// On disconnect the handle is cleared immediately without an unsubscribe
// attempt - the session it belonged to is gone - and the interest count is
// untouched. On connect, an existing interest count re-establishes the
// subscription; a subscribe failure here is logged and retried on the next
// transition.
func (b *Broker) HandleConnectionState(connected bool) {
	b.mu.Lock()
	b.connected = connected
	if !connected {
		b.handle = nil
		b.mu.Unlock()
		b.capture.Log(plog.StateChanged(plog.StateEntitySubscription, "ACTIVE", "INVALIDATED", "connection lost"))
		return
	}
	needed := b.subscriberCount > 0 && b.handle == nil
	b.mu.Unlock()

	if !needed {
		return
	}
	if err := b.ensureSubscribed(context.Background()); err != nil {
		b.logger.Warn("resubscribe on reconnect failed", "error", err)
	}
}

// ForceResubscribe drops the current subscription and creates a fresh one
// if consumers are still attached and the session is connected.
func (b *Broker) ForceResubscribe(ctx context.Context) error {
	b.mu.Lock()
	handle := b.handle
	b.handle = nil
	needed := b.subscriberCount > 0 && b.connected
	b.mu.Unlock()

	if handle != nil {
		if err := handle.Unsubscribe(ctx); err != nil {
			b.logger.Warn("unsubscribe during resubscribe failed", "error", err)
		}
	}
	if !needed {
		return nil
	}
	return b.ensureSubscribed(ctx)
}

// Stats returns a snapshot of the broker's counters.
func (b *Broker) Stats() Stats {
	b.mu.Lock()
	subscribers := b.subscriberCount
	subscribed := b.handle != nil
	b.mu.Unlock()

	return Stats{
		Subscribers:    subscribers,
		Subscribed:     subscribed,
		Heartbeats:     b.heartbeats.Load(),
		DecodeFailures: b.decodeFailures.Load(),
		Delivered:      b.delivered.Load(),
	}
}

package subscription

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/plcalarm/plcalarm-go/internal/testharness/mock"
	"github.com/plcalarm/plcalarm-go/pkg/wire"
)

// rawEntry builds a raw notification buffer of the given size for the
// fixed event-entry layout.
func rawEntry(size int, eventID uint32, raisedFlag byte, raised, cleared time.Time) []byte {
	buf := make([]byte, size)
	binary.LittleEndian.PutUint32(buf[0:], 1)                   // version
	binary.LittleEndian.PutUint16(buf[4:], 1)                   // messageType
	binary.LittleEndian.PutUint32(buf[8:], uint32(size))        // payloadSize
	copy(buf[12:], []byte{0x14, 0x9f, 0x0d, 0x16, 0x7e, 0xd9, 0x62, 0x44, 0xaf, 0xad, 0xea, 0x4c, 0xd4, 0x82, 0x96, 0xb4})
	binary.LittleEndian.PutUint32(buf[28:], eventID)
	buf[36] = 3                                  // severity Error
	binary.LittleEndian.PutUint32(buf[40:], 2)   // eventKind alarm
	buf[52] = raisedFlag
	putTicks := func(off int, at time.Time) {
		if at.IsZero() {
			return
		}
		ticks := uint64(at.UnixMilli()+11_644_473_600_000) * 10_000
		binary.LittleEndian.PutUint32(buf[off:], uint32(ticks))
		binary.LittleEndian.PutUint32(buf[off+4:], uint32(ticks>>32))
	}
	putTicks(60, raised)
	putTicks(68, cleared)
	return buf
}

func connectedBroker(t *testing.T, session *mock.Session) *Broker {
	t.Helper()
	b := NewBroker(session, BrokerConfig{})
	if err := session.Connect(context.Background()); err != nil {
		t.Fatalf("mock connect: %v", err)
	}
	b.HandleConnectionState(true)
	return b
}

func TestAttachSubscribesOnce(t *testing.T) {
	session := mock.NewSession()
	b := connectedBroker(t, session)

	if _, err := b.Attach(context.Background(), func(*wire.Event) {}); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if _, err := b.Attach(context.Background(), func(*wire.Event) {}); err != nil {
		t.Fatalf("Attach: %v", err)
	}

	if got := session.SubscribeCalls(); got != 1 {
		t.Errorf("subscribe calls = %d, want 1", got)
	}

	stats := b.Stats()
	if stats.Subscribers != 2 || !stats.Subscribed {
		t.Errorf("stats = %+v, want 2 subscribers on an active subscription", stats)
	}
}

func TestAttachUsesStreamParams(t *testing.T) {
	session := mock.NewSession()
	b := connectedBroker(t, session)

	if _, err := b.Attach(context.Background(), func(*wire.Event) {}); err != nil {
		t.Fatalf("Attach: %v", err)
	}

	params := session.Params()
	if params.IndexGroup != StreamIndexGroup || params.IndexOffset != StreamIndexOffset {
		t.Errorf("params = %+v, want group %d offset %#x", params, StreamIndexGroup, StreamIndexOffset)
	}
	if params.BufferSize != StreamBufferSize || !params.Cyclic || params.CycleTime != 0 {
		t.Errorf("params = %+v, want 4096-byte cyclic zero-interval", params)
	}
}

func TestConcurrentAttachSingleFlight(t *testing.T) {
	session := mock.NewSession()
	session.SubscribeDelay = 50 * time.Millisecond
	b := connectedBroker(t, session)

	const n = 16
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := b.Attach(context.Background(), func(*wire.Event) {}); err != nil {
				t.Errorf("Attach: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := session.SubscribeCalls(); got != 1 {
		t.Errorf("subscribe calls = %d, want 1 (single-flight)", got)
	}
	if stats := b.Stats(); stats.Subscribers != n {
		t.Errorf("subscribers = %d, want %d", stats.Subscribers, n)
	}
}

func TestAttachWhileDisconnectedDefers(t *testing.T) {
	session := mock.NewSession()
	b := NewBroker(session, BrokerConfig{})

	const n = 8
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := b.Attach(context.Background(), func(*wire.Event) {}); err != nil {
				t.Errorf("Attach while disconnected: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := session.SubscribeCalls(); got != 0 {
		t.Fatalf("subscribe calls before connect = %d, want 0", got)
	}

	// A single connected transition establishes exactly one subscription.
	if err := session.Connect(context.Background()); err != nil {
		t.Fatalf("mock connect: %v", err)
	}
	b.HandleConnectionState(true)

	if got := session.SubscribeCalls(); got != 1 {
		t.Errorf("subscribe calls after connect = %d, want 1", got)
	}
}

func TestDetachUnsubscribesAtZero(t *testing.T) {
	session := mock.NewSession()
	b := connectedBroker(t, session)

	ctx := context.Background()
	id1, _ := b.Attach(ctx, func(*wire.Event) {})
	id2, _ := b.Attach(ctx, func(*wire.Event) {})

	b.Detach(ctx, id1)
	if got := session.UnsubscribeCalls(); got != 0 {
		t.Errorf("unsubscribe calls with one subscriber left = %d, want 0", got)
	}

	b.Detach(ctx, id2)
	if got := session.UnsubscribeCalls(); got != 1 {
		t.Errorf("unsubscribe calls at zero subscribers = %d, want 1", got)
	}
	if stats := b.Stats(); stats.Subscribers != 0 || stats.Subscribed {
		t.Errorf("stats = %+v, want empty and unsubscribed", stats)
	}
}

func TestDetachFloorsAtZero(t *testing.T) {
	session := mock.NewSession()
	b := connectedBroker(t, session)

	ctx := context.Background()
	id, _ := b.Attach(ctx, func(*wire.Event) {})

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Detach(ctx, id)
		}()
	}
	wg.Wait()

	if stats := b.Stats(); stats.Subscribers != 0 {
		t.Errorf("subscribers = %d, want 0 (floored)", stats.Subscribers)
	}
	if got := session.UnsubscribeCalls(); got > 1 {
		t.Errorf("unsubscribe calls = %d, want at most 1", got)
	}
}

func TestDetachClearsHandleOnUnsubscribeError(t *testing.T) {
	session := mock.NewSession()
	session.UnsubscribeErr = errors.New("publisher gone")
	b := connectedBroker(t, session)

	ctx := context.Background()
	id, _ := b.Attach(ctx, func(*wire.Event) {})
	b.Detach(ctx, id)

	// The failure is logged only; local state must move on.
	if stats := b.Stats(); stats.Subscribed {
		t.Error("subscription still marked active after failed unsubscribe")
	}
}

func TestSubscribeFailureKeepsCount(t *testing.T) {
	session := mock.NewSession()
	session.SubscribeErr = errors.New("rejected")
	b := connectedBroker(t, session)

	_, err := b.Attach(context.Background(), func(*wire.Event) {})
	if err == nil {
		t.Fatal("Attach should surface the subscribe failure")
	}

	stats := b.Stats()
	if stats.Subscribers != 1 {
		t.Errorf("subscribers = %d, want 1 (count unchanged on failure)", stats.Subscribers)
	}
	if stats.Subscribed {
		t.Error("no subscription should exist after failure")
	}

	// The next connected transition retries and succeeds.
	session.SubscribeErr = nil
	b.HandleConnectionState(true)
	if stats := b.Stats(); !stats.Subscribed {
		t.Error("connected transition should re-establish the subscription")
	}
}

func TestHeartbeatClassification(t *testing.T) {
	session := mock.NewSession()
	b := connectedBroker(t, session)

	var delivered int
	if _, err := b.Attach(context.Background(), func(*wire.Event) { delivered++ }); err != nil {
		t.Fatalf("Attach: %v", err)
	}

	for size := 0; size <= wire.MaxHeartbeatSize; size += 4 {
		session.Deliver(make([]byte, size))
	}

	if delivered != 0 {
		t.Errorf("delivered = %d, want 0 for heartbeats", delivered)
	}
	if stats := b.Stats(); stats.Heartbeats != 5 || stats.DecodeFailures != 0 {
		t.Errorf("stats = %+v, want 5 heartbeats and no decode failures", stats)
	}
}

func TestShortBuffersDropped(t *testing.T) {
	session := mock.NewSession()
	b := connectedBroker(t, session)

	var delivered int
	if _, err := b.Attach(context.Background(), func(*wire.Event) { delivered++ }); err != nil {
		t.Fatalf("Attach: %v", err)
	}

	for _, size := range []int{17, 50, 83} {
		session.Deliver(make([]byte, size))
	}

	if delivered != 0 {
		t.Errorf("delivered = %d, want 0 for undecodable buffers", delivered)
	}
	if stats := b.Stats(); stats.DecodeFailures != 3 || stats.Heartbeats != 0 {
		t.Errorf("stats = %+v, want 3 decode failures", stats)
	}

	// Delivery continues after malformed buffers.
	session.Deliver(rawEntry(120, 1, 1, time.Now(), time.Time{}))
	if delivered != 1 {
		t.Errorf("delivered = %d, want 1 after valid entry", delivered)
	}
}

func TestDisconnectInvalidatesWithoutUnsubscribe(t *testing.T) {
	session := mock.NewSession()
	b := connectedBroker(t, session)

	ctx := context.Background()
	if _, err := b.Attach(ctx, func(*wire.Event) {}); err != nil {
		t.Fatalf("Attach: %v", err)
	}

	b.HandleConnectionState(false)

	if got := session.UnsubscribeCalls(); got != 0 {
		t.Errorf("unsubscribe calls on disconnect = %d, want 0 (session is gone)", got)
	}
	stats := b.Stats()
	if stats.Subscribed {
		t.Error("handle should be invalidated on disconnect")
	}
	if stats.Subscribers != 1 {
		t.Errorf("subscribers = %d, want 1 (interest survives disconnect)", stats.Subscribers)
	}

	// Reconnect re-subscribes for the surviving interest.
	b.HandleConnectionState(true)
	if got := session.SubscribeCalls(); got != 2 {
		t.Errorf("subscribe calls after reconnect = %d, want 2", got)
	}
}

func TestForceResubscribe(t *testing.T) {
	session := mock.NewSession()
	b := connectedBroker(t, session)

	ctx := context.Background()
	if _, err := b.Attach(ctx, func(*wire.Event) {}); err != nil {
		t.Fatalf("Attach: %v", err)
	}

	if err := b.ForceResubscribe(ctx); err != nil {
		t.Fatalf("ForceResubscribe: %v", err)
	}

	if got := session.UnsubscribeCalls(); got != 1 {
		t.Errorf("unsubscribe calls = %d, want 1", got)
	}
	if got := session.SubscribeCalls(); got != 2 {
		t.Errorf("subscribe calls = %d, want 2", got)
	}
}

func TestRaisedThenClearedScenario(t *testing.T) {
	session := mock.NewSession()
	b := connectedBroker(t, session)

	var events []*wire.Event
	if _, err := b.Attach(context.Background(), func(e *wire.Event) { events = append(events, e) }); err != nil {
		t.Fatalf("Attach: %v", err)
	}

	raised := time.Date(2024, 2, 19, 8, 0, 0, 0, time.UTC)
	cleared := raised.Add(42 * time.Second)

	session.Deliver(make([]byte, 16))                          // heartbeat
	session.Deliver(rawEntry(120, 77, 1, raised, time.Time{})) // raised
	session.Deliver(rawEntry(130, 77, 0, raised, cleared))     // cleared, same key

	if len(events) != 2 {
		t.Fatalf("fanned out %d events, want 2 (heartbeat excluded)", len(events))
	}
	if events[0].AlarmState != wire.AlarmRaised {
		t.Errorf("first event state = %v, want Raised", events[0].AlarmState)
	}
	if events[1].AlarmState != wire.AlarmCleared {
		t.Errorf("second event state = %v, want Cleared", events[1].AlarmState)
	}
	if events[1].TimeCleared.IsZero() {
		t.Error("second event should carry a cleared timestamp")
	}
	if events[0].Key() != events[1].Key() {
		t.Errorf("keys differ: %+v vs %+v", events[0].Key(), events[1].Key())
	}
	if stats := b.Stats(); stats.Heartbeats != 1 || stats.Delivered != 2 {
		t.Errorf("stats = %+v, want 1 heartbeat and 2 delivered", stats)
	}
}

// Package mock provides scripted transport implementations for testing the
// broker, supervisor and service layers without a live publisher.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/plcalarm/plcalarm-go/pkg/transport"
)

// Session is a scripted transport session. All fields prefixed with a verb
// (ConnectErr, SubscribeDelay, ...) are set by the test before use; call
// counters can be read at any time.
type Session struct {
	mu sync.Mutex

	// ConnectResults is a queue of results for successive Connect calls.
	// When exhausted, ConnectErr is used.
	ConnectResults []error

	// ConnectErr is returned by Connect once ConnectResults is exhausted.
	ConnectErr error

	// ConnectDelay widens the connect window so tests can pile up
	// concurrent connect attempts on one in-flight call.
	ConnectDelay time.Duration

	// SubscribeErr is returned by Subscribe.
	SubscribeErr error

	// SubscribeDelay widens the subscribe window so tests can pile up
	// concurrent attach attempts on one in-flight call.
	SubscribeDelay time.Duration

	// UnsubscribeErr is returned by Handle.Unsubscribe.
	UnsubscribeErr error

	connectCalls     int
	subscribeCalls   int
	unsubscribeCalls int

	connected  bool
	params     transport.SubscriptionParams
	notifyFn   transport.NotificationFunc
	onConnect  func()
	onDisconn  func()
}

// NewSession creates a scripted session.
func NewSession() *Session {
	return &Session{}
}

// Connect records the call and consumes the next scripted result.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	s.connectCalls++
	err := s.ConnectErr
	if len(s.ConnectResults) > 0 {
		err = s.ConnectResults[0]
		s.ConnectResults = s.ConnectResults[1:]
	}
	delay := s.ConnectDelay
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.connected = true
	onConnect := s.onConnect
	s.mu.Unlock()

	if onConnect != nil {
		onConnect()
	}
	return nil
}

// FireConnected re-fires the connected callback without a new Connect call,
// simulating a transport that signals the same logical connection twice.
func (s *Session) FireConnected() {
	s.mu.Lock()
	onConnect := s.onConnect
	s.mu.Unlock()
	if onConnect != nil {
		onConnect()
	}
}

// Close marks the session disconnected without firing the disconnected
// callback, matching a deliberate close on the real client.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	s.notifyFn = nil
	return nil
}

// Subscribe records the call, optionally sleeps to simulate transport I/O,
// and arms fn as the notification callback.
func (s *Session) Subscribe(ctx context.Context, params transport.SubscriptionParams, fn transport.NotificationFunc) (transport.Handle, error) {
	s.mu.Lock()
	s.subscribeCalls++
	delay := s.SubscribeDelay
	err := s.SubscribeErr
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.params = params
	s.notifyFn = fn
	s.mu.Unlock()
	return &Handle{session: s}, nil
}

// OnConnected registers the connected callback.
func (s *Session) OnConnected(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onConnect = fn
}

// OnDisconnected registers the disconnected callback.
func (s *Session) OnDisconnected(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDisconn = fn
}

// Deliver pushes one raw notification buffer into the armed callback.
// No-op when nothing is subscribed.
func (s *Session) Deliver(data []byte) {
	s.mu.Lock()
	fn := s.notifyFn
	s.mu.Unlock()
	if fn != nil {
		fn(data)
	}
}

// DropConnection simulates session loss: the session goes down and the
// disconnected callback fires, as the real client's reader does.
func (s *Session) DropConnection() {
	s.mu.Lock()
	s.connected = false
	s.notifyFn = nil
	onDisconn := s.onDisconn
	s.mu.Unlock()

	if onDisconn != nil {
		onDisconn()
	}
}

// ConnectCalls returns the number of Connect calls.
func (s *Session) ConnectCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectCalls
}

// SubscribeCalls returns the number of Subscribe calls.
func (s *Session) SubscribeCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribeCalls
}

// UnsubscribeCalls returns the number of Unsubscribe calls.
func (s *Session) UnsubscribeCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unsubscribeCalls
}

// Params returns the parameters of the last Subscribe call.
func (s *Session) Params() transport.SubscriptionParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// IsConnected reports the scripted connection state.
func (s *Session) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Handle is the mock subscription handle.
type Handle struct {
	session *Session
}

// Unsubscribe records the call and disarms the notification callback.
func (h *Handle) Unsubscribe(ctx context.Context) error {
	s := h.session
	s.mu.Lock()
	s.unsubscribeCalls++
	s.notifyFn = nil
	err := s.UnsubscribeErr
	s.mu.Unlock()
	return err
}

// Compile-time interface satisfaction checks.
var (
	_ transport.Session = (*Session)(nil)
	_ transport.Handle  = (*Handle)(nil)
)

package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	plog "github.com/plcalarm/plcalarm-go/pkg/log"
	"github.com/plcalarm/plcalarm-go/pkg/transport"
)

// Supervisor errors.
var (
	ErrSupervisorClosed = errors.New("supervisor closed")
)

// DefaultRetryInterval is the fixed delay between reconnect attempts.
const DefaultRetryInterval = 5 * time.Second

// State represents the connection state.
type State uint8

const (
	// StateDisconnected indicates no active session.
	StateDisconnected State = iota

	// StateConnecting indicates a connect attempt is in progress.
	StateConnecting

	// StateConnected indicates an active session.
	StateConnected
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	default:
		return "UNKNOWN"
	}
}

// StateChangeFunc observes state transitions.
type StateChangeFunc func(oldState, newState State)

// SupervisorConfig configures a Supervisor.
type SupervisorConfig struct {
	// RetryInterval is the fixed delay between reconnect attempts
	// (default: DefaultRetryInterval).
	RetryInterval time.Duration

	// Logger receives operational log records. Nil disables logging.
	Logger *slog.Logger

	// CaptureLogger receives protocol capture events. Nil disables capture.
	CaptureLogger plog.Logger
}

// Supervisor manages the session lifecycle with fixed-interval reconnection.
type Supervisor struct {
	session       transport.Session
	retryInterval time.Duration
	logger        *slog.Logger
	capture       plog.Logger

	mu     sync.Mutex
	state  State
	closed bool

	// connectedSignaled guards against the transport firing its connected
	// callback more than once for the same logical session.
	connectedSignaled bool

	retryTimer *time.Timer
	observers  []StateChangeFunc

	// flight deduplicates concurrent connect attempts.
	flight singleflight.Group
}

// NewSupervisor creates a supervisor over the given session and registers
// itself for the session's connection signals.
func NewSupervisor(session transport.Session, config SupervisorConfig) *Supervisor {
	retryInterval := config.RetryInterval
	if retryInterval <= 0 {
		retryInterval = DefaultRetryInterval
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	capture := config.CaptureLogger
	if capture == nil {
		capture = plog.NoopLogger{}
	}

	s := &Supervisor{
		session:       session,
		retryInterval: retryInterval,
		logger:        logger,
		capture:       capture,
		state:         StateDisconnected,
	}
	session.OnConnected(s.handleTransportConnected)
	session.OnDisconnected(s.handleTransportDisconnected)
	return s
}

// State returns the current connection state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsConnected returns true while a session is established.
func (s *Supervisor) IsConnected() bool {
	return s.State() == StateConnected
}

// OnStateChange registers an observer for state transitions. Observers are
// invoked in registration order, once per real transition.
func (s *Supervisor) OnStateChange(fn StateChangeFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Connect establishes the session. Concurrent callers share one in-flight
// attempt. On failure the error is returned and a retry is scheduled after
// the fixed interval; retries continue until Close.
func (s *Supervisor) Connect(ctx context.Context) error {
	_, err, _ := s.flight.Do("connect", func() (any, error) {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return nil, ErrSupervisorClosed
		}
		if s.state == StateConnected {
			s.mu.Unlock()
			return nil, nil
		}
		s.cancelRetryLocked()
		s.mu.Unlock()

		s.transition(StateConnecting, "")

		if err := s.session.Connect(ctx); err != nil {
			s.transition(StateDisconnected, "connect failed")
			s.scheduleRetry()
			return nil, fmt.Errorf("connect: %w", err)
		}

		// The transport's connected callback normally performs this
		// transition; cover sessions that complete without signaling.
		s.mu.Lock()
		if !s.connectedSignaled && !s.closed {
			s.connectedSignaled = true
			s.mu.Unlock()
			s.transition(StateConnected, "")
		} else {
			s.mu.Unlock()
		}
		return nil, nil
	})
	return err
}

// Close tears the supervisor down: the pending retry is cancelled, the
// session is closed, and local state is cleared even when the transport
// reports an error during close.
func (s *Supervisor) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.cancelRetryLocked()
	oldState := s.state
	s.state = StateDisconnected
	s.connectedSignaled = false
	observers := slices.Clone(s.observers)
	s.mu.Unlock()

	err := s.session.Close()
	if err != nil {
		s.logger.Warn("session close failed", "error", err)
	}

	if oldState != StateDisconnected {
		s.capture.Log(plog.StateChanged(plog.StateEntityConnection, oldState.String(), StateDisconnected.String(), "closed"))
		for _, fn := range observers {
			fn(oldState, StateDisconnected)
		}
	}
	return err
}

// handleTransportConnected reacts to the session's connected signal. The
// transport may fire this more than once per logical session; only the first
// signal produces a transition.
func (s *Supervisor) handleTransportConnected() {
	s.mu.Lock()
	if s.closed || s.connectedSignaled {
		s.mu.Unlock()
		return
	}
	s.connectedSignaled = true
	s.mu.Unlock()

	s.transition(StateConnected, "")
}

// handleTransportDisconnected reacts to session loss: transition to
// DISCONNECTED and schedule a reconnect.
func (s *Supervisor) handleTransportDisconnected() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.connectedSignaled = false
	s.mu.Unlock()

	s.transition(StateDisconnected, "connection lost")
	s.scheduleRetry()
}

// transition moves to newState and notifies observers, unless the state is
// unchanged. Callers must not hold s.mu.
func (s *Supervisor) transition(newState State, reason string) {
	s.mu.Lock()
	oldState := s.state
	if oldState == newState {
		s.mu.Unlock()
		return
	}
	s.state = newState
	observers := slices.Clone(s.observers)
	s.mu.Unlock()

	s.logger.Debug("connection state changed", "from", oldState, "to", newState)
	s.capture.Log(plog.StateChanged(plog.StateEntityConnection, oldState.String(), newState.String(), reason))
	for _, fn := range observers {
		fn(oldState, newState)
	}
}

// scheduleRetry arms the retry timer unless one is already pending or the
// supervisor is closed.
func (s *Supervisor) scheduleRetry() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.retryTimer != nil {
		return
	}
	s.logger.Debug("scheduling reconnect", "interval", s.retryInterval)
	s.retryTimer = time.AfterFunc(s.retryInterval, s.retryConnect)
}

// retryConnect runs from the retry timer.
func (s *Supervisor) retryConnect() {
	s.mu.Lock()
	s.retryTimer = nil
	if s.closed || s.state == StateConnected {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if err := s.Connect(context.Background()); err != nil {
		s.logger.Debug("reconnect attempt failed", "error", err)
	}
}

// cancelRetryLocked stops a pending retry timer. Callers hold s.mu.
func (s *Supervisor) cancelRetryLocked() {
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
}

package transport

import (
	"context"
	"time"
)

// NotificationFunc receives one raw notification buffer. The buffer is only
// valid for the duration of the call; implementations must copy it if they
// keep it. Called from the session's reader goroutine, so it must not block.
type NotificationFunc func(data []byte)

// SubscriptionParams describes the device notification to request.
type SubscriptionParams struct {
	// IndexGroup selects the notification source on the publisher.
	IndexGroup uint32

	// IndexOffset selects the notification slot within the group.
	IndexOffset uint32

	// BufferSize is the notification buffer size in bytes.
	BufferSize uint32

	// Cyclic requests cyclic delivery mode rather than on-change.
	Cyclic bool

	// CycleTime is the delivery cycle interval; zero delivers immediately
	// on each notification.
	CycleTime time.Duration
}

// Handle is an established device notification subscription.
type Handle interface {
	// Unsubscribe removes the notification from the publisher. The handle
	// is unusable afterwards regardless of the result.
	Unsubscribe(ctx context.Context) error
}

// Session is a connection to the publisher service. Implementations must be
// safe for concurrent use.
type Session interface {
	// Connect establishes the session.
	Connect(ctx context.Context) error

	// Close tears the session down. Safe to call in any state.
	Close() error

	// Subscribe requests a device notification and arms fn as its
	// callback for the lifetime of the subscription.
	Subscribe(ctx context.Context, params SubscriptionParams, fn NotificationFunc) (Handle, error)

	// OnConnected registers a callback fired when the session comes up.
	OnConnected(fn func())

	// OnDisconnected registers a callback fired when the session is lost.
	OnDisconnected(fn func())
}

// Compile-time interface satisfaction checks.
var (
	_ Session = (*Client)(nil)
	_ Handle  = (*clientHandle)(nil)
)

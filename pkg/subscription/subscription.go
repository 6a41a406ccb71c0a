package subscription

import (
	"github.com/plcalarm/plcalarm-go/pkg/transport"
	"github.com/plcalarm/plcalarm-go/pkg/wire"
)

// Consumer receives decoded events. Called synchronously from the
// transport's reader path in arrival order; consumers must not block.
type Consumer func(*wire.Event)

// Subscription parameters of the publisher's event stream.
const (
	// StreamIndexGroup selects the event stream on the publisher.
	StreamIndexGroup = 1

	// StreamIndexOffset is the event stream's notification slot.
	StreamIndexOffset = 0xFFFF

	// StreamBufferSize is the notification buffer size in bytes.
	StreamBufferSize = 4096
)

// DefaultParams returns the subscription parameters for the publisher's
// event stream: cyclic delivery with a zero cycle interval, which delivers
// immediately on each notification.
func DefaultParams() transport.SubscriptionParams {
	return transport.SubscriptionParams{
		IndexGroup:  StreamIndexGroup,
		IndexOffset: StreamIndexOffset,
		BufferSize:  StreamBufferSize,
		Cyclic:      true,
		CycleTime:   0,
	}
}

// Stats is a snapshot of the broker's counters.
type Stats struct {
	// Subscribers is the current number of attached consumers.
	Subscribers int

	// Subscribed indicates an active underlying subscription.
	Subscribed bool

	// Heartbeats counts heartbeat notifications received.
	Heartbeats uint64

	// DecodeFailures counts notifications dropped as undecodable.
	DecodeFailures uint64

	// Delivered counts events fanned out to consumers.
	Delivered uint64
}

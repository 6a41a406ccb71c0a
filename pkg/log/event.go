package log

import (
	"time"
)

// Event represents a capture event recorded at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"2,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"3,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"4,keyasint"`

	// Type-specific payload (exactly one is set).
	Frame       *FrameEvent       `cbor:"5,keyasint,omitempty"` // Transport layer
	Entry       *EntryEvent       `cbor:"6,keyasint,omitempty"` // Wire layer (decoded)
	StateChange *StateChangeEvent `cbor:"7,keyasint,omitempty"` // Lifecycle
	Error       *ErrorEventData   `cbor:"8,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerTransport is the framing layer (raw bytes).
	LayerTransport Layer = 0
	// LayerWire is the event-entry decoding layer.
	LayerWire Layer = 1
	// LayerService is the broker/supervisor layer.
	LayerService Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerService:
		return "SERVICE"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryFrame indicates a raw transport frame.
	CategoryFrame Category = 0
	// CategoryEntry indicates a decoded event entry.
	CategoryEntry Category = 1
	// CategoryHeartbeat indicates a heartbeat notification.
	CategoryHeartbeat Category = 2
	// CategoryState indicates a state change.
	CategoryState Category = 3
	// CategoryError indicates an error event.
	CategoryError Category = 4
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryFrame:
		return "FRAME"
	case CategoryEntry:
		return "ENTRY"
	case CategoryHeartbeat:
		return "HEARTBEAT"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures one transport frame.
type FrameEvent struct {
	// Command is the frame's command ID.
	Command uint16 `cbor:"1,keyasint"`

	// InvokeID correlates request/response pairs (0 for notifications).
	InvokeID uint32 `cbor:"2,keyasint"`

	// Size is the total frame size in bytes.
	Size int `cbor:"3,keyasint"`
}

// EntryEvent captures a decoded event entry at the wire layer.
type EntryEvent struct {
	// EventClassID is the entry's class GUID in dashed-hex form.
	EventClassID string `cbor:"1,keyasint"`

	// EventID identifies the event within its class.
	EventID uint32 `cbor:"2,keyasint"`

	// Severity is the decoded severity name.
	Severity string `cbor:"3,keyasint"`

	// IsAlarm indicates an alarm entry.
	IsAlarm bool `cbor:"4,keyasint,omitempty"`

	// AlarmState is the Raised/Cleared state name.
	AlarmState string `cbor:"5,keyasint,omitempty"`

	// SourceName is the extracted source, may be empty.
	SourceName string `cbor:"6,keyasint,omitempty"`

	// BufferSize is the raw notification size in bytes.
	BufferSize int `cbor:"7,keyasint"`
}

// StateChangeEvent captures connection and subscription lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityConnection indicates a connection state change.
	StateEntityConnection StateEntity = 0
	// StateEntitySubscription indicates a subscription state change.
	StateEntitySubscription StateEntity = 1
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntitySubscription:
		return "SUBSCRIPTION"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"3,keyasint,omitempty"`
}

// FrameSent builds a transport-layer event for an outgoing frame.
func FrameSent(command uint16, invokeID uint32, size int) Event {
	return Event{
		Timestamp: time.Now(),
		Direction: DirectionOut,
		Layer:     LayerTransport,
		Category:  CategoryFrame,
		Frame:     &FrameEvent{Command: command, InvokeID: invokeID, Size: size},
	}
}

// FrameReceived builds a transport-layer event for an incoming frame.
func FrameReceived(command uint16, invokeID uint32, size int) Event {
	return Event{
		Timestamp: time.Now(),
		Direction: DirectionIn,
		Layer:     LayerTransport,
		Category:  CategoryFrame,
		Frame:     &FrameEvent{Command: command, InvokeID: invokeID, Size: size},
	}
}

// EntryDecoded builds a wire-layer event for a decoded entry.
func EntryDecoded(entry EntryEvent) Event {
	return Event{
		Timestamp: time.Now(),
		Direction: DirectionIn,
		Layer:     LayerWire,
		Category:  CategoryEntry,
		Entry:     &entry,
	}
}

// Heartbeat builds a wire-layer event for a heartbeat notification.
func Heartbeat(size int) Event {
	return Event{
		Timestamp: time.Now(),
		Direction: DirectionIn,
		Layer:     LayerWire,
		Category:  CategoryHeartbeat,
		Entry:     &EntryEvent{BufferSize: size},
	}
}

// StateChanged builds a service-layer event for a lifecycle transition.
func StateChanged(entity StateEntity, oldState, newState, reason string) Event {
	return Event{
		Timestamp: time.Now(),
		Direction: DirectionIn,
		Layer:     LayerService,
		Category:  CategoryState,
		StateChange: &StateChangeEvent{
			Entity:   entity,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	}
}

// ErrorEvent builds an error event for the given layer.
func ErrorEvent(layer Layer, context string, err error) Event {
	return Event{
		Timestamp: time.Now(),
		Direction: DirectionIn,
		Layer:     layer,
		Category:  CategoryError,
		Error:     &ErrorEventData{Layer: layer, Message: err.Error(), Context: context},
	}
}

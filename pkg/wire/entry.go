package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// Entry size boundaries. Buffers of MaxHeartbeatSize bytes or fewer are
// heartbeats and must not reach DecodeEntry; buffers below MinEntrySize
// cannot hold a structured entry.
const (
	MaxHeartbeatSize = 16
	MinEntrySize     = 84
)

// Field offsets within an event entry.
const (
	offVersion      = 0
	offMessageType  = 4
	offPayloadSize  = 8
	offEventClassID = 12
	offEventID      = 28

	// The severity is the single byte at offset 36. A second decoder found
	// in the source service reads a 4-byte field at offset 32 instead; the
	// live notification path uses the byte at 36. Needs validation against
	// a real capture before changing.
	offSeverity = 36

	offEventKind     = 40
	offRaisedFlag    = 52
	offTimeRaised    = 60
	offTimeCleared   = 68
	offTimeConfirmed = 76
	offStringTable   = 128
)

// ErrTooShort indicates a buffer below the minimum structured entry size.
var ErrTooShort = errors.New("event entry too short")

// Event is a decoded event/alarm entry.
//
// A zero time.Time in any of the timestamp fields means the underlying
// 64-bit counter was all-zero, i.e. the timestamp is absent - not an instant
// at the epoch. Events are immutable after decoding; identity is the
// (EventClassID, EventID, TimeRaised) triple, see Key.
type Event struct {
	// Version is the declared protocol version, observed constant 1.
	Version uint32

	// MessageType is the declared notification type (informational).
	MessageType MessageType

	// PayloadSize is the declared payload size. It is informational and
	// never used to bound parsing.
	PayloadSize uint32

	// EventClassID identifies the event class, in canonical dashed-hex
	// GUID form. Empty if the identifier bytes could not be read.
	EventClassID string

	// EventID identifies the event definition within its class.
	EventID uint32

	// Severity is the event severity, defaulted to Verbose when the raw
	// byte is out of range.
	Severity Severity

	// IsAlarm is true when the entry's event kind is the alarm sentinel.
	IsAlarm bool

	// AlarmState is Raised or Cleared, derived from the raised flag byte.
	AlarmState AlarmState

	// TimeRaised is when the event was raised, zero if absent.
	TimeRaised time.Time

	// TimeCleared is when the alarm was cleared, zero if absent.
	TimeCleared time.Time

	// TimeConfirmed is when the alarm was confirmed, zero if absent.
	TimeConfirmed time.Time

	// SourceName is the heuristically extracted source, may be empty.
	SourceName string

	// Message is the heuristically extracted message text, may be empty.
	Message string
}

// Key identifies an event occurrence. It is the natural key for any
// downstream store: a cleared notification carries the same key as the
// raised notification it clears.
type Key struct {
	EventClassID string
	EventID      uint32
	TimeRaised   time.Time
}

// Key returns the event's natural key.
func (e *Event) Key() Key {
	return Key{
		EventClassID: e.EventClassID,
		EventID:      e.EventID,
		TimeRaised:   e.TimeRaised,
	}
}

// DecodeEntry decodes a raw notification buffer into an Event.
//
// Buffers shorter than MinEntrySize fail with ErrTooShort. Everything else
// decodes: unrecognized field values degrade to defaults and a missing
// string table leaves SourceName and Message empty. The declared payload
// size is ignored when bounding reads.
func DecodeEntry(buf []byte) (*Event, error) {
	if len(buf) < MinEntrySize {
		return nil, fmt.Errorf("%w: %d bytes, need %d", ErrTooShort, len(buf), MinEntrySize)
	}

	e := &Event{
		Version:     binary.LittleEndian.Uint32(buf[offVersion:]),
		MessageType: MessageType(binary.LittleEndian.Uint16(buf[offMessageType:])),
		PayloadSize: binary.LittleEndian.Uint32(buf[offPayloadSize:]),
		EventID:     binary.LittleEndian.Uint32(buf[offEventID:]),
		Severity:    SeverityFromByte(buf[offSeverity]),
	}

	if guid, ok := DecodeGUID(buf, offEventClassID); ok {
		e.EventClassID = guid
	}

	e.IsAlarm = binary.LittleEndian.Uint32(buf[offEventKind:]) == EventKindAlarm
	if buf[offRaisedFlag] == 1 {
		e.AlarmState = AlarmRaised
	} else {
		e.AlarmState = AlarmCleared
	}

	if t, ok := DecodeEpochTime(buf, offTimeRaised); ok {
		e.TimeRaised = t
	}
	if t, ok := DecodeEpochTime(buf, offTimeCleared); ok {
		e.TimeCleared = t
	}
	if t, ok := DecodeEpochTime(buf, offTimeConfirmed); ok {
		e.TimeConfirmed = t
	}

	runs := FindPrintableRuns(buf, offStringTable)
	if len(runs) > 0 {
		e.SourceName = runs[0].Text
	}
	if len(runs) > 1 {
		e.Message = runs[1].Text
	}

	return e, nil
}

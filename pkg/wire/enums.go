package wire

// Severity classifies the importance of an event entry.
type Severity uint8

const (
	// SeverityVerbose is the lowest severity and the fallback for
	// unrecognized severity bytes.
	SeverityVerbose Severity = 0

	// SeverityInfo indicates an informational event.
	SeverityInfo Severity = 1

	// SeverityWarning indicates a condition that may need attention.
	SeverityWarning Severity = 2

	// SeverityError indicates a fault.
	SeverityError Severity = 3

	// SeverityCritical indicates a fault requiring immediate attention.
	SeverityCritical Severity = 4
)

// SeverityFromByte maps a raw severity byte to a Severity. Values outside
// 0-4 fall back to SeverityVerbose; an unrecognized severity never fails a
// decode.
func SeverityFromByte(b byte) Severity {
	if b > byte(SeverityCritical) {
		return SeverityVerbose
	}
	return Severity(b)
}

// String returns the severity name.
func (s Severity) String() string {
	switch s {
	case SeverityVerbose:
		return "Verbose"
	case SeverityInfo:
		return "Info"
	case SeverityWarning:
		return "Warning"
	case SeverityError:
		return "Error"
	case SeverityCritical:
		return "Critical"
	default:
		return "Verbose"
	}
}

// AlarmState represents the raised/cleared state of an alarm entry.
type AlarmState uint8

const (
	// AlarmCleared indicates the alarm condition has gone away.
	AlarmCleared AlarmState = 0

	// AlarmRaised indicates the alarm condition is active.
	AlarmRaised AlarmState = 1
)

// String returns the alarm state name.
func (s AlarmState) String() string {
	switch s {
	case AlarmRaised:
		return "Raised"
	default:
		return "Cleared"
	}
}

// MessageType is the declared type of a notification. It is informational:
// classification is actually driven by total buffer length, since short
// heartbeat notifications do not carry this field reliably.
type MessageType uint16

const (
	// MessageTypeRaised indicates a newly raised event.
	MessageTypeRaised MessageType = 1

	// MessageTypeChanged indicates a state change on an existing event.
	MessageTypeChanged MessageType = 2

	// MessageTypeHeartbeat indicates a liveness heartbeat.
	MessageTypeHeartbeat MessageType = 10
)

// String returns the message type name.
func (t MessageType) String() string {
	switch t {
	case MessageTypeRaised:
		return "RAISED"
	case MessageTypeChanged:
		return "CHANGED"
	case MessageTypeHeartbeat:
		return "HEARTBEAT"
	default:
		return "UNKNOWN"
	}
}

// EventKindAlarm is the eventKind value marking an entry as an alarm.
const EventKindAlarm uint32 = 2

// Package wire decodes the binary notification format of the event/alarm
// publisher service.
//
// The format has no formal schema. The layout below was recovered from the
// service's live notification stream and is decoded defensively: out-of-range
// field values degrade to defaults, and reads past the end of a buffer
// degrade per field rather than failing the whole entry.
//
// # Entry Layout
//
// All integers are little-endian unless noted. Byte offsets:
//
//	 0   4  version       observed constant 1
//	 4   2  messageType   1=raised, 2=changed, 10=heartbeat (informational)
//	 8   4  payloadSize   informational, not used to bound parsing
//	12  16  eventClassId  GUID, mixed-endian (4B LE, 2B LE, 2B LE, 2B BE, 6B BE)
//	28   4  eventId
//	36   1  severity      0-4 valid, anything else falls back to Verbose
//	40   4  eventKind     2 = alarm
//	52   1  raisedFlag    1=raised, 0=cleared
//	60   8  timeRaised    100ns ticks since 1601-01-01, all-zero = absent
//	68   8  timeCleared   same encoding
//	76   8  timeConfirmed same encoding
//	128+    string table  heuristically scanned printable runs
//
// Notifications of 16 bytes or fewer are heartbeats and carry none of the
// fields above; buffers shorter than 84 bytes cannot hold a structured entry
// and fail decoding with ErrTooShort.
//
// # String Heuristic
//
// The format does not expose reliable string boundaries. FindPrintableRuns
// scans for runs of printable ASCII from the string-table offset; the first
// run is taken as the source name and the second as the message text. An
// incidental printable byte sequence ahead of the true string table can
// misattribute these fields. This is a known limitation of the heuristic and
// is deliberately left as-is pending real protocol documentation.
package wire

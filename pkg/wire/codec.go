package wire

import (
	"encoding/binary"
	"time"

	"github.com/google/uuid"
)

// GUIDSize is the encoded size of an event class identifier.
const GUIDSize = 16

// Epoch conversion constants. Timestamps on the wire count 100ns ticks from
// 1601-01-01; Unix time starts 11,644,473,600,000 ms later.
const (
	ticksPerMilli     = 10_000
	epochOffsetMillis = 11_644_473_600_000
)

// minRunLength is the shortest printable run kept by FindPrintableRuns.
// Shorter runs are overwhelmingly incidental bytes, not text.
const minRunLength = 3

// DecodeGUID reads a 16-byte mixed-endian GUID at offset and renders it in
// canonical dashed-hex form. The first three groups are little-endian on the
// wire; the remaining two are big-endian, matching RFC 4122 byte order.
// Returns false if fewer than 16 bytes are available. Never panics.
func DecodeGUID(buf []byte, offset int) (string, bool) {
	if offset < 0 || len(buf)-offset < GUIDSize {
		return "", false
	}

	var raw [GUIDSize]byte
	copy(raw[:], buf[offset:offset+GUIDSize])

	// Reorder the little-endian groups to RFC 4122 big-endian.
	raw[0], raw[1], raw[2], raw[3] = raw[3], raw[2], raw[1], raw[0]
	raw[4], raw[5] = raw[5], raw[4]
	raw[6], raw[7] = raw[7], raw[6]

	id, err := uuid.FromBytes(raw[:])
	if err != nil {
		return "", false
	}
	return id.String(), true
}

// DecodeEpochTime reads a 64-bit tick counter at offset as two 32-bit
// little-endian words and converts it to an absolute UTC instant. An all-zero
// counter is the sentinel for "not set" and returns false, as does a buffer
// with fewer than 8 bytes available.
//
// The conversion uses 64-bit integer arithmetic throughout; a float path
// would lose millisecond precision once values pass 2^53.
func DecodeEpochTime(buf []byte, offset int) (time.Time, bool) {
	if offset < 0 || len(buf)-offset < 8 {
		return time.Time{}, false
	}

	low := binary.LittleEndian.Uint32(buf[offset:])
	high := binary.LittleEndian.Uint32(buf[offset+4:])
	if low == 0 && high == 0 {
		return time.Time{}, false
	}

	ticks := uint64(high)<<32 | uint64(low)
	millis := int64(ticks/ticksPerMilli) - epochOffsetMillis
	return time.UnixMilli(millis).UTC(), true
}

// Run is a contiguous sequence of printable ASCII bytes found in a buffer.
type Run struct {
	// Offset is the byte offset of the run's first character.
	Offset int

	// Text is the run's content.
	Text string
}

// FindPrintableRuns scans buf from start for runs of printable ASCII bytes
// (0x20 inclusive to 0x7F exclusive) and returns them in buffer order. Runs
// shorter than three bytes are discarded.
//
// This is a heuristic, not a field read: the wire format exposes no string
// boundaries, so callers take runs positionally (first = source name,
// second = message). A start at or past the end of the buffer yields nil.
func FindPrintableRuns(buf []byte, start int) []Run {
	if start < 0 {
		start = 0
	}

	var runs []Run
	runStart := -1
	for i := start; i <= len(buf); i++ {
		if i < len(buf) && buf[i] >= 0x20 && buf[i] < 0x7F {
			if runStart < 0 {
				runStart = i
			}
			continue
		}
		if runStart >= 0 && i-runStart >= minRunLength {
			runs = append(runs, Run{Offset: runStart, Text: string(buf[runStart:i])})
		}
		runStart = -1
	}
	return runs
}

package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Framing constants.
const (
	// tcpHeaderSize is the size of the outer TCP header: two reserved
	// bytes followed by the little-endian frame length.
	tcpHeaderSize = 6

	// headerSize is the size of the routing header inside every frame.
	headerSize = 32

	// DefaultMaxFrameSize is the largest frame accepted from the wire.
	DefaultMaxFrameSize = 1 << 20
)

// Command IDs.
const (
	cmdAddNotification    uint16 = 6
	cmdDeleteNotification uint16 = 7
	cmdNotification       uint16 = 8
)

// State flags. Bit 0 distinguishes response from request, bit 2 marks a
// command frame.
const (
	stateFlagsRequest  uint16 = 0x0004
	stateFlagsResponse uint16 = 0x0005
)

// Transmission modes for AddDeviceNotification.
const (
	transModeCyclic   uint32 = 3
	transModeOnChange uint32 = 4
)

// Framing errors.
var (
	ErrFrameTooLarge  = errors.New("frame too large")
	ErrFrameTruncated = errors.New("frame truncated")
	ErrInvalidNetID   = errors.New("invalid net ID")
)

// NetID is the six-byte routing address of a publisher or client.
type NetID [6]byte

// ParseNetID parses a dotted net ID such as "192.168.2.14.1.1".
func ParseNetID(s string) (NetID, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 6 {
		return NetID{}, fmt.Errorf("%w: %q", ErrInvalidNetID, s)
	}

	var id NetID
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			return NetID{}, fmt.Errorf("%w: %q", ErrInvalidNetID, s)
		}
		id[i] = byte(v)
	}
	return id, nil
}

// String returns the dotted form of the net ID.
func (n NetID) String() string {
	parts := make([]string, len(n))
	for i, b := range n {
		parts[i] = strconv.Itoa(int(b))
	}
	return strings.Join(parts, ".")
}

// header is the 32-byte routing header carried in every frame.
type header struct {
	Target     NetID
	TargetPort uint16
	Source     NetID
	SourcePort uint16
	Command    uint16
	StateFlags uint16
	Length     uint32
	ErrorCode  uint32
	InvokeID   uint32
}

// encodeFrame renders a complete wire frame: TCP header, routing header and
// command payload.
func encodeFrame(h header, payload []byte) []byte {
	h.Length = uint32(len(payload))

	buf := make([]byte, tcpHeaderSize+headerSize+len(payload))
	binary.LittleEndian.PutUint32(buf[2:], uint32(headerSize+len(payload)))

	p := buf[tcpHeaderSize:]
	copy(p[0:], h.Target[:])
	binary.LittleEndian.PutUint16(p[6:], h.TargetPort)
	copy(p[8:], h.Source[:])
	binary.LittleEndian.PutUint16(p[14:], h.SourcePort)
	binary.LittleEndian.PutUint16(p[16:], h.Command)
	binary.LittleEndian.PutUint16(p[18:], h.StateFlags)
	binary.LittleEndian.PutUint32(p[20:], h.Length)
	binary.LittleEndian.PutUint32(p[24:], h.ErrorCode)
	binary.LittleEndian.PutUint32(p[28:], h.InvokeID)
	copy(p[headerSize:], payload)

	return buf
}

// readFrame reads one frame from r and returns its routing header and
// command payload.
func readFrame(r io.Reader, maxSize uint32) (header, []byte, error) {
	var tcpHdr [tcpHeaderSize]byte
	if _, err := io.ReadFull(r, tcpHdr[:]); err != nil {
		if err == io.EOF {
			return header{}, nil, err
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return header{}, nil, ErrFrameTruncated
		}
		return header{}, nil, fmt.Errorf("failed to read frame header: %w", err)
	}

	length := binary.LittleEndian.Uint32(tcpHdr[2:])
	if length < headerSize {
		return header{}, nil, ErrFrameTruncated
	}
	if length > maxSize {
		return header{}, nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, length, maxSize)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
			return header{}, nil, ErrFrameTruncated
		}
		return header{}, nil, fmt.Errorf("failed to read frame body: %w", err)
	}

	var h header
	copy(h.Target[:], body[0:])
	h.TargetPort = binary.LittleEndian.Uint16(body[6:])
	copy(h.Source[:], body[8:])
	h.SourcePort = binary.LittleEndian.Uint16(body[14:])
	h.Command = binary.LittleEndian.Uint16(body[16:])
	h.StateFlags = binary.LittleEndian.Uint16(body[18:])
	h.Length = binary.LittleEndian.Uint32(body[20:])
	h.ErrorCode = binary.LittleEndian.Uint32(body[24:])
	h.InvokeID = binary.LittleEndian.Uint32(body[28:])

	return h, body[headerSize:], nil
}

// encodeAddNotificationRequest builds the AddDeviceNotification payload.
func encodeAddNotificationRequest(params SubscriptionParams) []byte {
	mode := transModeOnChange
	if params.Cyclic {
		mode = transModeCyclic
	}

	buf := make([]byte, 40)
	binary.LittleEndian.PutUint32(buf[0:], params.IndexGroup)
	binary.LittleEndian.PutUint32(buf[4:], params.IndexOffset)
	binary.LittleEndian.PutUint32(buf[8:], params.BufferSize)
	binary.LittleEndian.PutUint32(buf[12:], mode)
	binary.LittleEndian.PutUint32(buf[16:], 0) // max delay
	// Cycle time in 100ns units.
	binary.LittleEndian.PutUint32(buf[20:], uint32(params.CycleTime.Nanoseconds()/100))
	// Bytes 24-39 reserved.
	return buf
}

// parseAddNotificationResponse returns the notification handle.
func parseAddNotificationResponse(payload []byte) (uint32, error) {
	if len(payload) < 8 {
		return 0, ErrFrameTruncated
	}
	if result := binary.LittleEndian.Uint32(payload); result != 0 {
		return 0, &ServiceError{Code: result}
	}
	return binary.LittleEndian.Uint32(payload[4:]), nil
}

// encodeDeleteNotificationRequest builds the DeleteDeviceNotification payload.
func encodeDeleteNotificationRequest(handle uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, handle)
	return buf
}

// parseDeleteNotificationResponse checks the delete result.
func parseDeleteNotificationResponse(payload []byte) error {
	if len(payload) < 4 {
		return ErrFrameTruncated
	}
	if result := binary.LittleEndian.Uint32(payload); result != 0 {
		return &ServiceError{Code: result}
	}
	return nil
}

// ServiceError is a non-zero result code returned by the publisher.
type ServiceError struct {
	Code uint32
}

// Error returns the error text.
func (e *ServiceError) Error() string {
	return fmt.Sprintf("publisher returned error code %d", e.Code)
}

// forEachSample walks a DeviceNotification stream payload and calls fn once
// per sample, in wire order. Truncated streams stop at the last complete
// sample; the walked prefix is still delivered.
func forEachSample(payload []byte, fn func(handle uint32, data []byte)) error {
	if len(payload) < 8 {
		return ErrFrameTruncated
	}
	stamps := binary.LittleEndian.Uint32(payload[4:])
	pos := 8

	for s := uint32(0); s < stamps; s++ {
		if len(payload)-pos < 12 {
			return ErrFrameTruncated
		}
		// 8-byte stamp timestamp is unused; sample payloads carry their
		// own timestamps.
		samples := binary.LittleEndian.Uint32(payload[pos+8:])
		pos += 12

		for i := uint32(0); i < samples; i++ {
			if len(payload)-pos < 8 {
				return ErrFrameTruncated
			}
			handle := binary.LittleEndian.Uint32(payload[pos:])
			size := int(binary.LittleEndian.Uint32(payload[pos+4:]))
			pos += 8
			if size < 0 || len(payload)-pos < size {
				return ErrFrameTruncated
			}
			fn(handle, payload[pos:pos+size])
			pos += size
		}
	}
	return nil
}

package transport

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
	"time"
)

func TestParseNetID(t *testing.T) {
	id, err := ParseNetID("192.168.2.14.1.1")
	if err != nil {
		t.Fatalf("ParseNetID: %v", err)
	}
	want := NetID{192, 168, 2, 14, 1, 1}
	if id != want {
		t.Errorf("id = %v, want %v", id, want)
	}
	if got := id.String(); got != "192.168.2.14.1.1" {
		t.Errorf("String() = %q", got)
	}
}

func TestParseNetIDInvalid(t *testing.T) {
	for _, s := range []string{
		"",
		"192.168.2.14",
		"192.168.2.14.1.1.1",
		"192.168.2.14.1.256",
		"192.168.2.14.1.x",
		"192.168.2.14.1.-1",
	} {
		if _, err := ParseNetID(s); !errors.Is(err, ErrInvalidNetID) {
			t.Errorf("ParseNetID(%q) = %v, want ErrInvalidNetID", s, err)
		}
	}
}

func testHeader() header {
	return header{
		Target:     NetID{192, 168, 2, 14, 1, 1},
		TargetPort: 110,
		Source:     NetID{10, 0, 0, 5, 1, 1},
		SourcePort: 32905,
		Command:    cmdAddNotification,
		StateFlags: stateFlagsRequest,
		ErrorCode:  0,
		InvokeID:   42,
	}
}

func TestFrameRoundTrip(t *testing.T) {
	payload := []byte{0xde, 0xad, 0xbe, 0xef}
	frame := encodeFrame(testHeader(), payload)

	h, got, err := readFrame(bytes.NewReader(frame), DefaultMaxFrameSize)
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}

	want := testHeader()
	want.Length = uint32(len(payload))
	if h != want {
		t.Errorf("header = %+v, want %+v", h, want)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("payload = %x, want %x", got, payload)
	}
}

func TestFrameRoundTripEmptyPayload(t *testing.T) {
	frame := encodeFrame(testHeader(), nil)

	h, payload, err := readFrame(bytes.NewReader(frame), DefaultMaxFrameSize)
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	if h.Length != 0 || len(payload) != 0 {
		t.Errorf("length = %d, payload = %x, want empty", h.Length, payload)
	}
}

func TestReadFrameTooLarge(t *testing.T) {
	frame := encodeFrame(testHeader(), make([]byte, 256))

	_, _, err := readFrame(bytes.NewReader(frame), 128)
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("err = %v, want ErrFrameTooLarge", err)
	}
}

func TestReadFrameTruncated(t *testing.T) {
	frame := encodeFrame(testHeader(), []byte{1, 2, 3, 4})

	// Cut the frame mid-body.
	_, _, err := readFrame(bytes.NewReader(frame[:len(frame)-2]), DefaultMaxFrameSize)
	if !errors.Is(err, ErrFrameTruncated) {
		t.Errorf("err = %v, want ErrFrameTruncated", err)
	}

	// Cut mid-TCP-header.
	_, _, err = readFrame(bytes.NewReader(frame[:3]), DefaultMaxFrameSize)
	if !errors.Is(err, ErrFrameTruncated) {
		t.Errorf("err = %v, want ErrFrameTruncated", err)
	}
}

func TestReadFrameLengthBelowHeader(t *testing.T) {
	var tcpHdr [tcpHeaderSize]byte
	binary.LittleEndian.PutUint32(tcpHdr[2:], headerSize-1)

	_, _, err := readFrame(bytes.NewReader(tcpHdr[:]), DefaultMaxFrameSize)
	if !errors.Is(err, ErrFrameTruncated) {
		t.Errorf("err = %v, want ErrFrameTruncated", err)
	}
}

func TestReadFrameEOF(t *testing.T) {
	_, _, err := readFrame(bytes.NewReader(nil), DefaultMaxFrameSize)
	if err != io.EOF {
		t.Errorf("err = %v, want io.EOF", err)
	}
}

func TestEncodeAddNotificationRequest(t *testing.T) {
	buf := encodeAddNotificationRequest(SubscriptionParams{
		IndexGroup:  1,
		IndexOffset: 0xFFFF,
		BufferSize:  4096,
		Cyclic:      true,
		CycleTime:   10 * time.Millisecond,
	})

	if len(buf) != 40 {
		t.Fatalf("payload length = %d, want 40", len(buf))
	}
	if got := binary.LittleEndian.Uint32(buf[0:]); got != 1 {
		t.Errorf("index group = %d", got)
	}
	if got := binary.LittleEndian.Uint32(buf[4:]); got != 0xFFFF {
		t.Errorf("index offset = %#x", got)
	}
	if got := binary.LittleEndian.Uint32(buf[8:]); got != 4096 {
		t.Errorf("buffer size = %d", got)
	}
	if got := binary.LittleEndian.Uint32(buf[12:]); got != transModeCyclic {
		t.Errorf("mode = %d, want cyclic", got)
	}
	if got := binary.LittleEndian.Uint32(buf[20:]); got != 100_000 {
		t.Errorf("cycle time = %d ticks, want 100000", got)
	}
}

func TestEncodeAddNotificationRequestOnChange(t *testing.T) {
	buf := encodeAddNotificationRequest(SubscriptionParams{Cyclic: false})
	if got := binary.LittleEndian.Uint32(buf[12:]); got != transModeOnChange {
		t.Errorf("mode = %d, want on-change", got)
	}
}

func TestParseAddNotificationResponse(t *testing.T) {
	payload := make([]byte, 8)
	binary.LittleEndian.PutUint32(payload[4:], 77)

	handle, err := parseAddNotificationResponse(payload)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if handle != 77 {
		t.Errorf("handle = %d, want 77", handle)
	}
}

func TestParseAddNotificationResponseError(t *testing.T) {
	payload := make([]byte, 8)
	binary.LittleEndian.PutUint32(payload, 0x701)

	_, err := parseAddNotificationResponse(payload)
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("err = %v, want ServiceError", err)
	}
	if svcErr.Code != 0x701 {
		t.Errorf("code = %d", svcErr.Code)
	}

	if _, err := parseAddNotificationResponse(payload[:5]); !errors.Is(err, ErrFrameTruncated) {
		t.Errorf("short payload err = %v, want ErrFrameTruncated", err)
	}
}

func TestDeleteNotificationCodec(t *testing.T) {
	buf := encodeDeleteNotificationRequest(77)
	if got := binary.LittleEndian.Uint32(buf); got != 77 {
		t.Errorf("handle = %d", got)
	}

	if err := parseDeleteNotificationResponse([]byte{0, 0, 0, 0}); err != nil {
		t.Errorf("ok response: %v", err)
	}

	bad := make([]byte, 4)
	binary.LittleEndian.PutUint32(bad, 0x710)
	var svcErr *ServiceError
	if err := parseDeleteNotificationResponse(bad); !errors.As(err, &svcErr) {
		t.Errorf("err = %v, want ServiceError", err)
	}

	if err := parseDeleteNotificationResponse([]byte{0}); !errors.Is(err, ErrFrameTruncated) {
		t.Errorf("short payload err = %v, want ErrFrameTruncated", err)
	}
}

// buildNotificationStream renders a stream payload with one stamp carrying
// the given samples.
func buildNotificationStream(samples ...[]byte) []byte {
	var body bytes.Buffer

	stamp := make([]byte, 12)
	binary.LittleEndian.PutUint32(stamp[8:], uint32(len(samples)))
	body.Write(stamp)

	for i, data := range samples {
		var sampleHdr [8]byte
		binary.LittleEndian.PutUint32(sampleHdr[0:], uint32(100+i))
		binary.LittleEndian.PutUint32(sampleHdr[4:], uint32(len(data)))
		body.Write(sampleHdr[:])
		body.Write(data)
	}

	payload := make([]byte, 8)
	binary.LittleEndian.PutUint32(payload[0:], uint32(8+body.Len()))
	binary.LittleEndian.PutUint32(payload[4:], 1)
	return append(payload, body.Bytes()...)
}

func TestForEachSample(t *testing.T) {
	payload := buildNotificationStream([]byte{1, 2, 3}, []byte{4, 5})

	var handles []uint32
	var sizes []int
	err := forEachSample(payload, func(handle uint32, data []byte) {
		handles = append(handles, handle)
		sizes = append(sizes, len(data))
	})
	if err != nil {
		t.Fatalf("forEachSample: %v", err)
	}
	if len(handles) != 2 || handles[0] != 100 || handles[1] != 101 {
		t.Errorf("handles = %v", handles)
	}
	if sizes[0] != 3 || sizes[1] != 2 {
		t.Errorf("sizes = %v", sizes)
	}
}

func TestForEachSampleTruncated(t *testing.T) {
	payload := buildNotificationStream([]byte{1, 2, 3}, []byte{4, 5})

	// Cutting inside the second sample still delivers the first.
	var delivered int
	err := forEachSample(payload[:len(payload)-1], func(uint32, []byte) {
		delivered++
	})
	if !errors.Is(err, ErrFrameTruncated) {
		t.Errorf("err = %v, want ErrFrameTruncated", err)
	}
	if delivered != 1 {
		t.Errorf("delivered = %d, want the complete prefix", delivered)
	}

	if err := forEachSample([]byte{1, 2}, func(uint32, []byte) {}); !errors.Is(err, ErrFrameTruncated) {
		t.Errorf("tiny payload err = %v, want ErrFrameTruncated", err)
	}
}

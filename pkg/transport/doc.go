// Package transport provides the session layer between the client and the
// event/alarm publisher service.
//
// The rest of the module depends only on the Session interface: connect,
// close, and a single subscribe primitive that delivers raw notification
// buffers to a callback. Client implements Session over AMS/TCP, the framed
// request/response protocol the publisher speaks:
//
//   - a 6-byte TCP header (2 reserved bytes, 4-byte little-endian length)
//   - a 32-byte AMS header (target/source routing address, command ID,
//     state flags, payload length, error code, invoke ID)
//   - command payloads for AddDeviceNotification, DeleteDeviceNotification
//     and the DeviceNotification stream
//
// Responses are matched to requests by invoke ID. Notification frames carry
// one or more stamps, each with one or more samples; every sample addressed
// to a known notification handle is delivered to that handle's callback in
// arrival order.
package transport

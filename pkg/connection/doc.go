// Package connection supervises the lifetime of the single transport
// session.
//
// The Supervisor owns connect and disconnect against the transport, tracks a
// three-state lifecycle (DISCONNECTED, CONNECTING, CONNECTED) and notifies
// registered observers exactly once per real state transition. Transports may
// signal "connected" more than once for the same logical session; the
// supervisor collapses those into a single transition.
//
// # Retry Policy
//
// Connect failures and session losses are retried forever at a fixed
// interval until Close. There is no backoff growth and no attempt ceiling:
// the supervised session is a long-lived link to a single well-known
// publisher, where backing off only delays recovery and a retry cap would
// leave the process permanently dark after a long outage. A pending retry is
// always cancelled before a fresh connect attempt and on teardown.
package connection

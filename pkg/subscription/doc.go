// Package subscription manages the single shared device notification
// subscription on behalf of any number of logical consumers.
//
// The publisher allows one notification subscription per session for its
// event stream, so the Broker owns exactly one transport subscription and
// reference-counts consumer interest: the first attached consumer triggers
// the underlying subscribe, the last detached consumer tears it down, and
// everyone in between joins the existing subscription.
//
// # Single-Flight Subscribe
//
// Concurrent attaches while no subscription exists must not issue more than
// one underlying subscribe request. All callers of ensureSubscribed share
// one in-flight attempt and receive its outcome together.
//
// # Connection Loss
//
// On disconnect the subscription handle is presumed invalid and is cleared
// without an unsubscribe call - the session it belonged to is already gone.
// Consumer registrations survive; when the connection comes back and
// interest is still present, the broker re-subscribes.
//
// # Notification Classification
//
// Raw buffers are classified by total length: 16 bytes or fewer is a
// heartbeat (counted, not fanned out), anything longer is decoded as an
// event entry. A buffer that fails decoding is logged and dropped; one
// malformed notification never interrupts delivery of the ones after it.
package subscription

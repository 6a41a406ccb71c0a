// Package service assembles the full monitor client.
//
// The Client wires the AMS/TCP transport, the connection supervisor, the
// subscription broker, and the optional history store and capture log into
// one component configured from a single config.Config. Consumers subscribe
// for decoded events and connection-state notifications through the Client;
// everything underneath (reconnects, re-subscribes, decode, persistence) is
// the Client's business.
package service

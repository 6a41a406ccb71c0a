// Package config loads and validates the monitor configuration.
//
// Configuration is a YAML file describing the publisher endpoint (TCP
// address, AMS net IDs and ports), connection retry behavior, the
// subscription buffer, and the optional history database and capture log
// paths. Every field has a default; an empty file is a valid configuration
// for a local publisher.
package config

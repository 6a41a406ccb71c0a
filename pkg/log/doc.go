// Package log provides structured protocol capture logging.
//
// This package defines the Logger interface and Event types for recording
// protocol-level activity: raw frames at the transport layer, decoded event
// entries at the wire layer, and connection/subscription state changes at
// the service layer. It is separate from operational logging (slog) -
// capture produces a machine-readable trace for debugging a live publisher
// connection after the fact.
//
// Applications pick an implementation:
//
//	// Development: events on the console via slog
//	cfg.CaptureLogger = log.NewSlogAdapter(slog.Default())
//
//	// Production: append to a binary capture file
//	cfg.CaptureLogger, _ = log.NewFileLogger("/var/log/plcalarm/stream.plog")
//
//	// Both at once
//	cfg.CaptureLogger = log.NewMultiLogger(...)
//
// Capture files are CBOR streams (.plog extension by convention) readable
// with Reader, which supports filtered iteration.
package log

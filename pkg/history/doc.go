// Package history persists decoded events to a local bbolt database.
//
// Events are keyed by their natural identity (event class ID, event ID,
// raise timestamp), so the raised and cleared notifications of one alarm
// occurrence collapse into a single record: the cleared write overwrites the
// raised one under the same key and fills in the cleared timestamp.
//
// The Store plugs into the subscription broker through Consumer, receiving
// every decoded event; Query filters the stored records by time range, event
// class, minimum severity and alarm flag.
package history

package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes capture events to an slog.Logger. Useful during
// development to watch the protocol stream on the console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}

	switch {
	case event.Frame != nil:
		attrs = append(attrs,
			slog.Uint64("command", uint64(event.Frame.Command)),
			slog.Uint64("invoke_id", uint64(event.Frame.InvokeID)),
			slog.Int("frame_size", event.Frame.Size),
		)
	case event.Entry != nil:
		attrs = append(attrs, slog.Int("buffer_size", event.Entry.BufferSize))
		if event.Entry.EventClassID != "" {
			attrs = append(attrs,
				slog.String("event_class", event.Entry.EventClassID),
				slog.Uint64("event_id", uint64(event.Entry.EventID)),
				slog.String("severity", event.Entry.Severity),
			)
		}
		if event.Entry.IsAlarm {
			attrs = append(attrs, slog.String("alarm_state", event.Entry.AlarmState))
		}
		if event.Entry.SourceName != "" {
			attrs = append(attrs, slog.String("source", event.Entry.SourceName))
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("entity", event.StateChange.Entity.String()),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.OldState != "" {
			attrs = append(attrs, slog.String("old_state", event.StateChange.OldState))
		}
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Error != nil:
		attrs = append(attrs, slog.String("error", event.Error.Message))
		if event.Error.Context != "" {
			attrs = append(attrs, slog.String("context", event.Error.Context))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "capture", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)

package events

import "log/slog"

// Event represents a structured state change emitted by the ledger. Attributes
// carry string-encoded payload fields keyed by name.
type Event struct {
	Type       string
	Attributes map[string]string
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
// Emission is fire-and-forget; emitters must not block the calling operation.
type Emitter interface {
	Emit(*Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events. It
// is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(*Event) {}

// LogEmitter writes every event to a structured logger.
type LogEmitter struct {
	log *slog.Logger
}

// NewLogEmitter returns an emitter that logs events at info level. A nil
// logger falls back to the process default.
func NewLogEmitter(log *slog.Logger) *LogEmitter {
	if log == nil {
		log = slog.Default()
	}
	return &LogEmitter{log: log}
}

// Emit implements the Emitter interface.
func (l *LogEmitter) Emit(evt *Event) {
	if l == nil || l.log == nil || evt == nil {
		return
	}
	attrs := make([]any, 0, 2+2*len(evt.Attributes))
	attrs = append(attrs, slog.String("event", evt.Type))
	for key, value := range evt.Attributes {
		attrs = append(attrs, slog.String(key, value))
	}
	l.log.Info("event emitted", attrs...)
}

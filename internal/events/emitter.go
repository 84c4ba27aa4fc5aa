package events

import (
	"context"
	"log/slog"
	"sync"
)

// LogEmitter writes events to the logger. Default when no broker is wired.
type LogEmitter struct {
	logger *slog.Logger
}

func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	return &LogEmitter{logger: logger}
}

func (e *LogEmitter) Emit(ctx context.Context, ev Transfer) {
	e.logger.InfoContext(ctx, "transfer",
		"namespace", ev.Namespace,
		"token_id", ev.TokenID,
		"name", ev.Name,
		"from", ev.From,
		"to", ev.To,
	)
}

// ChannelEmitter enqueues events on a buffered channel for the worker to
// drain. A full buffer drops the event with a warning rather than stalling
// the registry operation.
type ChannelEmitter struct {
	ch     chan Transfer
	logger *slog.Logger
}

func NewChannelEmitter(buffer int, logger *slog.Logger) *ChannelEmitter {
	return &ChannelEmitter{
		ch:     make(chan Transfer, buffer),
		logger: logger,
	}
}

func (e *ChannelEmitter) Emit(ctx context.Context, ev Transfer) {
	select {
	case e.ch <- ev:
	default:
		e.logger.WarnContext(ctx, "event buffer full, dropping transfer event",
			"namespace", ev.Namespace,
			"token_id", ev.TokenID,
		)
	}
}

// Events exposes the drain side for the worker.
func (e *ChannelEmitter) Events() <-chan Transfer { return e.ch }

// MemorySink records published events; used by tests and as a fallback sink.
type MemorySink struct {
	mu     sync.Mutex
	events []Transfer
}

func NewMemorySink() *MemorySink { return &MemorySink{} }

func (s *MemorySink) Publish(ctx context.Context, ev Transfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

// Events returns a copy of everything published so far.
func (s *MemorySink) Events() []Transfer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Transfer, len(s.events))
	copy(out, s.events)
	return out
}

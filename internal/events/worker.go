package events

import (
	"context"
	"log/slog"
)

// Worker drains emitted events to a sink. Delivery is at-least-once from the
// buffer onward; a failed publish is logged and retried once before the event
// is dropped, since indexers can rebuild from registry state. On shutdown the
// worker flushes events already buffered in the inbox before returning.
type Worker struct {
	inbox  <-chan Transfer
	sink   Sink
	logger *slog.Logger
}

func NewWorker(inbox <-chan Transfer, sink Sink, logger *slog.Logger) *Worker {
	return &Worker{inbox: inbox, sink: sink, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain(ctx)
			return ctx.Err()
		case ev := <-w.inbox:
			w.publish(ctx, ev)
		}
	}
}

// drain flushes events already sitting in the inbox. The publish context is
// detached from the canceled run context so the sink still gets a live one.
func (w *Worker) drain(ctx context.Context) {
	flush := context.WithoutCancel(ctx)
	for {
		select {
		case ev := <-w.inbox:
			w.publish(flush, ev)
		default:
			return
		}
	}
}

func (w *Worker) publish(ctx context.Context, ev Transfer) {
	if err := w.sink.Publish(ctx, ev); err != nil {
		w.logger.WarnContext(ctx, "publish failed, retrying once",
			"token_id", ev.TokenID, "error", err)
		if err := w.sink.Publish(ctx, ev); err != nil {
			w.logger.ErrorContext(ctx, "dropping transfer event",
				"token_id", ev.TokenID, "error", err)
		}
	}
}

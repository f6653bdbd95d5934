package journal

import (
	"context"
	"log/slog"

	"github.com/operon-dev/operon/pkg/operation"
)

// recorder adapts the journal to the execution recorder interface. Append
// failures are logged and dropped so persistence trouble never fails a call.
type recorder struct {
	journal *Journal
	logger  *slog.Logger
}

// NewRecorder wraps a journal as an operation recorder.
func NewRecorder(j *Journal, logger *slog.Logger) operation.Recorder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &recorder{journal: j, logger: logger}
}

func (r *recorder) Record(ctx context.Context, ev operation.Event) {
	err := r.journal.Append(ctx, &Entry{
		CallID:    ev.CallID,
		Operation: ev.Operation,
		Step:      ev.Step,
		Type:      ev.Type,
		DryRun:    ev.DryRun,
		Detail:    ev.Detail,
	})
	if err != nil {
		r.logger.Warn("journal append failed",
			"call_id", ev.CallID, "operation", ev.Operation, "event", ev.Type, "error", err)
	}
}

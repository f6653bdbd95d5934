package operation

import "context"

// Event is one observation emitted while a call executes. Events are
// strictly ordered within a call.
type Event struct {
	CallID    string
	Operation string
	Step      string
	Type      string
	DryRun    bool
	Detail    map[string]any
}

// Recorder receives execution events. Implementations must not block the
// call on failure; recording is observational only and never drives
// execution.
type Recorder interface {
	Record(ctx context.Context, ev Event)
}

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, Event) {}

// NopRecorder discards all events. It is the default.
func NopRecorder() Recorder {
	return nopRecorder{}
}

package schema

// Journal event types emitted during a call. One call produces a strictly
// ordered sequence of these, keyed by call ID.
const (
	EventCallStarted      = "call.started"
	EventCallCompleted    = "call.completed"
	EventCallHalted       = "call.halted"
	EventCallFailed       = "call.failed"
	EventStepStarted      = "step.started"
	EventStepCompleted    = "step.completed"
	EventStepFailed       = "step.failed"
	EventStepRecovered    = "step.recovered"
	EventValidationFailed = "validation.failed"
	EventPolicyDenied     = "policy.denied"
)

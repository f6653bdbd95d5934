package operation

// StepFailure is the error signal a step handler raises to abort its step.
// It carries the state at the point of failure and an optional secondary
// payload for the attached error handler.
//
// The signal is scoped: the executor catches it only at the boundary of the
// step that raised it, by consulting that step's attached handler. Raising
// it in a step with no attached handler fails the whole call.
type StepFailure struct {
	State any
	Extra any
}

func (f *StepFailure) Error() string {
	return "step aborted"
}

// Abort builds the step failure signal. Return it from a transform or
// delegate to hand control to the step's attached error handler:
//
//	return nil, operation.Abort(st, err)
func Abort(state, extra any) error {
	return &StepFailure{State: state, Extra: extra}
}

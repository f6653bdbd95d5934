package schema

import "fmt"

// Error codes for structured error reporting.
const (
	ErrCodeValidation     = "VALIDATION_ERROR"
	ErrCodeAuthorization  = "AUTHORIZATION_ERROR"
	ErrCodeConfig         = "CONFIG_ERROR"
	ErrCodeStepFailed     = "STEP_FAILED"
	ErrCodeMiddleware     = "MIDDLEWARE_ERROR"
	ErrCodeState          = "STATE_ERROR"
	ErrCodeExecution      = "EXECUTION_ERROR"
	ErrCodeConflict       = "CONFLICT"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeStore          = "STORE_ERROR"
	ErrCodeRepresentation = "REPRESENTATION_ERROR"
)

// OperonError is the structured error type for all engine operations.
type OperonError struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Operation string         `json:"operation,omitempty"`
	Step      string         `json:"step,omitempty"`
	Cause     error          `json:"-"`
}

func (e *OperonError) Error() string {
	switch {
	case e.Operation != "" && e.Step != "":
		return fmt.Sprintf("[%s] %s/%s: %s", e.Code, e.Operation, e.Step, e.Message)
	case e.Step != "":
		return fmt.Sprintf("[%s] step %s: %s", e.Code, e.Step, e.Message)
	case e.Operation != "":
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Operation, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *OperonError) Unwrap() error {
	return e.Cause
}

// NewError creates a new OperonError.
func NewError(code, message string) *OperonError {
	return &OperonError{Code: code, Message: message}
}

// NewErrorf creates a new OperonError with a formatted message.
func NewErrorf(code, format string, args ...any) *OperonError {
	return &OperonError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithOperation attaches the operation name to the error.
func (e *OperonError) WithOperation(name string) *OperonError {
	e.Operation = name
	return e
}

// WithStep attaches a step name to the error.
func (e *OperonError) WithStep(step string) *OperonError {
	e.Step = step
	return e
}

// WithCause attaches an underlying cause.
func (e *OperonError) WithCause(err error) *OperonError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *OperonError) WithDetails(details map[string]any) *OperonError {
	e.Details = details
	return e
}

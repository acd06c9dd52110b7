package tools

import "fmt"

// Kind classifies a tool failure. Kinds are stable: they end up in action
// outcomes, the event stream, and the transcript the model sees.
type Kind string

const (
	KindNotFound        Kind = "not_found"
	KindAlreadyExists   Kind = "already_exists"
	KindAmbiguousMatch  Kind = "ambiguous_match"
	KindConfirmRequired Kind = "confirm_required"
	KindInvalidPattern  Kind = "invalid_pattern"
	KindInvalidParams   Kind = "invalid_params"
	KindTimeout         Kind = "timeout"
	KindRunnerError     Kind = "runner_error"
	KindNoChannel       Kind = "no_channel"
	KindIO              Kind = "io"
)

// Error is the failure type every executor returns. Like a security
// violation, it is recoverable: the orchestrator records it as a failed
// outcome and lets the model see it on the next iteration.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("tool error (%s): %s", e.Kind, e.Message)
}

// Code returns the stable error-kind code recorded in action outcomes.
func (e *Error) Code() string {
	return "tool." + string(e.Kind)
}

func errf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

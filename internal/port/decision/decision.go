// Package decision defines the port to the external decision service: the
// component that, given the transcript so far, proposes the next actions.
package decision

import (
	"context"
	"errors"

	"github.com/Strob0t/CodeSmith/internal/domain/action"
	"github.com/Strob0t/CodeSmith/internal/domain/conversation"
)

// ErrMalformed marks a response that could not be parsed into conforming
// actions. It is terminal for the task (protocol violation), unlike
// transport errors and timeouts, which the orchestrator absorbs as
// recoverable failures.
var ErrMalformed = errors.New("malformed decision response")

// Request carries everything the decision service sees for one iteration.
type Request struct {
	Messages      []conversation.Message
	WorkspaceRoot string
}

// Proposal is a parsed decision-service response.
type Proposal struct {
	Reasoning string
	Actions   []action.Action
	// Raw preserves the unparsed response body for diagnostics.
	Raw string
}

// Decider proposes the next batch of actions. Implementations must honor the
// context deadline and return parse failures wrapped in ErrMalformed.
type Decider interface {
	Propose(ctx context.Context, req Request) (*Proposal, error)
}

// Package interaction defines the optional channel back to a human. The
// ask_user tool needs one; without an attached implementation it fails
// deterministically instead of blocking.
package interaction

import "context"

// Prompt is one question for the user.
type Prompt struct {
	Question string
	Options  []string
	Default  string
}

// Asker delivers a prompt to a human and returns the answer.
type Asker interface {
	Ask(ctx context.Context, p Prompt) (string, error)
}

package tools

import (
	"context"

	"github.com/Strob0t/CodeSmith/internal/domain/action"
	"github.com/Strob0t/CodeSmith/internal/port/interaction"
)

// askUser relays a question to the attached interactive channel. Without
// one, it fails immediately instead of blocking a headless run forever.
func (e *Executor) askUser(ctx context.Context, p *action.AskUserParams) (Result, error) {
	if e.asker == nil {
		return Result{}, errf(KindNoChannel, "ask_user requires an interactive channel and none is attached")
	}

	answer, err := e.asker.Ask(ctx, interaction.Prompt{
		Question: p.Question,
		Options:  p.Options,
		Default:  p.Default,
	})
	if err != nil {
		return Result{}, errf(KindIO, "ask user: %v", err)
	}

	e.log.InfoContext(ctx, "user answered", "question", p.Question)
	return Result{Output: answer}, nil
}

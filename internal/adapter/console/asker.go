// Package console implements the interaction port on the controlling
// terminal. It only attaches when stdin is actually a terminal; in a
// non-interactive run the ask_user tool should fail fast instead of
// blocking on a read nobody will answer.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/Strob0t/CodeSmith/internal/port/interaction"
)

// Asker prompts on out and reads one line from in.
type Asker struct {
	in  *bufio.Reader
	out io.Writer
}

// New creates a console asker over the given streams.
func New(in io.Reader, out io.Writer) *Asker {
	return &Asker{in: bufio.NewReader(in), out: out}
}

// Stdin returns an asker bound to the process terminal, or nil when stdin
// is not interactive.
func Stdin() *Asker {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil
	}
	return New(os.Stdin, os.Stderr)
}

// Ask renders the prompt and returns the entered line. An empty line picks
// the default answer when one is set. Reading is done on a goroutine so a
// cancelled context does not leave the task hanging on user input.
func (a *Asker) Ask(ctx context.Context, p interaction.Prompt) (string, error) {
	fmt.Fprintf(a.out, "\n%s\n", p.Question)
	if len(p.Options) > 0 {
		fmt.Fprintf(a.out, "options: %s\n", strings.Join(p.Options, ", "))
	}
	if p.Default != "" {
		fmt.Fprintf(a.out, "> [%s] ", p.Default)
	} else {
		fmt.Fprint(a.out, "> ")
	}

	type read struct {
		line string
		err  error
	}
	ch := make(chan read, 1)
	go func() {
		line, err := a.in.ReadString('\n')
		ch <- read{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		if r.err != nil && r.line == "" {
			return "", fmt.Errorf("read answer: %w", r.err)
		}
		answer := strings.TrimSpace(r.line)
		if answer == "" {
			answer = p.Default
		}
		return answer, nil
	}
}

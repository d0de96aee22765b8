package unlock

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/term"
)

// TerminalPrompter reads a passphrase from the controlling terminal with
// echo disabled. An empty line counts as a cancel.
type TerminalPrompter struct{}

// NewTerminalPrompter creates a prompter bound to stdin. It fails when stdin
// is not a terminal so headless deployments fall back to a static prompter
// instead of blocking on a read that can never complete.
func NewTerminalPrompter() (*TerminalPrompter, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, fmt.Errorf("stdin is not a terminal")
	}
	return &TerminalPrompter{}, nil
}

func (p *TerminalPrompter) Prompt(ctx context.Context, reason string) (string, bool, error) {
	fmt.Fprintln(os.Stderr, reason)
	fmt.Fprint(os.Stderr, "Passphrase: ")

	type readResult struct {
		secret []byte
		err    error
	}
	ch := make(chan readResult, 1)
	go func() {
		secret, err := term.ReadPassword(int(os.Stdin.Fd()))
		ch <- readResult{secret: secret, err: err}
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr)
		return "", false, ctx.Err()
	case res := <-ch:
		fmt.Fprintln(os.Stderr)
		if res.err != nil {
			return "", false, res.err
		}
		if len(res.secret) == 0 {
			return "", false, nil
		}
		return string(res.secret), true, nil
	}
}

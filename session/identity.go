package session

import (
	"chat-relay/errors"
	"context"
	"fmt"
)

// NamePrompter is the part of the terminal the identity resolver needs.
type NamePrompter interface {
	AskName() error
}

// resolveIdentity asks for a name until a non-empty line comes from the
// input worker. The line is kept as typed, surrounding spaces included.
// No default name exists: a closed input fails with ErrIdentity wrapping
// io.EOF. A canceled ctx stops the prompt with ctx.Err().
func resolveIdentity(ctx context.Context, prompter NamePrompter, lines <-chan inputEvent) (string, error) {
	for {
		if err := prompter.AskName(); err != nil {
			return "", fmt.Errorf("write name prompt: %w", err)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case evt := <-lines:
			if evt.err != nil {
				return "", errors.Wrap(errors.ErrIdentity, evt.err)
			}
			if evt.line == "" {
				continue
			}
			return evt.line, nil
		}
	}
}

// Package session runs one chat session from join to exit.
//
// The loop waits on two sources, the local input and the inbound
// subscription, and handles exactly one event per iteration before
// redrawing the prompt. When both are ready, Go's select picks one at
// random. Everything that touches the terminal or the publisher happens on
// the loop goroutine.
package session

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
)

// State of the session loop.
type State int

const (
	Joining State = iota
	Prompting
	AwaitingEvent
	Terminated
)

func (s State) String() string {
	switch s {
	case Joining:
		return "joining"
	case Prompting:
		return "prompting"
	case AwaitingEvent:
		return "awaiting_event"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal is everything the session needs from the console.
type Terminal interface {
	contract.LineReader
	NamePrompter
	Prompt() error
	Render(msg domain.ChatMessage) error
}

// Censor rewrites an outbound line before it is published.
type Censor interface {
	Censor(line string) string
}

// Stats counts what happened during a session.
type Stats struct {
	Sent       int
	Received   int
	Suppressed int
}

type Session struct {
	log        *slog.Logger
	terminal   Terminal
	publisher  contract.Publisher
	subscriber contract.Subscriber
	censor     Censor
	identity   string
	state      State
	stats      Stats
}

// NewSession wires a session. censor may be nil.
// The publisher and subscriber stay owned by the caller, who closes them.
func NewSession(log *slog.Logger, terminal Terminal, publisher contract.Publisher,
	subscriber contract.Subscriber, censor Censor) *Session {
	return &Session{
		log:        log,
		terminal:   terminal,
		publisher:  publisher,
		subscriber: subscriber,
		censor:     censor,
		state:      Joining,
	}
}

func (s *Session) Identity() string { return s.identity }
func (s *Session) State() State     { return s.state }
func (s *Session) Stats() Stats     { return s.stats }

// Run joins the chat and loops until the input is closed, ctx is canceled
// or an unrecoverable error happens. A nil error means a clean exit.
func (s *Session) Run(ctx context.Context) error {
	err := s.run(ctx)
	// Interrupted while a publish was in flight: still a clean exit.
	if stderrors.Is(err, context.Canceled) {
		err = nil
	}
	s.state = Terminated
	s.log.Info("Session terminated",
		"identity", s.identity,
		"sent", s.stats.Sent,
		"received", s.stats.Received,
		"suppressed", s.stats.Suppressed,
		"error", err)
	return err
}

func (s *Session) run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Input is read by the worker from the start so that the name prompt
	// also gives way to ctx.
	lines := make(chan inputEvent)
	start(ctx, s.log, NewInputWorker(s.terminal, lines))
	if err = s.join(ctx, lines); err != nil {
		return err
	}

	inbound := make(chan inboundEvent)
	start(ctx, s.log, NewInboundWorker(s.subscriber, inbound))

	for {
		s.state = Prompting
		if err = s.terminal.Prompt(); err != nil {
			return fmt.Errorf("write prompt: %w", err)
		}

		s.state = AwaitingEvent
		redraw := false
		for !redraw {
			select {
			case <-ctx.Done():
				s.log.Debug("Context done, leaving the chat")
				return nil
			case evt := <-inbound:
				if redraw, err = s.handleInbound(evt); err != nil {
					return err
				}
			case evt := <-lines:
				var done bool
				if done, err = s.handleInput(ctx, evt); err != nil || done {
					return err
				}
				redraw = true
			}
		}
	}
}

func (s *Session) join(ctx context.Context, lines <-chan inputEvent) error {
	identity, err := resolveIdentity(ctx, s.terminal, lines)
	if err != nil {
		return err
	}
	s.identity = identity
	s.log.Debug("Identity resolved", "identity", identity)

	if err := s.publish(ctx, []byte(domain.JoinAnnouncement)); err != nil {
		return err
	}
	return nil
}

// handleInbound reports whether the prompt has to be redrawn.
// A message of our own is dropped without redraw: the prompt was already
// written after it was published.
func (s *Session) handleInbound(evt inboundEvent) (bool, error) {
	if evt.err != nil {
		return false, errors.Wrap(errors.ErrRecv, evt.err)
	}
	msg, err := domain.FromRecord(evt.record)
	if err != nil {
		return false, err
	}
	if msg.IsFrom(s.identity) {
		s.stats.Suppressed++
		return false, nil
	}
	s.stats.Received++
	if err := s.terminal.Render(msg); err != nil {
		return false, fmt.Errorf("render message: %w", err)
	}
	return true, nil
}

// handleInput reports whether the session is over.
func (s *Session) handleInput(ctx context.Context, evt inputEvent) (bool, error) {
	if evt.err != nil {
		if stderrors.Is(evt.err, io.EOF) {
			s.log.Debug("End of input")
			return true, nil
		}
		return true, fmt.Errorf("read input: %w", evt.err)
	}
	line := evt.line
	if s.censor != nil {
		line = s.censor.Censor(line)
	}
	if err := s.publish(ctx, []byte(line)); err != nil {
		return true, err
	}
	s.stats.Sent++
	return false, nil
}

func (s *Session) publish(ctx context.Context, body []byte) error {
	msg, err := domain.NewChatMessage(s.identity, body)
	if err != nil {
		return errors.Wrap(errors.ErrPublish, err)
	}
	if err := s.publisher.Publish(ctx, msg.Sender, msg.Body); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Wrap(errors.ErrPublish, err)
	}
	return nil
}

package session

import (
	"bytes"
	"chat-relay/broker/memory"
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/mocks"
	"chat-relay/moderation"
	"chat-relay/terminal"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const (
	joined    = "has joined the chat"
	askName   = "Please enter your name: "
	waitFor   = time.Second
	pollEvery = 5 * time.Millisecond
)

// syncBuffer is written by the session loop and read by the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type participant struct {
	session *Session
	input   *io.PipeWriter
	output  *syncBuffer
	done    chan error
}

func newParticipant(t *testing.T, publisher contract.Publisher, subscriber contract.Subscriber, censor Censor) *participant {
	t.Helper()
	reader, writer := io.Pipe()
	t.Cleanup(func() { _ = writer.Close() })
	output := &syncBuffer{}
	console := terminal.NewConsole(terminal.NewLineReader(reader), output, false)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	return &participant{
		session: NewSession(log, console, publisher, subscriber, censor),
		input:   writer,
		output:  output,
		done:    make(chan error, 1),
	}
}

func (p *participant) start(ctx context.Context) {
	go func() { p.done <- p.session.Run(ctx) }()
}

func (p *participant) say(t *testing.T, line string) {
	t.Helper()
	_, err := fmt.Fprintln(p.input, line)
	require.NoError(t, err)
}

func (p *participant) waitOutput(t *testing.T, want string) {
	t.Helper()
	require.Eventually(t, func() bool { return strings.Contains(p.output.String(), want) },
		waitFor, pollEvery, "output never contained %q, got %q", want, p.output.String())
}

func (p *participant) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-p.done:
		return err
	case <-time.After(waitFor):
		require.FailNow(t, "session did not terminate")
		return nil
	}
}

// blockingRecv parks the inbound worker until the session ends.
func blockingRecv(ctx context.Context) (contract.Record, error) {
	<-ctx.Done()
	return contract.Record{}, ctx.Err()
}

func TestSession_TwoParticipants(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	hub := memory.NewHub()

	// Given alice and bob subscribed with their own group
	newMember := func() *participant {
		publisher, err := hub.NewPublisher(ctx, "chat")
		req.NoError(err)
		subscriber, err := hub.Subscribe(ctx, "chat", domain.NewGroupID().String())
		req.NoError(err)
		return newParticipant(t, publisher, subscriber, nil)
	}
	alice, bob := newMember(), newMember()
	alice.start(ctx)
	bob.start(ctx)

	// And both joined the chat
	alice.say(t, "alice")
	bob.say(t, "bob")
	alice.waitOutput(t, "\tbob: "+joined+"\n> ")
	bob.waitOutput(t, "\talice: "+joined+"\n> ")

	// When alice says hello
	alice.say(t, "hello")

	// Then bob sees it followed by a fresh prompt
	bob.waitOutput(t, "\talice: hello\n> ")

	// And alice never sees her own lines once both leave
	req.NoError(alice.input.Close())
	req.NoError(bob.input.Close())
	req.NoError(alice.wait(t))
	req.NoError(bob.wait(t))
	req.NotContains(alice.output.String(), "\talice: ")
	req.NotContains(bob.output.String(), "\tbob: ")
	req.Equal(2, bob.session.Stats().Received)
	req.Equal(1, alice.session.Stats().Received)
	req.Equal("alice", alice.session.Identity())
	req.Equal(Terminated, alice.session.State())
}

func TestSession_SelfEchoIsDroppedWithoutRedraw(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	publisher := mocks.NewMockPublisher(ctrl)
	subscriber := mocks.NewMockSubscriber(ctrl)
	drained := make(chan struct{})

	publisher.EXPECT().Publish(gomock.Any(), "alice", []byte(joined)).Return(nil).Times(1)
	// Given our own messages come back, including an empty one
	gomock.InOrder(
		subscriber.EXPECT().Recv(gomock.Any()).Return(contract.Record{Key: []byte("alice"), Value: []byte(joined)}, nil),
		subscriber.EXPECT().Recv(gomock.Any()).Return(contract.Record{Key: []byte("alice"), Value: []byte{}}, nil),
		subscriber.EXPECT().Recv(gomock.Any()).DoAndReturn(func(ctx context.Context) (contract.Record, error) {
			close(drained)
			return blockingRecv(ctx)
		}),
	)

	p := newParticipant(t, publisher, subscriber, nil)
	p.start(context.Background())
	p.say(t, "alice")

	// When both echoes were handed to the loop and the input closes
	select {
	case <-drained:
	case <-time.After(waitFor):
		req.FailNow("echoes were not consumed")
	}
	req.NoError(p.input.Close())

	// Then nothing was rendered and the prompt was written only once
	req.NoError(p.wait(t))
	req.Equal(askName+"> ", p.output.String())
	req.Equal(Stats{Suppressed: 2}, p.session.Stats())
}

func TestSession_RendersOthersAndRedraws(t *testing.T) {
	ctrl := gomock.NewController(t)
	publisher := mocks.NewMockPublisher(ctrl)
	subscriber := mocks.NewMockSubscriber(ctrl)

	publisher.EXPECT().Publish(gomock.Any(), "alice", gomock.Any()).Return(nil).Times(1)
	gomock.InOrder(
		subscriber.EXPECT().Recv(gomock.Any()).Return(contract.Record{Key: []byte("bob"), Value: []byte("hi")}, nil),
		subscriber.EXPECT().Recv(gomock.Any()).Return(contract.Record{Key: []byte("carol"), Value: []byte{}}, nil),
		subscriber.EXPECT().Recv(gomock.Any()).DoAndReturn(blockingRecv).AnyTimes(),
	)

	p := newParticipant(t, publisher, subscriber, nil)
	p.start(context.Background())
	p.say(t, "alice")

	p.waitOutput(t, "\tcarol: \n> ")
	require.NoError(t, p.input.Close())
	require.NoError(t, p.wait(t))
	require.Equal(t, askName+"> \tbob: hi\n> \tcarol: \n> ", p.output.String())
}

func TestSession_PublishesLinesAsIdentity(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	publisher := mocks.NewMockPublisher(ctrl)
	subscriber := mocks.NewMockSubscriber(ctrl)

	gomock.InOrder(
		publisher.EXPECT().Publish(gomock.Any(), "alice", []byte(joined)).Return(nil),
		publisher.EXPECT().Publish(gomock.Any(), "alice", []byte("hello")).Return(nil),
		publisher.EXPECT().Publish(gomock.Any(), "alice", []byte{}).Return(nil),
	)
	subscriber.EXPECT().Recv(gomock.Any()).DoAndReturn(blockingRecv).AnyTimes()

	p := newParticipant(t, publisher, subscriber, nil)
	p.start(context.Background())
	p.say(t, "alice")
	p.say(t, "hello")
	p.say(t, "")
	req.NoError(p.input.Close())

	// End of input is a clean exit
	req.NoError(p.wait(t))
	req.Equal(askName+"> > > ", p.output.String())
	req.Equal(2, p.session.Stats().Sent)
}

func TestSession_PublishFailureTerminates(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	publisher := mocks.NewMockPublisher(ctrl)
	subscriber := mocks.NewMockSubscriber(ctrl)
	unreachable := fmt.Errorf("broker unreachable")

	// Given the broker goes away after the join
	gomock.InOrder(
		publisher.EXPECT().Publish(gomock.Any(), "alice", []byte(joined)).Return(nil),
		publisher.EXPECT().Publish(gomock.Any(), "alice", []byte("hello")).Return(unreachable).Times(1),
	)
	subscriber.EXPECT().Recv(gomock.Any()).DoAndReturn(blockingRecv).AnyTimes()

	p := newParticipant(t, publisher, subscriber, nil)
	p.start(context.Background())
	p.say(t, "alice")
	p.say(t, "hello")
	// Lines typed after the failure are never published
	go func() { _, _ = fmt.Fprintln(p.input, "again") }()

	// Then the error surfaces without any retry
	err := p.wait(t)
	req.ErrorIs(err, errors.ErrPublish)
	req.ErrorIs(err, unreachable)
	req.Equal(Terminated, p.session.State())
	req.Equal(askName+"> ", p.output.String())
}

func TestSession_JoinFailureTerminates(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	publisher := mocks.NewMockPublisher(ctrl)
	subscriber := mocks.NewMockSubscriber(ctrl)

	publisher.EXPECT().Publish(gomock.Any(), "alice", []byte(joined)).Return(errors.ErrClosed)

	p := newParticipant(t, publisher, subscriber, nil)
	p.start(context.Background())
	p.say(t, "alice")

	err := p.wait(t)
	req.ErrorIs(err, errors.ErrPublish)
	req.Equal(askName, p.output.String())
}

func TestSession_ClosedInputBeforeName(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	publisher := mocks.NewMockPublisher(ctrl)
	subscriber := mocks.NewMockSubscriber(ctrl)

	p := newParticipant(t, publisher, subscriber, nil)
	p.start(context.Background())
	p.say(t, "")
	req.NoError(p.input.Close())

	req.ErrorIs(p.wait(t), errors.ErrIdentity)
	req.Equal(askName+askName, p.output.String())
}

func TestSession_InboundFailuresAreFatal(t *testing.T) {
	tests := []struct {
		name   string
		record contract.Record
		err    error
		want   error
	}{
		{name: "Broker read failure", err: fmt.Errorf("connection reset"), want: errors.ErrRecv},
		{name: "Missing key", record: contract.Record{Value: []byte("hi")}, want: errors.ErrMalformedMessage},
		{name: "Missing value", record: contract.Record{Key: []byte("bob")}, want: errors.ErrMalformedMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			ctrl := gomock.NewController(t)
			publisher := mocks.NewMockPublisher(ctrl)
			subscriber := mocks.NewMockSubscriber(ctrl)

			publisher.EXPECT().Publish(gomock.Any(), "alice", []byte(joined)).Return(nil)
			gomock.InOrder(
				subscriber.EXPECT().Recv(gomock.Any()).Return(tt.record, tt.err),
				subscriber.EXPECT().Recv(gomock.Any()).DoAndReturn(blockingRecv).AnyTimes(),
			)

			p := newParticipant(t, publisher, subscriber, nil)
			p.start(context.Background())
			p.say(t, "alice")

			req.ErrorIs(p.wait(t), tt.want)
			req.Equal(askName+"> ", p.output.String())
		})
	}
}

func TestSession_ContextCancelIsCleanExit(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	publisher := mocks.NewMockPublisher(ctrl)
	subscriber := mocks.NewMockSubscriber(ctrl)

	publisher.EXPECT().Publish(gomock.Any(), "alice", []byte(joined)).Return(nil)
	subscriber.EXPECT().Recv(gomock.Any()).DoAndReturn(blockingRecv).AnyTimes()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := newParticipant(t, publisher, subscriber, nil)
	p.start(ctx)
	p.say(t, "alice")
	p.waitOutput(t, "> ")

	cancel()

	req.NoError(p.wait(t))
}

func TestSession_CancelAtNamePromptIsCleanExit(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	publisher := mocks.NewMockPublisher(ctrl)
	subscriber := mocks.NewMockSubscriber(ctrl)

	// Given a session waiting for a name that never comes
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := newParticipant(t, publisher, subscriber, nil)
	p.start(ctx)
	p.waitOutput(t, askName)

	// When the process is interrupted
	cancel()

	// Then the session ends cleanly without joining
	req.NoError(p.wait(t))
	req.Equal(Terminated, p.session.State())
	req.Empty(p.session.Identity())
	req.Equal(askName, p.output.String())
}

func TestSession_CensorsOutboundLines(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	publisher := mocks.NewMockPublisher(ctrl)
	subscriber := mocks.NewMockSubscriber(ctrl)
	censor, err := moderation.NewCensor([]string{"badger"}, '*')
	req.NoError(err)

	gomock.InOrder(
		publisher.EXPECT().Publish(gomock.Any(), "alice", []byte(joined)).Return(nil),
		publisher.EXPECT().Publish(gomock.Any(), "alice", []byte("the ****** is here")).Return(nil),
	)
	subscriber.EXPECT().Recv(gomock.Any()).DoAndReturn(blockingRecv).AnyTimes()

	p := newParticipant(t, publisher, subscriber, censor)
	p.start(context.Background())
	p.say(t, "alice")
	p.say(t, "the badger is here")
	req.NoError(p.input.Close())

	req.NoError(p.wait(t))
}

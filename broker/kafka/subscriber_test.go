package kafka

import (
	"chat-relay/errors"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// fakeFetcher replays one Fetches value per poll.
type fakeFetcher struct {
	polls  []kgo.Fetches
	calls  int
	closed bool
}

func (f *fakeFetcher) PollFetches(_ context.Context) kgo.Fetches {
	if f.calls >= len(f.polls) {
		return kgo.Fetches{{Topics: []kgo.FetchTopic{{
			Topic:      "chat",
			Partitions: []kgo.FetchPartition{{Err: kgo.ErrClientClosed}},
		}}}}
	}
	fetches := f.polls[f.calls]
	f.calls++
	return fetches
}

func (f *fakeFetcher) Close() { f.closed = true }

func fetchOf(partition kgo.FetchPartition) kgo.Fetches {
	return kgo.Fetches{{Topics: []kgo.FetchTopic{{Topic: "chat", Partitions: []kgo.FetchPartition{partition}}}}}
}

func newTestSubscriber(polls ...kgo.Fetches) (*Subscriber, *fakeFetcher) {
	fetcher := &fakeFetcher{polls: polls}
	return &Subscriber{client: fetcher, log: logs.GetLoggerFromLevel(slog.LevelDebug)}, fetcher
}

func TestSubscriber_Recv_BuffersOnePoll(t *testing.T) {
	req := require.New(t)
	sub, fetcher := newTestSubscriber(fetchOf(kgo.FetchPartition{Records: []*kgo.Record{
		{Key: []byte("alice"), Value: []byte("hello")},
		{Key: []byte("bob"), Value: []byte("hi")},
	}}))

	first, err := sub.Recv(context.Background())
	req.NoError(err)
	second, err := sub.Recv(context.Background())
	req.NoError(err)

	req.Equal("alice", string(first.Key))
	req.Equal("hello", string(first.Value))
	req.Equal("bob", string(second.Key))
	req.Equal(1, fetcher.calls)
}

func TestSubscriber_Recv_SkipsRetriableErrors(t *testing.T) {
	req := require.New(t)
	sub, _ := newTestSubscriber(
		fetchOf(kgo.FetchPartition{Err: kerr.UnknownTopicOrPartition}),
		fetchOf(kgo.FetchPartition{Records: []*kgo.Record{{Key: []byte("alice"), Value: []byte("hello")}}}),
	)

	record, err := sub.Recv(context.Background())

	req.NoError(err)
	req.Equal("hello", string(record.Value))
}

func TestSubscriber_Recv_ReturnsFatalErrors(t *testing.T) {
	req := require.New(t)
	sub, _ := newTestSubscriber(fetchOf(kgo.FetchPartition{Err: kerr.TopicAuthorizationFailed}))

	_, err := sub.Recv(context.Background())

	req.ErrorIs(err, kerr.TopicAuthorizationFailed)
}

func TestSubscriber_Recv_ClientClosed(t *testing.T) {
	req := require.New(t)
	sub, _ := newTestSubscriber()

	_, err := sub.Recv(context.Background())

	req.ErrorIs(err, errors.ErrClosed)
}

func TestSubscriber_Recv_KeepsMissingKey(t *testing.T) {
	req := require.New(t)
	sub, _ := newTestSubscriber(fetchOf(kgo.FetchPartition{Records: []*kgo.Record{{Value: []byte("hello")}}}))

	record, err := sub.Recv(context.Background())

	req.NoError(err)
	req.Nil(record.Key)
}

func TestSubscriber_Close(t *testing.T) {
	req := require.New(t)
	sub, fetcher := newTestSubscriber()

	req.NoError(sub.Close())

	req.True(fetcher.closed)
}

func TestLogger_Level(t *testing.T) {
	req := require.New(t)
	at := func(level slog.Level) *slog.Logger {
		return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: level}))
	}

	req.Equal(kgo.LogLevelDebug, newLogger(at(slog.LevelDebug)).Level())
	req.Equal(kgo.LogLevelInfo, newLogger(at(slog.LevelInfo)).Level())
	req.Equal(kgo.LogLevelWarn, newLogger(at(slog.LevelWarn)).Level())
	req.Equal(kgo.LogLevelError, newLogger(at(slog.LevelError)).Level())
	req.Equal(kgo.LogLevelNone, newLogger(at(slog.LevelError+4)).Level())
}

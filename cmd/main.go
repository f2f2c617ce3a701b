package main

import (
	"chat-relay/broker/kafka"
	"chat-relay/broker/redis"
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/internal"
	"chat-relay/moderation"
	"chat-relay/session"
	"chat-relay/terminal"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
)

// Exit codes for the chat client.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// brokerFactory builds the broker named by the configuration.
type brokerFactory func(log *slog.Logger, config internal.Config, address string) (contract.Broker, error)

func main() {
	_ = godotenv.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code, err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, newBroker)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Chat error: %v\n", err)
	}
	os.Exit(code)
}

// run wires the broker, the terminal and the session, then blocks until the
// session ends or ctx is canceled. Returning instead of exiting lets every
// defer run.
func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer, brokers brokerFactory) (int, error) {
	// 1. Configuration & logger. The first argument, if any, is the broker address.
	flags := flag.NewFlagSet("chat", flag.ContinueOnError)
	flags.SetOutput(io.Discard)
	if err := flags.Parse(args); err != nil {
		return exitConfig, errors.Wrap(errors.ErrInvalidConfig, err)
	}
	config, err := internal.LoadConfig()
	if err != nil {
		return exitConfig, err
	}
	log, logCloser, err := internal.NewLogger(config)
	if err != nil {
		return exitConfig, err
	}
	defer func() { _ = logCloser.Close() }()

	// 2. Broker
	address := config.Address(flags.Arg(0))
	broker, err := brokers(log, config, address)
	if err != nil {
		return exitConfig, err
	}

	console := terminal.NewConsole(terminal.NewLineReader(stdin), stdout, config.Colours)
	if err := console.Welcome(broker.Name()); err != nil {
		return exitRuntime, err
	}

	// 3. Publisher and a subscription with a group of our own
	connectCtx, cancel := context.WithTimeout(ctx, config.ConnectTimeout)
	defer cancel()
	publisher, err := broker.NewPublisher(connectCtx, config.Topic)
	if err != nil {
		return exitRuntime, err
	}
	defer func() { _ = publisher.Close() }()

	group := domain.NewGroupID()
	subscriber, err := broker.Subscribe(connectCtx, config.Topic, group.String())
	if err != nil {
		return exitRuntime, err
	}
	defer func() { _ = subscriber.Close() }()
	log.Info("Connected", "broker", broker.Name(), "address", address, "topic", config.Topic, "group", group)

	// 4. Session
	var censor session.Censor
	if words := config.Words(); len(words) > 0 {
		replacement, _ := internal.CharacterRune(config.CharReplacement)
		c, err := moderation.NewCensor(words, replacement)
		if err != nil {
			return exitConfig, errors.Wrap(errors.ErrInvalidConfig, err)
		}
		censor = c
	}

	if err := session.NewSession(log, console, publisher, subscriber, censor).Run(ctx); err != nil {
		return exitRuntime, err
	}
	return exitOK, nil
}

func newBroker(log *slog.Logger, config internal.Config, address string) (contract.Broker, error) {
	switch config.Broker {
	case internal.BrokerKafka:
		return kafka.NewBroker(log, config.DeliveryTimeout, strings.Split(address, ",")...), nil
	case internal.BrokerRedis:
		return redis.NewBroker(log, address), nil
	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownBroker, config.Broker)
	}
}

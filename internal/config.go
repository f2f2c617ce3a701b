package internal

import (
	"chat-relay/errors"
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

const (
	BrokerKafka = "kafka"
	BrokerRedis = "redis"
)

var defaultAddresses = map[string]string{
	BrokerKafka: "localhost:9092",
	BrokerRedis: "localhost:6379",
}

var validate = validator.New()

type Config struct {
	Broker          string        `env:"CHAT_BROKER,default=kafka" validate:"oneof=kafka redis"`
	BrokerAddress   string        `env:"CHAT_BROKER_ADDR"`
	Topic           string        `env:"CHAT_TOPIC,default=chat" validate:"required"`
	DeliveryTimeout time.Duration `env:"CHAT_DELIVERY_TIMEOUT,default=5m" validate:"gte=0"`
	ConnectTimeout  time.Duration `env:"CHAT_CONNECT_TIMEOUT,default=10s" validate:"gt=0"`
	CensoredWords   string        `env:"CHAT_CENSORED_WORDS"`
	CharReplacement string        `env:"CHAT_CHARACTER_REPLACEMENT,default=*"`
	Colours         bool          `env:"CHAT_COLOURS,default=false"`
	LogLevel        string        `env:"LOG_LEVEL,default=ERROR" validate:"oneof=DEBUG INFO WARN ERROR debug info warn error"`
	LogFile         string        `env:"CHAT_LOG_FILE"`
}

func LoadConfig() (Config, error) {
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return Config{}, errors.Wrap(errors.ErrInvalidConfig, err)
	}
	if err := validate.Struct(config); err != nil {
		return Config{}, errors.Wrap(errors.ErrInvalidConfig, err)
	}
	if _, err := CharacterRune(config.CharReplacement); err != nil {
		return Config{}, errors.Wrap(errors.ErrInvalidConfig, err)
	}
	return config, nil
}

// Address picks the broker address: the command line argument first, then
// CHAT_BROKER_ADDR, then the default port of the broker kind.
func (c Config) Address(arg string) string {
	return lo.CoalesceOrEmpty(arg, c.BrokerAddress, defaultAddresses[c.Broker])
}

// Words splits CHAT_CENSORED_WORDS on commas, dropping blanks.
func (c Config) Words() []string {
	return lo.Compact(lo.Map(strings.Split(c.CensoredWords, ","), func(word string, _ int) string {
		return strings.TrimSpace(word)
	}))
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHAT_CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}

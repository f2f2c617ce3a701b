// Package domain contains core concepts of the chat system.
// This file defines ChatMessage and how it maps to broker records.
package domain

import (
	"bytes"
	"chat-relay/contract"
	"chat-relay/errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// JoinAnnouncement is the body published once a participant picked a name.
const JoinAnnouncement = "has joined the chat"

// ChatMessage is one line of the conversation.
// Sender is the record key, Body the record value.
type ChatMessage struct {
	Sender string `validate:"required"`
	Body   []byte
}

func NewChatMessage(sender string, body []byte) (ChatMessage, error) {
	msg := ChatMessage{Sender: sender, Body: body}
	if err := validate.Struct(msg); err != nil {
		return ChatMessage{}, errors.Wrap(errors.ErrEmptySender, err)
	}
	return msg, nil
}

// FromRecord rejects records without a sender key or without a value.
// An empty value is a valid (empty) line.
func FromRecord(record contract.Record) (ChatMessage, error) {
	if len(record.Key) == 0 {
		return ChatMessage{}, fmt.Errorf("%w: no key for message", errors.ErrMalformedMessage)
	}
	if record.Value == nil {
		return ChatMessage{}, fmt.Errorf("%w: no payload for message from %q",
			errors.ErrMalformedMessage, record.Key)
	}
	return ChatMessage{Sender: string(record.Key), Body: record.Value}, nil
}

// IsFrom compares the sender byte for byte.
func (m ChatMessage) IsFrom(identity string) bool {
	return bytes.Equal([]byte(m.Sender), []byte(identity))
}

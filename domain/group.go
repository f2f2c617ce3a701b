package domain

import "github.com/google/uuid"

const groupPrefix = "chat-"

// GroupID identifies a delivery group on the broker.
// Each session gets its own so it sees the whole stream instead of a
// load-balanced share of it.
type GroupID string

func NewGroupID() GroupID {
	return GroupID(groupPrefix + uuid.NewString())
}

func (g GroupID) String() string { return string(g) }

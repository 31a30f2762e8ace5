package models

import (
	"strings"
	"time"
)

const (
	EventVoteCast       = "voting.vote_cast"
	EventVotingClosed   = "voting.closed"
	EventGroupCreated   = "groups.created"
	EventMemberJoined   = "groups.member_joined"
	EventGroupClosed    = "groups.closed"
	EventGroupDeleted   = "groups.deleted"
	EventCartUpdated    = "carts.updated"
	EventPaymentUpdated = "payments.updated"
	EventOrderPlaced    = "orders.placed"
	EventOrderCancelled = "orders.cancelled"
)

// DomainEvent is published to Kafka and streamed to SSE subscribers of GroupID.
type DomainEvent struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	GroupID    string            `json:"group_id,omitempty"`
	UserID     string            `json:"user_id,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Stream is the prefix of Type, e.g. "groups" for "groups.closed".
func (e DomainEvent) Stream() string {
	if i := strings.IndexByte(e.Type, '.'); i > 0 {
		return e.Type[:i]
	}
	return e.Type
}

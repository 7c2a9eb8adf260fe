package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UserEventType names a user lifecycle event.
type UserEventType string

const (
	// UserEventRegistered is emitted after a user is created.
	UserEventRegistered UserEventType = "user.registered"
	// UserEventDeleted is emitted after a user is removed.
	UserEventDeleted UserEventType = "user.deleted"
)

// UserEvent describes a change to the user set.
type UserEvent struct {
	Type       UserEventType `json:"type"`
	UserID     uuid.UUID     `json:"user_id"`
	Username   string        `json:"username"`
	Email      string        `json:"email"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// EventPublisher delivers user events to subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, event UserEvent) error
}

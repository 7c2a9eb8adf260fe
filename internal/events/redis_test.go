package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/identity-server/internal/model"
)

// fakeRedis records Publish calls. Every other Cmdable method panics.
type fakeRedis struct {
	redis.Cmdable

	channel string
	payload []byte
	err     error
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.channel = channel
	f.payload, _ = message.([]byte)
	return redis.NewIntResult(1, f.err)
}

func TestRedisPublisher_Publish(t *testing.T) {
	t.Parallel()

	fake := &fakeRedis{}
	p := NewRedisPublisher(fake, "identity.users")

	event := model.UserEvent{
		Type:       model.UserEventRegistered,
		UserID:     uuid.New(),
		Username:   "alice",
		Email:      "alice@example.com",
		OccurredAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	require.NoError(t, p.Publish(context.Background(), event))
	assert.Equal(t, "identity.users", fake.channel)

	var got map[string]any
	require.NoError(t, json.Unmarshal(fake.payload, &got))
	assert.Equal(t, "user.registered", got["type"])
	assert.Equal(t, event.UserID.String(), got["user_id"])
	assert.Equal(t, "alice", got["username"])
	assert.Equal(t, "alice@example.com", got["email"])
	assert.Equal(t, "2024-01-01T00:00:00Z", got["occurred_at"])
	assert.NotContains(t, got, "password_hash")
}

func TestRedisPublisher_PublishError(t *testing.T) {
	t.Parallel()

	fake := &fakeRedis{err: assert.AnError}
	p := NewRedisPublisher(fake, "identity.users")

	err := p.Publish(context.Background(), model.UserEvent{Type: model.UserEventDeleted})
	require.ErrorIs(t, err, assert.AnError)
}

func TestNopPublisher(t *testing.T) {
	t.Parallel()

	assert.NoError(t, NopPublisher{}.Publish(context.Background(), model.UserEvent{}))
}

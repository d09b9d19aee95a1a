package core

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unpublished(t *testing.T, env *testEnv) []*OutboxEvent {
	t.Helper()
	events, err := env.store.ListUnpublishedEvents(env.ctx, 0)
	require.NoError(t, err)
	return events
}

func TestDispatchFailureStaysInOutbox(t *testing.T) {
	env := newTestEnv(t)
	env.publisher.err = errors.New("bus down")

	_, host := env.createUser(t, RoleHost, "Host")
	_, err := env.services.Moderation.SubmitProperty(env.ctx, host, SubmitPropertyInput{Title: "Flat", MonthlyRent: dec("100000")})
	require.NoError(t, err)

	pending := unpublished(t, env)
	require.Len(t, pending, 1)
	assert.Equal(t, TopicPropertySubmitted, pending[0].Topic)
	assert.Equal(t, 1, pending[0].Attempts)
	assert.Equal(t, "bus down", pending[0].LastError)

	stats, err := env.services.Events.Republish(env.ctx, 10, true)
	require.NoError(t, err)
	assert.Equal(t, RepublishStats{Found: 1}, stats)
	assert.Empty(t, env.publisher.topics())

	stats, err = env.services.Events.Republish(env.ctx, 10, false)
	require.NoError(t, err)
	assert.Equal(t, RepublishStats{Found: 1, Failed: 1}, stats)

	env.publisher.err = nil
	stats, err = env.services.Events.Republish(env.ctx, 10, false)
	require.NoError(t, err)
	assert.Equal(t, RepublishStats{Found: 1, Published: 1}, stats)
	assert.Equal(t, []string{TopicPropertySubmitted}, env.publisher.topics())
	assert.Empty(t, unpublished(t, env))

	envelope, ok := env.publisher.messages[0].message.(EventEnvelope)
	require.True(t, ok)
	assert.Equal(t, pending[0].ID.String(), envelope.MessageID())
	assert.Equal(t, TopicPropertySubmitted, envelope.Topic)
}

func TestRepublishWithoutPublisher(t *testing.T) {
	env := newTestEnv(t)
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	dispatcher := NewEventDispatcher(env.store, nil, logger, env.now)

	err := env.store.WithTransaction(env.ctx, func(ctx context.Context, tx Repository) error {
		_, err := dispatcher.Record(ctx, tx, TopicUserDeleted, uuid.New(), map[string]string{"reason": "test"})
		return err
	})
	require.NoError(t, err)

	stats, err := dispatcher.Republish(env.ctx, 0, true)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Found)

	_, err = dispatcher.Republish(env.ctx, 0, false)
	assert.Error(t, err)
}

package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ledger/backend/internal/domain/ledger"
	"github.com/ledger/backend/internal/domain/shared"
	"github.com/ledger/backend/internal/infrastructure/event"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	channel string
	payload []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (f *fakePublisher) Publish(_ context.Context, channel string, message any) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	f.msgs = append(f.msgs, published{channel: channel, payload: message.([]byte)})
	return redis.NewIntResult(1, nil)
}

type testEvent struct {
	shared.BaseDomainEvent
}

func newEvent(branch *uuid.UUID) *testEvent {
	return &testEvent{BaseDomainEvent: shared.NewBaseDomainEvent(
		ledger.EventTypeObligationDeleted, ledger.AggregateTypeObligation, uuid.New(), branch, time.Now())}
}

func TestRedisEventPublisher_Handle(t *testing.T) {
	t.Run("publishes to global and branch channels", func(t *testing.T) {
		fake := &fakePublisher{}
		p := NewRedisEventPublisher(fake, event.NewEventSerializer(), WithChannel("test:events"))
		branch := uuid.New()
		ev := newEvent(&branch)

		require.NoError(t, p.Handle(context.Background(), ev))
		require.Len(t, fake.msgs, 2)
		assert.Equal(t, "test:events", fake.msgs[0].channel)
		assert.Equal(t, "test:events:branch:"+branch.String(), fake.msgs[1].channel)

		var env event.Envelope
		require.NoError(t, json.Unmarshal(fake.msgs[0].payload, &env))
		assert.Equal(t, ev.EventID(), env.ID)
		assert.Equal(t, ledger.EventTypeObligationDeleted, env.Type)
	})

	t.Run("unassigned branch only uses the global channel", func(t *testing.T) {
		fake := &fakePublisher{}
		p := NewRedisEventPublisher(fake, event.NewEventSerializer())

		require.NoError(t, p.Handle(context.Background(), newEvent(nil)))
		require.Len(t, fake.msgs, 1)
		assert.Equal(t, DefaultChannel, fake.msgs[0].channel)
	})

	t.Run("returns publish errors", func(t *testing.T) {
		fake := &fakePublisher{err: errors.New("connection refused")}
		p := NewRedisEventPublisher(fake, event.NewEventSerializer())

		err := p.Handle(context.Background(), newEvent(nil))
		assert.ErrorContains(t, err, "connection refused")
	})
}

func TestRedisEventPublisher_EventTypes(t *testing.T) {
	p := NewRedisEventPublisher(&fakePublisher{}, event.NewEventSerializer())
	assert.ElementsMatch(t, []string{
		ledger.EventTypeObligationCreated,
		ledger.EventTypePaymentRecorded,
		ledger.EventTypeObligationUpdated,
		ledger.EventTypeObligationDeleted,
	}, p.EventTypes())
}

func TestRedisEventPublisher_ThroughDispatcher(t *testing.T) {
	fake := &fakePublisher{}
	p := NewRedisEventPublisher(fake, event.NewEventSerializer())
	d := event.NewAsyncDispatcher(event.DispatcherConfig{QueueSize: 4, Workers: 1}, nil)
	d.Subscribe(p)
	require.NoError(t, d.Start())

	d.Emit(context.Background(), newEvent(nil), newEvent(nil))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Stop(ctx))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Len(t, fake.msgs, 2)
}

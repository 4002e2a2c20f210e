package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/ledger/backend/internal/domain/ledger"
	"github.com/ledger/backend/internal/domain/shared"
	"github.com/ledger/backend/internal/infrastructure/config"
	"github.com/ledger/backend/internal/infrastructure/event"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultChannel is the pub/sub channel used when none is configured
const DefaultChannel = "ledger:events"

// Publisher is the subset of the Redis client the publisher needs
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisEventPublisher pushes ledger events to Redis pub/sub for live dashboards.
// Events are published on the global channel and on a per-branch channel.
type RedisEventPublisher struct {
	client     Publisher
	channel    string
	serializer *event.EventSerializer
	logger     *zap.Logger
}

// RedisEventPublisherOption configures the publisher
type RedisEventPublisherOption func(*RedisEventPublisher)

// WithChannel sets the base channel name
func WithChannel(channel string) RedisEventPublisherOption {
	return func(p *RedisEventPublisher) {
		if channel != "" {
			p.channel = channel
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) RedisEventPublisherOption {
	return func(p *RedisEventPublisher) { p.logger = logger }
}

// NewRedisEventPublisher creates a publisher over an existing client.
// The caller owns the client.
func NewRedisEventPublisher(client Publisher, serializer *event.EventSerializer, opts ...RedisEventPublisherOption) *RedisEventPublisher {
	p := &RedisEventPublisher{
		client:     client,
		channel:    DefaultChannel,
		serializer: serializer,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewClient connects to Redis and verifies the connection
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr(), err)
	}
	return client, nil
}

// BranchChannel returns the channel carrying one branch's events
func (p *RedisEventPublisher) BranchChannel(branchID string) string {
	return p.channel + ":branch:" + branchID
}

// Handle publishes one event
func (p *RedisEventPublisher) Handle(ctx context.Context, ev shared.DomainEvent) error {
	data, err := p.serializer.Marshal(ev)
	if err != nil {
		return err
	}

	channels := []string{p.channel}
	if branch := ev.BranchID(); branch != nil {
		channels = append(channels, p.BranchChannel(branch.String()))
	}
	for _, ch := range channels {
		if err := p.client.Publish(ctx, ch, data).Err(); err != nil {
			return fmt.Errorf("failed to publish %s to %s: %w", ev.EventType(), ch, err)
		}
	}

	p.logger.Debug("Published event",
		zap.String("event_type", ev.EventType()),
		zap.String("aggregate_id", ev.AggregateID().String()),
		zap.Strings("channels", channels),
	)
	return nil
}

// EventTypes subscribes to every ledger event
func (p *RedisEventPublisher) EventTypes() []string {
	return []string{
		ledger.EventTypeObligationCreated,
		ledger.EventTypePaymentRecorded,
		ledger.EventTypeObligationUpdated,
		ledger.EventTypeObligationDeleted,
	}
}

var _ shared.EventHandler = (*RedisEventPublisher)(nil)

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/bizzytrack/backend/internal/infrastructure/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// DefaultRuleInvalidationChannel is the Pub/Sub channel rule changes
	// are announced on
	DefaultRuleInvalidationChannel = "discount:rule-invalidation"

	defaultCloseTimeout = 5 * time.Second
)

// RuleUpdateMessage announces a discount rule change to every node so each
// can drop the tenant's cached pricing results
type RuleUpdateMessage struct {
	TenantID  uuid.UUID `json:"tenant_id"`
	RuleType  string    `json:"rule_type,omitempty"`
	Action    string    `json:"action"` // created, updated, deleted
	Timestamp int64     `json:"timestamp"`
}

// RedisRuleCacheInvalidator broadcasts rule changes over Redis Pub/Sub and
// fans received messages into a callback, typically the rule engine's
// InvalidateCache
type RedisRuleCacheInvalidator struct {
	client     *redis.Client
	ownsClient bool
	channel    string
	logger     *zap.Logger
	cancelFn   context.CancelFunc
	doneCh     chan struct{}
	doneOnce   sync.Once
	mu         sync.Mutex
	isRunning  bool
}

// RedisRuleCacheInvalidatorOption is a functional option for configuring
// the invalidator
type RedisRuleCacheInvalidatorOption func(*RedisRuleCacheInvalidator)

// WithInvalidatorChannel sets the Pub/Sub channel name
func WithInvalidatorChannel(channel string) RedisRuleCacheInvalidatorOption {
	return func(i *RedisRuleCacheInvalidator) {
		i.channel = channel
	}
}

// WithInvalidatorLogger sets the logger for the invalidator
func WithInvalidatorLogger(logger *zap.Logger) RedisRuleCacheInvalidatorOption {
	return func(i *RedisRuleCacheInvalidator) {
		i.logger = logger
	}
}

// NewRedisRuleCacheInvalidator creates a new Redis Pub/Sub invalidator
func NewRedisRuleCacheInvalidator(cfg config.RedisConfig, opts ...RedisRuleCacheInvalidatorOption) (*RedisRuleCacheInvalidator, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	invalidator := &RedisRuleCacheInvalidator{
		client:     client,
		ownsClient: true,
		channel:    DefaultRuleInvalidationChannel,
		logger:     zap.NewNop(),
		doneCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(invalidator)
	}
	return invalidator, nil
}

// NewRedisRuleCacheInvalidatorWithClient creates an invalidator with an
// existing Redis client. The caller retains ownership of the client.
func NewRedisRuleCacheInvalidatorWithClient(client *redis.Client, opts ...RedisRuleCacheInvalidatorOption) *RedisRuleCacheInvalidator {
	invalidator := &RedisRuleCacheInvalidator{
		client:     client,
		ownsClient: false,
		channel:    DefaultRuleInvalidationChannel,
		logger:     zap.NewNop(),
		doneCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(invalidator)
	}
	return invalidator
}

// Publish sends a rule change notification to all subscribers
func (i *RedisRuleCacheInvalidator) Publish(ctx context.Context, msg RuleUpdateMessage) error {
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixNano()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := i.client.Publish(ctx, i.channel, data).Err(); err != nil {
		i.logger.Error("failed to publish rule update message",
			zap.String("channel", i.channel),
			zap.Error(err))
		return fmt.Errorf("failed to publish message: %w", err)
	}

	i.logger.Debug("published rule update message",
		zap.String("tenant_id", msg.TenantID.String()),
		zap.String("action", msg.Action))
	return nil
}

// PublishRuleChange announces a rule create, update or delete for a tenant
func (i *RedisRuleCacheInvalidator) PublishRuleChange(ctx context.Context, tenantID uuid.UUID, ruleType, action string) error {
	return i.Publish(ctx, RuleUpdateMessage{
		TenantID: tenantID,
		RuleType: ruleType,
		Action:   action,
	})
}

// Subscribe starts listening for rule change notifications. The callback is
// invoked for each received message. Blocks until the context is cancelled;
// run it in a goroutine.
func (i *RedisRuleCacheInvalidator) Subscribe(ctx context.Context, callback func(msg RuleUpdateMessage)) error {
	i.mu.Lock()
	if i.isRunning {
		i.mu.Unlock()
		return fmt.Errorf("subscription already running")
	}
	i.isRunning = true
	i.mu.Unlock()

	subCtx, cancel := context.WithCancel(ctx)
	i.mu.Lock()
	i.cancelFn = cancel
	i.mu.Unlock()

	pubsub := i.client.Subscribe(subCtx, i.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(subCtx); err != nil {
		i.mu.Lock()
		i.isRunning = false
		i.mu.Unlock()
		return fmt.Errorf("failed to subscribe to channel: %w", err)
	}

	i.logger.Info("subscribed to rule invalidation channel", zap.String("channel", i.channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-subCtx.Done():
			i.logger.Info("rule invalidation subscription stopped")
			i.mu.Lock()
			i.isRunning = false
			i.mu.Unlock()
			i.markDone()
			return subCtx.Err()
		case msg, ok := <-ch:
			if !ok {
				i.logger.Warn("rule invalidation channel closed")
				i.mu.Lock()
				i.isRunning = false
				i.mu.Unlock()
				i.markDone()
				return nil
			}

			var update RuleUpdateMessage
			if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
				i.logger.Error("failed to unmarshal rule update message",
					zap.String("payload", msg.Payload),
					zap.Error(err))
				continue
			}

			go func(m RuleUpdateMessage) {
				defer func() {
					if r := recover(); r != nil {
						i.logger.Error("panic in rule update callback", zap.Any("panic", r))
					}
				}()
				callback(m)
			}(update)
		}
	}
}

func (i *RedisRuleCacheInvalidator) markDone() {
	i.doneOnce.Do(func() {
		close(i.doneCh)
	})
}

// Close releases any resources held by the invalidator
func (i *RedisRuleCacheInvalidator) Close() error {
	i.mu.Lock()
	cancelFn := i.cancelFn
	i.mu.Unlock()

	if cancelFn != nil {
		cancelFn()
		select {
		case <-i.doneCh:
		case <-time.After(defaultCloseTimeout):
			i.logger.Warn("timeout waiting for subscription to stop")
		}
	}

	if i.ownsClient {
		return i.client.Close()
	}
	return nil
}

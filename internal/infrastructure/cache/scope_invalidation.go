package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ELEVATE-Project/project-service-sub002/internal/domain/catalog"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultInvalidationChannel = "catalog:hierarchy:invalidate"
	defaultCloseTimeout        = 5 * time.Second
)

// ErrSubscriptionRunning is returned by Subscribe when a subscription is already active
var ErrSubscriptionRunning = errors.New("scope invalidation subscription already running")

// ScopeInvalidationMessage announces that a scope's hierarchy changed
type ScopeInvalidationMessage struct {
	TenantID  uuid.UUID `json:"tenant_id"`
	OrgID     uuid.UUID `json:"org_id"`
	Origin    string    `json:"origin"`
	Timestamp int64     `json:"timestamp"`
}

// Scope returns the scope named by the message
func (m ScopeInvalidationMessage) Scope() catalog.Scope {
	return catalog.Scope{TenantID: m.TenantID, OrgID: m.OrgID}
}

// ScopeInvalidator fans scope invalidations out to every instance over Redis Pub/Sub
type ScopeInvalidator struct {
	client  *redis.Client
	channel string
	origin  string
	logger  *zap.Logger

	mu       sync.Mutex
	running  bool
	cancelFn context.CancelFunc
	doneCh   chan struct{}
}

// NewScopeInvalidator creates an invalidator over client. origin tags the
// messages this instance publishes so it can skip its own.
func NewScopeInvalidator(client *redis.Client, origin string, logger *zap.Logger) *ScopeInvalidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if origin == "" {
		origin = uuid.NewString()
	}
	return &ScopeInvalidator{
		client:  client,
		channel: defaultInvalidationChannel,
		origin:  origin,
		logger:  logger,
	}
}

// Publish announces that scope changed
func (i *ScopeInvalidator) Publish(ctx context.Context, scope catalog.Scope) error {
	data, err := json.Marshal(ScopeInvalidationMessage{
		TenantID:  scope.TenantID,
		OrgID:     scope.OrgID,
		Origin:    i.origin,
		Timestamp: time.Now().UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("encode invalidation message: %w", err)
	}
	if err := i.client.Publish(ctx, i.channel, data).Err(); err != nil {
		return fmt.Errorf("publish invalidation message: %w", err)
	}
	return nil
}

// Subscribe blocks, calling fn for every scope invalidated by another
// instance, until ctx is canceled or Close is called
func (i *ScopeInvalidator) Subscribe(ctx context.Context, fn func(catalog.Scope)) error {
	i.mu.Lock()
	if i.running {
		i.mu.Unlock()
		return ErrSubscriptionRunning
	}
	subCtx, cancel := context.WithCancel(ctx)
	i.running = true
	i.cancelFn = cancel
	i.doneCh = make(chan struct{})
	done := i.doneCh
	i.mu.Unlock()

	defer func() {
		cancel()
		i.mu.Lock()
		i.running = false
		i.mu.Unlock()
		close(done)
	}()

	pubsub := i.client.Subscribe(subCtx, i.channel)
	defer pubsub.Close()
	if _, err := pubsub.Receive(subCtx); err != nil {
		return fmt.Errorf("subscribe to %s: %w", i.channel, err)
	}
	i.logger.Info("listening for hierarchy invalidations", zap.String("channel", i.channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-subCtx.Done():
			return subCtx.Err()
		case msg, ok := <-ch:
			if !ok {
				i.logger.Warn("hierarchy invalidation channel closed")
				return nil
			}
			var m ScopeInvalidationMessage
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				i.logger.Warn("ignoring malformed invalidation message", zap.String("payload", msg.Payload), zap.Error(err))
				continue
			}
			if m.Origin == i.origin {
				continue
			}
			i.dispatch(fn, m.Scope())
		}
	}
}

func (i *ScopeInvalidator) dispatch(fn func(catalog.Scope), scope catalog.Scope) {
	defer func() {
		if r := recover(); r != nil {
			i.logger.Error("panic in invalidation callback", zap.Any("panic", r), zap.String("scope", scope.String()))
		}
	}()
	fn(scope)
}

// Close stops a running subscription and waits for it to exit
func (i *ScopeInvalidator) Close() error {
	i.mu.Lock()
	cancel, done := i.cancelFn, i.doneCh
	i.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
	case <-time.After(defaultCloseTimeout):
		i.logger.Warn("timed out waiting for invalidation subscription to stop")
	}
	return nil
}

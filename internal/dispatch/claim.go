package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	pkgredis "github.com/angelmondragon/constructai-backend/pkg/redis"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrClaimed is returned when another derivation already holds the document.
var ErrClaimed = errors.New("derivation already in flight")

const defaultClaimTTL = 30 * time.Minute

// ReleaseFunc gives up a claim. Calling it more than once is harmless.
type ReleaseFunc func(ctx context.Context) error

// Claimer marks a document as having a derivation in flight.
type Claimer interface {
	Claim(ctx context.Context, kind, id string) (ReleaseFunc, error)
}

// RedisClaimer holds claims as SETNX keys so replicas share them.
type RedisClaimer struct {
	client pkgredis.KeyValueStore
	key    func(kind, id string) string
	ttl    time.Duration
}

// NewRedisClaimer constructs a claimer. key builds the namespaced key for a claim.
func NewRedisClaimer(client pkgredis.KeyValueStore, key func(kind, id string) string, ttl time.Duration) (*RedisClaimer, error) {
	if client == nil {
		return nil, errors.New("redis client required for claims")
	}
	if key == nil {
		return nil, errors.New("claim key builder required")
	}
	if ttl <= 0 {
		ttl = defaultClaimTTL
	}
	return &RedisClaimer{client: client, key: key, ttl: ttl}, nil
}

func (c *RedisClaimer) Claim(ctx context.Context, kind, id string) (ReleaseFunc, error) {
	key := c.key(kind, id)
	owner := uuid.NewString()
	ok, err := c.client.SetNX(ctx, key, owner, c.ttl)
	if err != nil {
		return nil, fmt.Errorf("setnx claim: %w", err)
	}
	if !ok {
		return nil, ErrClaimed
	}

	var once sync.Once
	return func(ctx context.Context) error {
		var releaseErr error
		once.Do(func() {
			value, err := c.client.Get(ctx, key)
			if err != nil {
				if !errors.Is(err, redis.Nil) {
					releaseErr = fmt.Errorf("read claim owner: %w", err)
				}
				return
			}
			// The TTL may have lapsed and someone else taken over.
			if value != owner {
				return
			}
			if err := c.client.Del(ctx, key); err != nil {
				releaseErr = fmt.Errorf("delete claim: %w", err)
			}
		})
		return releaseErr
	}, nil
}

// LocalClaimer keeps claims in memory for single-replica deployments.
type LocalClaimer struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func NewLocalClaimer() *LocalClaimer {
	return &LocalClaimer{active: make(map[string]struct{})}
}

func (c *LocalClaimer) Claim(_ context.Context, kind, id string) (ReleaseFunc, error) {
	key := kind + ":" + id
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, held := c.active[key]; held {
		return nil, ErrClaimed
	}
	c.active[key] = struct{}{}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			c.mu.Lock()
			delete(c.active, key)
			c.mu.Unlock()
		})
		return nil
	}, nil
}

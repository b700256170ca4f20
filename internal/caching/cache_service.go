package caching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"orgmanager/internal/models"
)

const keyPrefix = "orgmanager:organization:"

// CacheService is a read-through cache of organization views keyed by
// organization name. A miss is reported as (nil, nil).
type CacheService interface {
	GetOrganization(ctx context.Context, name string) (*models.OrganizationView, error)
	SetOrganization(ctx context.Context, view *models.OrganizationView) error
	InvalidateOrganization(ctx context.Context, names ...string) error
	Ping(ctx context.Context) error
}

type redisCacheService struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCacheService(addr, password string, db int, ttl time.Duration) CacheService {
	// Accept redis://host:port as well as host:port
	addr = strings.TrimPrefix(strings.TrimPrefix(addr, "redis://"), "rediss://")

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisCacheServiceFromClient(client, ttl)
}

func NewRedisCacheServiceFromClient(client *redis.Client, ttl time.Duration) CacheService {
	return &redisCacheService{client: client, ttl: ttl}
}

func organizationKey(name string) string {
	return keyPrefix + name
}

func (r *redisCacheService) GetOrganization(ctx context.Context, name string) (*models.OrganizationView, error) {
	data, err := r.client.Get(ctx, organizationKey(name)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // cache miss
		}
		return nil, err
	}

	var view models.OrganizationView
	if err := json.Unmarshal(data, &view); err != nil {
		return nil, fmt.Errorf("decode cached organization: %w", err)
	}
	return &view, nil
}

func (r *redisCacheService) SetOrganization(ctx context.Context, view *models.OrganizationView) error {
	data, err := json.Marshal(view)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, organizationKey(view.OrganizationName), data, r.ttl).Err()
}

func (r *redisCacheService) InvalidateOrganization(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		return nil
	}
	keys := make([]string, len(names))
	for i, name := range names {
		keys[i] = organizationKey(name)
	}
	return r.client.Del(ctx, keys...).Err()
}

func (r *redisCacheService) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

type noopCacheService struct{}

// NewNoopCacheService disables caching; every read is a miss.
func NewNoopCacheService() CacheService { return noopCacheService{} }

func (noopCacheService) GetOrganization(context.Context, string) (*models.OrganizationView, error) {
	return nil, nil
}
func (noopCacheService) SetOrganization(context.Context, *models.OrganizationView) error { return nil }
func (noopCacheService) InvalidateOrganization(context.Context, ...string) error     { return nil }
func (noopCacheService) Ping(context.Context) error                                  { return nil }

package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"orgmanager/internal/config"
	"orgmanager/internal/models"
)

const testSecret = "test-secret-key-min-32-bytes-long!!"

func newTestCredentials() CredentialService {
	return NewCredentialService(config.CredentialConfig{Cost: bcrypt.MinCost})
}

func newTestTokens(t *testing.T, opts ...TokenOption) TokenService {
	t.Helper()
	tokens, err := NewTokenService(config.TokenConfig{
		Secret:    []byte(testSecret),
		Algorithm: "HS256",
		TTL:       30 * time.Minute,
	}, opts...)
	require.NoError(t, err)
	return tokens
}

// recordingObjectStore remembers prefix operations.
type recordingObjectStore struct {
	mu      sync.Mutex
	moves   [][2]string
	removed []string
	moveErr error
}

func (s *recordingObjectStore) EnsureBucket(context.Context) error { return nil }
func (s *recordingObjectStore) Ping(context.Context) error         { return nil }

func (s *recordingObjectStore) MovePrefix(_ context.Context, oldPrefix, newPrefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.moveErr != nil {
		return s.moveErr
	}
	s.moves = append(s.moves, [2]string{oldPrefix, newPrefix})
	return nil
}

func (s *recordingObjectStore) RemovePrefix(_ context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = append(s.removed, prefix)
	return nil
}

// mapCache is an in-process organization view cache that can be broken.
type mapCache struct {
	mu     sync.Mutex
	views  map[string]models.OrganizationView
	broken error
}

func newMapCache() *mapCache {
	return &mapCache{views: make(map[string]models.OrganizationView)}
}

func (c *mapCache) GetOrganization(_ context.Context, name string) (*models.OrganizationView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken != nil {
		return nil, c.broken
	}
	v, ok := c.views[name]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (c *mapCache) SetOrganization(_ context.Context, view *models.OrganizationView) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken != nil {
		return c.broken
	}
	c.views[view.OrganizationName] = *view
	return nil
}

func (c *mapCache) InvalidateOrganization(_ context.Context, names ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken != nil {
		return c.broken
	}
	for _, n := range names {
		delete(c.views, n)
	}
	return nil
}

func (c *mapCache) Ping(context.Context) error { return c.broken }

func (c *mapCache) has(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.views[name]
	return ok
}

package caching

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orgmanager/internal/models"
)

func TestNoopCacheService(t *testing.T) {
	cache := NewNoopCacheService()
	ctx := context.Background()

	require.NoError(t, cache.SetOrganization(ctx, &models.OrganizationView{OrganizationName: "Acme"}))
	view, err := cache.GetOrganization(ctx, "Acme")
	assert.NoError(t, err)
	assert.Nil(t, view)
	assert.NoError(t, cache.InvalidateOrganization(ctx, "Acme"))
	assert.NoError(t, cache.Ping(ctx))
}

func TestRedisCacheService_UnreachableIsNotAMiss(t *testing.T) {
	cache := NewRedisCacheService("redis://127.0.0.1:1", "", 0, time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	view, err := cache.GetOrganization(ctx, "Acme")
	assert.Error(t, err)
	assert.Nil(t, view)
	assert.Error(t, cache.Ping(ctx))
}

func TestOrganizationKey(t *testing.T) {
	assert.Equal(t, "orgmanager:organization:Acme Corp", organizationKey("Acme Corp"))
}

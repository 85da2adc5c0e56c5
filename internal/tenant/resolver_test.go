package tenant

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketflow/ingress/internal/models"
	"github.com/ticketflow/ingress/internal/storage"
)

type fakeStore struct {
	tenants map[string]*models.Tenant
	calls   int
	err     error
}

func (f *fakeStore) FindByTenantID(ctx context.Context, tenantID string) (*models.Tenant, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.tenants[tenantID], nil
}

func setupResolver(t *testing.T, store *fakeStore, ttl time.Duration) (*miniredis.Miniredis, *Resolver) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return mr, NewResolver(store, storage.NewRedisFromClient(client), ttl)
}

func acmeTenant() *models.Tenant {
	return &models.Tenant{
		TenantID:       "acme",
		SigningSecret:  []byte("whsec_acme"),
		IsActive:       true,
		APIEndpoint:    "https://acme.example.com/api",
		CredentialsRef: "vault:acme/ticketing",
		Preferences:    map[string]string{"tone": "formal"},
	}
}

func TestResolveServesFromStoreThenCache(t *testing.T) {
	store := &fakeStore{tenants: map[string]*models.Tenant{"acme": acmeTenant()}}
	_, resolver := setupResolver(t, store, time.Minute)
	ctx := context.Background()

	cfg, err := resolver.Resolve(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, []byte("whsec_acme"), cfg.SigningSecret)
	assert.Equal(t, "vault:acme/ticketing", cfg.CredentialsRef)
	assert.Equal(t, 1, store.calls)

	// Second resolve is a cache hit; the durable store is not consulted.
	cfg, err = resolver.Resolve(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, []byte("whsec_acme"), cfg.SigningSecret)
	assert.Equal(t, 1, store.calls)
}

func TestResolveCacheExpires(t *testing.T) {
	store := &fakeStore{tenants: map[string]*models.Tenant{"acme": acmeTenant()}}
	mr, resolver := setupResolver(t, store, time.Minute)
	ctx := context.Background()

	_, err := resolver.Resolve(ctx, "acme")
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = resolver.Resolve(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 2, store.calls, "an expired cache entry forces a reload")
}

func TestResolveNotFound(t *testing.T) {
	store := &fakeStore{tenants: map[string]*models.Tenant{}}
	_, resolver := setupResolver(t, store, time.Minute)

	_, err := resolver.Resolve(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrTenantNotFound)

	_, err = resolver.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, ErrTenantNotFound)
}

func TestResolveInactive(t *testing.T) {
	disabled := acmeTenant()
	disabled.IsActive = false
	store := &fakeStore{tenants: map[string]*models.Tenant{"acme": disabled}}
	_, resolver := setupResolver(t, store, time.Minute)
	ctx := context.Background()

	_, err := resolver.Resolve(ctx, "acme")
	assert.ErrorIs(t, err, ErrTenantInactive)

	// The inactive flag is cached like an active entry.
	_, err = resolver.Resolve(ctx, "acme")
	assert.ErrorIs(t, err, ErrTenantInactive)
	assert.Equal(t, 1, store.calls)
}

func TestResolveFailsClosedOnStoreError(t *testing.T) {
	store := &fakeStore{err: errors.New("connection refused")}
	_, resolver := setupResolver(t, store, time.Minute)

	_, err := resolver.Resolve(context.Background(), "acme")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTenantNotFound, "a store outage must not masquerade as an unknown tenant")
}

func TestInvalidatePushesOutRotatedSecret(t *testing.T) {
	store := &fakeStore{tenants: map[string]*models.Tenant{"acme": acmeTenant()}}
	_, resolver := setupResolver(t, store, time.Hour)
	ctx := context.Background()

	_, err := resolver.Resolve(ctx, "acme")
	require.NoError(t, err)

	// Rotate the secret in the durable store, then push-invalidate.
	store.tenants["acme"].SigningSecret = []byte("whsec_rotated")
	resolver.Invalidate(ctx, "acme")

	cfg, err := resolver.Resolve(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, []byte("whsec_rotated"), cfg.SigningSecret,
		"the cache must never serve a rotated-away secret after invalidation")
	assert.Equal(t, 2, store.calls)
}

func TestResolverToleratesCacheOutage(t *testing.T) {
	store := &fakeStore{tenants: map[string]*models.Tenant{"acme": acmeTenant()}}
	mr, resolver := setupResolver(t, store, time.Minute)

	mr.Close()

	cfg, err := resolver.Resolve(context.Background(), "acme")
	require.NoError(t, err, "a cache outage falls through to the durable store")
	assert.Equal(t, []byte("whsec_acme"), cfg.SigningSecret)
}

package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ticketflow/ingress/internal/models"
	"github.com/ticketflow/ingress/internal/storage"
)

var (
	ErrTenantNotFound = errors.New("tenant: not found")
	ErrTenantInactive = errors.New("tenant: inactive")
)

// Store is the durable lookup behind the cache. Satisfied by *Repository;
// tests inject fakes.
type Store interface {
	FindByTenantID(ctx context.Context, tenantID string) (*models.Tenant, error)
}

// Config is what the admission pipeline needs to know about a tenant.
// SigningSecret must never appear in logs or error messages.
type Config struct {
	TenantID       string            `json:"tenant_id"`
	SigningSecret  []byte            `json:"signing_secret"`
	IsActive       bool              `json:"is_active"`
	APIEndpoint    string            `json:"api_endpoint"`
	CredentialsRef string            `json:"credentials_ref"`
	Preferences    map[string]string `json:"preferences,omitempty"`
}

// Resolver serves tenant configs from a capped-TTL Redis cache in front
// of the durable store. Lookups fail closed: a store error is an error,
// never an implicit "tenant unknown".
type Resolver struct {
	store Store
	redis *storage.RedisClient
	ttl   time.Duration
}

func NewResolver(store Store, redis *storage.RedisClient, ttl time.Duration) *Resolver {
	return &Resolver{
		store: store,
		redis: redis,
		ttl:   ttl,
	}
}

// Resolve returns the tenant's config. Inactive tenants are cached like
// active ones so a disabled tenant cannot dodge the flag by hammering the
// endpoint through cache misses.
func (r *Resolver) Resolve(ctx context.Context, tenantID string) (*Config, error) {
	if tenantID == "" {
		return nil, ErrTenantNotFound
	}

	cacheKey := r.cacheKey(tenantID)
	cached, err := r.redis.Get(ctx, cacheKey)
	if err == nil && cached != "" {
		var cfg Config
		if err := json.Unmarshal([]byte(cached), &cfg); err == nil {
			return checkActive(&cfg)
		}
	}

	// Cache miss - load from the durable store
	record, err := r.store.FindByTenantID(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("tenant lookup failed: %w", err)
	}
	if record == nil {
		return nil, ErrTenantNotFound
	}

	cfg := &Config{
		TenantID:       record.TenantID,
		SigningSecret:  record.SigningSecret,
		IsActive:       record.IsActive,
		APIEndpoint:    record.APIEndpoint,
		CredentialsRef: record.CredentialsRef,
		Preferences:    record.Preferences,
	}

	if encoded, err := json.Marshal(cfg); err == nil {
		r.redis.Set(ctx, cacheKey, encoded, r.ttl)
	}

	return checkActive(cfg)
}

// Invalidate drops the cached entry. Called on rotation and admin updates
// so the exposure window of a just-rotated-away secret is near zero.
func (r *Resolver) Invalidate(ctx context.Context, tenantID string) {
	r.redis.Del(ctx, r.cacheKey(tenantID))
}

func (r *Resolver) cacheKey(tenantID string) string {
	return fmt.Sprintf("tenant:cache:%s", tenantID)
}

func checkActive(cfg *Config) (*Config, error) {
	if !cfg.IsActive {
		return nil, ErrTenantInactive
	}
	return cfg, nil
}

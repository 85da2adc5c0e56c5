package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/ticketflow/ingress/internal/models"
	"github.com/ticketflow/ingress/internal/tenant"
)

var ErrTenantExists = errors.New("tenant already exists")

// TenantService carries the administrative side of tenant lifecycle:
// provisioning, secret rotation, activation. Every mutation pushes a
// cache invalidation so the resolver never serves a rotated-away secret.
type TenantService struct {
	repo     *tenant.Repository
	resolver *tenant.Resolver
}

func NewTenantService(repo *tenant.Repository, resolver *tenant.Resolver) *TenantService {
	return &TenantService{
		repo:     repo,
		resolver: resolver,
	}
}

// Provision creates a tenant and returns the generated signing secret.
// The secret is returned exactly once; only the tenant row keeps it.
func (s *TenantService) Provision(ctx context.Context, tenantID, apiEndpoint, credentialsRef string, preferences map[string]string) (string, error) {
	existing, err := s.repo.FindByTenantID(ctx, tenantID)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return "", ErrTenantExists
	}

	secret, err := generateSecret()
	if err != nil {
		return "", err
	}

	record := models.Tenant{
		TenantID:       tenantID,
		SigningSecret:  []byte(secret),
		IsActive:       true,
		APIEndpoint:    apiEndpoint,
		CredentialsRef: credentialsRef,
		Preferences:    preferences,
	}

	if err := s.repo.Create(ctx, &record); err != nil {
		return "", fmt.Errorf("failed to create tenant: %w", err)
	}

	return secret, nil
}

// Rotate installs a fresh signing secret and invalidates the cache entry
// in the same call path, so the old secret stops verifying immediately.
func (s *TenantService) Rotate(ctx context.Context, tenantID string) (string, error) {
	existing, err := s.repo.FindByTenantID(ctx, tenantID)
	if err != nil {
		return "", err
	}
	if existing == nil {
		return "", tenant.ErrTenantNotFound
	}

	secret, err := generateSecret()
	if err != nil {
		return "", err
	}

	if err := s.repo.UpdateSecret(ctx, tenantID, []byte(secret)); err != nil {
		return "", fmt.Errorf("failed to rotate secret: %w", err)
	}

	s.resolver.Invalidate(ctx, tenantID)

	return secret, nil
}

func (s *TenantService) SetActive(ctx context.Context, tenantID string, active bool) error {
	if err := s.repo.Update(ctx, tenantID, map[string]interface{}{"is_active": active}); err != nil {
		return err
	}

	s.resolver.Invalidate(ctx, tenantID)
	return nil
}

func (s *TenantService) List(ctx context.Context) ([]models.Tenant, error) {
	return s.repo.List(ctx)
}

func (s *TenantService) Delete(ctx context.Context, tenantID string) error {
	if err := s.repo.Delete(ctx, tenantID); err != nil {
		return err
	}

	s.resolver.Invalidate(ctx, tenantID)
	return nil
}

func generateSecret() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}

	return "whsec_" + base64.URLEncoding.EncodeToString(raw), nil
}

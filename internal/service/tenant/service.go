package tenant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ignite/campaign-targeting/internal/domain"
	"github.com/ignite/campaign-targeting/internal/pkg/logger"
)

// Resolver maps account ids to tenant configs.
type Resolver struct {
	repo Repository
}

// NewResolver creates a resolver over repo.
func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve returns the config of one account. Unknown accounts fail with
// domain.ErrTenantNotFound and accounts without a tax id with
// domain.ErrTenantNotConfigured; both match domain.ErrConfiguration.
func (r *Resolver) Resolve(ctx context.Context, accountID string) (domain.TenantConfig, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return domain.TenantConfig{}, fmt.Errorf("%w: empty account id", domain.ErrTenantNotFound)
	}

	cfg, err := r.repo.GetTenant(ctx, accountID)
	if err != nil {
		if !errors.Is(err, domain.ErrTenantNotFound) {
			logger.Error("Tenant lookup failed", "accountId", accountID, "error", err)
		}
		return domain.TenantConfig{}, err
	}
	if cfg.TaxID == "" {
		return domain.TenantConfig{}, fmt.Errorf("%w: account %s", domain.ErrTenantNotConfigured, accountID)
	}
	return cfg, nil
}

// ListProvisioned returns the tenants a fleet run covers. An error here means
// the run cannot know its scope and must stop.
func (r *Resolver) ListProvisioned(ctx context.Context) ([]domain.TenantConfig, error) {
	tenants, err := r.repo.ListProvisioned(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing provisioned tenants: %w", err)
	}
	out := tenants[:0]
	for _, t := range tenants {
		if t.Provisioned() {
			out = append(out, t)
		}
	}
	logger.Info("Resolved provisioned tenants", "count", len(out))
	return out, nil
}

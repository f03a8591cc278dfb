package tenant

import (
	"context"

	"github.com/ignite/campaign-targeting/internal/domain"
)

// Repository reads tenant configuration documents.
type Repository interface {
	// GetTenant returns domain.ErrTenantNotFound when the account has no
	// config document.
	GetTenant(ctx context.Context, accountID string) (domain.TenantConfig, error)

	// ListProvisioned returns every provisioned tenant with a tax id.
	ListProvisioned(ctx context.Context) ([]domain.TenantConfig, error)
}

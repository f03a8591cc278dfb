package campaign

import (
	"context"

	"github.com/ignite/campaign-targeting/internal/domain"
	"github.com/ignite/campaign-targeting/internal/pkg/distlock"
	"github.com/ignite/campaign-targeting/internal/storage"
)

// Repository is the document store side of a campaign run.
// Implementations must be safe for concurrent use.
type Repository interface {
	// GetSettings returns the campaign's settings, defaults when unset.
	GetSettings(ctx context.Context, accountID string, t domain.CampaignType) (domain.CampaignSettings, error)

	// StageTargets replaces the staged targets of one campaign. An empty
	// list leaves existing targets untouched.
	StageTargets(ctx context.Context, accountID string, t domain.CampaignType, runID string, targets []domain.Target) (storage.StageResult, error)
}

// Locker hands out stage locks by key.
type Locker interface {
	Lock(key string) distlock.DistLock
}

// Notifier tells the messaging pipeline a campaign has fresh targets.
type Notifier interface {
	NotifyStaged(ctx context.Context, n domain.StagedNotification) error
}

// Reporter archives a tenant run.
type Reporter interface {
	Save(ctx context.Context, res domain.TenantResult) error
}

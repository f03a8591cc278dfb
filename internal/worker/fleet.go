package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/ignite/campaign-targeting/internal/domain"
	"github.com/ignite/campaign-targeting/internal/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// TenantLister returns the tenants a fleet run covers.
type TenantLister interface {
	ListProvisioned(ctx context.Context) ([]domain.TenantConfig, error)
}

// TenantRunner runs every campaign of one tenant.
type TenantRunner interface {
	RunAll(ctx context.Context, tenant domain.TenantConfig) domain.TenantResult
}

// FleetSummary reports one run over every provisioned tenant.
type FleetSummary struct {
	StartedAt  time.Time             `json:"startedAt"`
	FinishedAt time.Time             `json:"finishedAt"`
	Tenants    int                   `json:"tenants"`
	Failed     int                   `json:"failed"`
	Results    []domain.TenantResult `json:"results"`
}

// FleetRunner fans tenant runs out with bounded concurrency and a deadline
// per tenant.
type FleetRunner struct {
	tenants       TenantLister
	runner        TenantRunner
	maxConcurrent int
	tenantTimeout time.Duration
}

// NewFleetRunner creates a fleet runner.
func NewFleetRunner(tenants TenantLister, runner TenantRunner, maxConcurrent int, tenantTimeout time.Duration) *FleetRunner {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &FleetRunner{
		tenants:       tenants,
		runner:        runner,
		maxConcurrent: maxConcurrent,
		tenantTimeout: tenantTimeout,
	}
}

// Run processes every provisioned tenant. Failing to list tenants aborts the
// run; a tenant's campaign failures are recorded and the run moves on.
func (f *FleetRunner) Run(ctx context.Context) (*FleetSummary, error) {
	summary := &FleetSummary{StartedAt: time.Now().UTC()}

	tenants, err := f.tenants.ListProvisioned(ctx)
	if err != nil {
		return nil, fmt.Errorf("fleet run aborted: %w", err)
	}
	summary.Tenants = len(tenants)
	summary.Results = make([]domain.TenantResult, len(tenants))

	var g errgroup.Group
	g.SetLimit(f.maxConcurrent)
	for i, tenant := range tenants {
		g.Go(func() error {
			tctx, cancel := f.tenantContext(ctx)
			defer cancel()
			summary.Results[i] = f.runner.RunAll(tctx, tenant)
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range summary.Results {
		if len(res.Failures()) > 0 {
			summary.Failed++
			for _, o := range res.Failures() {
				logger.Warn("Tenant campaign failed", "accountId", res.AccountID, "campaign", string(o.CampaignType), "error", o.Error)
			}
		}
	}
	summary.FinishedAt = time.Now().UTC()
	logger.Info("Fleet run finished", "tenants", summary.Tenants, "failed", summary.Failed,
		"duration", summary.FinishedAt.Sub(summary.StartedAt).String())
	return summary, nil
}

func (f *FleetRunner) tenantContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.tenantTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, f.tenantTimeout)
}

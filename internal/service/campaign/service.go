package campaign

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/campaign-targeting/internal/domain"
	"github.com/ignite/campaign-targeting/internal/eligibility"
	"github.com/ignite/campaign-targeting/internal/pkg/distlock"
	"github.com/ignite/campaign-targeting/internal/pkg/logger"
	"github.com/ignite/campaign-targeting/internal/storage"
)

const reportTimeout = 10 * time.Second

// Options tunes a Service. Zero values take the defaults.
type Options struct {
	// LockWait bounds how long a stage waits for a competing stage.
	LockWait time.Duration
	// LockPoll is the retry interval while waiting.
	LockPoll time.Duration
	// Now overrides the clock.
	Now func() time.Time
}

// Service runs campaign processors for tenants. It is safe for concurrent
// use when its collaborators are.
type Service struct {
	warehouse eligibility.Querier
	repo      Repository
	locks     Locker
	renderer  *MessageRenderer
	notifier  Notifier
	reporter  Reporter
	opts      Options
}

// NewService creates a campaign service.
func NewService(warehouse eligibility.Querier, repo Repository, locks Locker, opts Options) *Service {
	if opts.LockWait <= 0 {
		opts.LockWait = 30 * time.Second
	}
	if opts.LockPoll <= 0 {
		opts.LockPoll = distlock.DefaultPollInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		warehouse: warehouse,
		repo:      repo,
		locks:     locks,
		renderer:  NewMessageRenderer(),
		opts:      opts,
	}
}

// WithNotifier enables staged-target notifications.
func (s *Service) WithNotifier(n Notifier) *Service {
	s.notifier = n
	return s
}

// WithReporter enables run report archiving.
func (s *Service) WithReporter(r Reporter) *Service {
	s.reporter = r
	return s
}

// StageLockKey is the critical section key of one account's campaign.
func StageLockKey(accountID string, t domain.CampaignType) string {
	return fmt.Sprintf("stage:%s:%s", accountID, t)
}

// ProcessCampaign runs one campaign for one tenant under a fresh run id.
// Failures are reported in the Outcome, never returned.
func (s *Service) ProcessCampaign(ctx context.Context, tenant domain.TenantConfig, t domain.CampaignType) domain.Outcome {
	return s.process(ctx, tenant, t, uuid.NewString(), eligibility.NewWindow(s.opts.Now()))
}

// RunAll runs every campaign for one tenant concurrently. Each campaign's
// result lands in its own Outcome, in registry order.
func (s *Service) RunAll(ctx context.Context, tenant domain.TenantConfig) domain.TenantResult {
	res := domain.TenantResult{
		RunID:     uuid.NewString(),
		AccountID: tenant.AccountID,
		TaxID:     tenant.TaxID,
		StartedAt: s.opts.Now().UTC(),
	}
	window := eligibility.NewWindow(s.opts.Now())

	rules := eligibility.Rules()
	outcomes := make([]domain.Outcome, len(rules))
	var wg sync.WaitGroup
	for i, rule := range rules {
		wg.Add(1)
		go func(i int, t domain.CampaignType) {
			defer wg.Done()
			outcomes[i] = s.process(ctx, tenant, t, res.RunID, window)
		}(i, rule.Type)
	}
	wg.Wait()

	res.Outcomes = outcomes
	res.FinishedAt = s.opts.Now().UTC()

	failed := len(res.Failures())
	logger.Info("Tenant run finished", "accountId", tenant.AccountID, "runId", res.RunID,
		"failed", failed, "duration", res.FinishedAt.Sub(res.StartedAt).String())

	if s.reporter != nil {
		// the report outlives a cancelled trigger request
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
		defer cancel()
		if err := s.reporter.Save(sctx, res); err != nil {
			logger.Warn("Failed to archive run report", "accountId", tenant.AccountID, "runId", res.RunID, "error", err)
		}
	}
	return res
}

func (s *Service) process(ctx context.Context, tenant domain.TenantConfig, t domain.CampaignType, runID string, w eligibility.Window) (out domain.Outcome) {
	start := time.Now()
	out = domain.Outcome{CampaignType: t, RunID: runID}
	defer func() {
		if r := recover(); r != nil {
			out = failed(out, fmt.Errorf("campaign processor panic: %v", r))
		}
		out.Duration = time.Since(start)
		s.logOutcome(tenant, out)
	}()

	rule, err := eligibility.Lookup(t)
	if err != nil {
		return failed(out, err)
	}

	settings, err := s.repo.GetSettings(ctx, tenant.AccountID, t)
	if err != nil {
		return failed(out, err)
	}
	if !settings.Enabled {
		out.Status = domain.OutcomeSkipped
		out.Reason = "campaign disabled"
		return out
	}

	result, err := rule.Evaluate(ctx, s.warehouse, tenant.TaxID, w, settings)
	if err != nil {
		return failed(out, err)
	}
	if result.Gated {
		out.Status = domain.OutcomeSkipped
		out.Reason = result.GateReason
		return out
	}
	out.Candidates = result.Candidates
	out.Dropped = len(result.Dropped)

	if len(result.Targets) == 0 {
		out.Status = domain.OutcomeCompleted
		out.Reason = "no eligible customers"
		return out
	}

	for i := range result.Targets {
		if err := s.renderer.Render(settings, &result.Targets[i], w.Now); err != nil {
			return failed(out, fmt.Errorf("%w: %w", domain.ErrConfiguration, err))
		}
	}

	release, err := distlock.Wait(ctx, s.locks.Lock(StageLockKey(tenant.AccountID, t)), s.opts.LockWait, s.opts.LockPoll)
	if err != nil {
		if errors.Is(err, distlock.ErrNotAcquired) {
			err = domain.ErrStageBusy
		}
		return failed(out, err)
	}
	staged, err := s.stage(ctx, release, tenant.AccountID, t, runID, result.Targets)
	if err != nil {
		return failed(out, err)
	}

	out.Status = domain.OutcomeCompleted
	out.Staged = staged.Written
	s.notify(ctx, tenant, t, runID, staged.Written)
	return out
}

func (s *Service) stage(ctx context.Context, release func(), accountID string, t domain.CampaignType, runID string, targets []domain.Target) (storage.StageResult, error) {
	defer release()
	return s.repo.StageTargets(ctx, accountID, t, runID, targets)
}

func (s *Service) notify(ctx context.Context, tenant domain.TenantConfig, t domain.CampaignType, runID string, count int) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.NotifyStaged(ctx, domain.StagedNotification{
		AccountID:    tenant.AccountID,
		CampaignType: t,
		RunID:        runID,
		Count:        count,
		StagedAt:     s.opts.Now().UTC(),
	})
	if err != nil {
		logger.Warn("Failed to publish staged notification", "accountId", tenant.AccountID,
			"campaign", string(t), "runId", runID, "error", err)
	}
}

func (s *Service) logOutcome(tenant domain.TenantConfig, out domain.Outcome) {
	kv := []interface{}{
		"accountId", tenant.AccountID,
		"campaign", string(out.CampaignType),
		"runId", out.RunID,
		"status", string(out.Status),
		"candidates", out.Candidates,
		"staged", out.Staged,
		"dropped", out.Dropped,
		"duration", out.Duration.String(),
	}
	switch out.Status {
	case domain.OutcomeFailed:
		logger.Error("Campaign failed", append(kv, "error", out.Err)...)
	case domain.OutcomeSkipped:
		logger.Info("Campaign skipped", append(kv, "reason", out.Reason)...)
	default:
		logger.Info("Campaign completed", kv...)
	}
}

func failed(out domain.Outcome, err error) domain.Outcome {
	out.Status = domain.OutcomeFailed
	out.Err = err
	out.Error = err.Error()
	return out
}

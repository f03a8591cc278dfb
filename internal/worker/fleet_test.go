package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ignite/campaign-targeting/internal/domain"
	"github.com/ignite/campaign-targeting/internal/pkg/distlock"
)

type stubLister struct {
	tenants []domain.TenantConfig
	err     error
}

func (s stubLister) ListProvisioned(context.Context) ([]domain.TenantConfig, error) {
	return s.tenants, s.err
}

type stubRunner struct {
	mu       sync.Mutex
	seen     []string
	active   int32
	peak     int32
	delay    time.Duration
	failFor  map[string]bool
	deadline map[string]bool
	block    chan struct{}
}

func (s *stubRunner) RunAll(ctx context.Context, tenant domain.TenantConfig) domain.TenantResult {
	n := atomic.AddInt32(&s.active, 1)
	for {
		p := atomic.LoadInt32(&s.peak)
		if n <= p || atomic.CompareAndSwapInt32(&s.peak, p, n) {
			break
		}
	}
	defer atomic.AddInt32(&s.active, -1)

	if s.block != nil {
		<-s.block
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	s.mu.Lock()
	s.seen = append(s.seen, tenant.AccountID)
	if _, ok := ctx.Deadline(); ok {
		if s.deadline == nil {
			s.deadline = map[string]bool{}
		}
		s.deadline[tenant.AccountID] = true
	}
	s.mu.Unlock()

	res := domain.TenantResult{AccountID: tenant.AccountID, TaxID: tenant.TaxID}
	for _, t := range domain.CampaignTypes {
		o := domain.Outcome{CampaignType: t, Status: domain.OutcomeCompleted}
		if s.failFor[tenant.AccountID] && t == domain.CampaignBirthday {
			o.Status = domain.OutcomeFailed
			o.Error = "warehouse unavailable"
		}
		res.Outcomes = append(res.Outcomes, o)
	}
	return res
}

func tenants(ids ...string) []domain.TenantConfig {
	out := make([]domain.TenantConfig, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.TenantConfig{AccountID: id, TaxID: "TAX_" + id, Status: domain.ProvisioningProvisioned})
	}
	return out
}

func TestFleetRunner_RunsEveryTenant(t *testing.T) {
	runner := &stubRunner{}
	fleet := NewFleetRunner(stubLister{tenants: tenants("a", "b", "c")}, runner, 2, time.Minute)

	summary, err := fleet.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if summary.Tenants != 3 {
		t.Errorf("Tenants = %d, want 3", summary.Tenants)
	}
	if len(runner.seen) != 3 {
		t.Errorf("runner saw %d tenants, want 3", len(runner.seen))
	}
	for i, id := range []string{"a", "b", "c"} {
		if summary.Results[i].AccountID != id {
			t.Errorf("Results[%d].AccountID = %q, want %q", i, summary.Results[i].AccountID, id)
		}
		if !runner.deadline[id] {
			t.Errorf("tenant %s ran without a deadline", id)
		}
	}
}

func TestFleetRunner_TenantFailureDoesNotStopRun(t *testing.T) {
	runner := &stubRunner{failFor: map[string]bool{"b": true}}
	fleet := NewFleetRunner(stubLister{tenants: tenants("a", "b", "c")}, runner, 1, 0)

	summary, err := fleet.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if summary.Failed != 1 {
		t.Errorf("Failed = %d, want 1", summary.Failed)
	}
	if len(runner.seen) != 3 {
		t.Errorf("runner saw %d tenants, want 3", len(runner.seen))
	}
	if len(runner.deadline) != 0 {
		t.Error("zero tenant timeout should not set a deadline")
	}
}

func TestFleetRunner_ListFailureAborts(t *testing.T) {
	listErr := errors.New("dynamo unavailable")
	runner := &stubRunner{}
	fleet := NewFleetRunner(stubLister{err: listErr}, runner, 2, time.Minute)

	summary, err := fleet.Run(context.Background())
	if !errors.Is(err, listErr) {
		t.Fatalf("Run() error = %v, want %v", err, listErr)
	}
	if summary != nil {
		t.Error("aborted run should not return a summary")
	}
	if len(runner.seen) != 0 {
		t.Error("no tenant should run when listing fails")
	}
}

func TestFleetRunner_BoundsConcurrency(t *testing.T) {
	runner := &stubRunner{delay: 20 * time.Millisecond}
	fleet := NewFleetRunner(stubLister{tenants: tenants("a", "b", "c", "d", "e", "f")}, runner, 2, time.Minute)

	if _, err := fleet.Run(context.Background()); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if peak := atomic.LoadInt32(&runner.peak); peak > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak)
	}
}

func TestScheduler_StartStop(t *testing.T) {
	s := NewScheduler(NewFleetRunner(stubLister{}, &stubRunner{}, 1, 0), nil, time.Hour)

	if err := s.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if !s.IsRunning() {
		t.Error("scheduler should be running after Start()")
	}
	if err := s.Start(); err == nil {
		t.Error("double Start() should return error")
	}

	s.Stop()
	if s.IsRunning() {
		t.Error("scheduler should not be running after Stop()")
	}
	// Stop twice is a no-op.
	s.Stop()
}

func TestScheduler_NextRunAlignsToBoundary(t *testing.T) {
	s := NewScheduler(nil, nil, time.Hour)
	now := time.Date(2024, 3, 10, 14, 37, 12, 0, time.UTC)

	got := s.nextRun(now)
	want := time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("nextRun(%v) = %v, want %v", now, got, want)
	}

	onBoundary := time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)
	if got := s.nextRun(onBoundary); !got.Equal(onBoundary.Add(time.Hour)) {
		t.Errorf("nextRun on a boundary = %v, want the following hour", got)
	}
}

func TestScheduler_RunNowRejectsOverlap(t *testing.T) {
	runner := &stubRunner{block: make(chan struct{})}
	s := NewScheduler(NewFleetRunner(stubLister{tenants: tenants("a")}, runner, 1, 0), nil, time.Hour)

	done := make(chan error, 1)
	go func() {
		_, err := s.RunNow(context.Background())
		done <- err
	}()

	for atomic.LoadInt32(&runner.active) == 0 {
		time.Sleep(time.Millisecond)
	}
	if _, err := s.RunNow(context.Background()); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("overlapping RunNow() error = %v, want ErrRunInProgress", err)
	}

	close(runner.block)
	if err := <-done; err != nil {
		t.Fatalf("first RunNow() error: %v", err)
	}
	stats := s.Stats()
	if stats["runs"] != 1 || stats["skipped"] != 1 {
		t.Errorf("stats = %v, want runs=1 skipped=1", stats)
	}
}

func TestScheduler_RunNowHonorsSharedLock(t *testing.T) {
	locks := distlock.NewFactory(nil, nil, time.Minute)
	held := locks.Lock(fleetLockKey)
	if ok, err := held.Acquire(context.Background()); !ok || err != nil {
		t.Fatalf("Acquire() = %v, %v", ok, err)
	}

	runner := &stubRunner{}
	s := NewScheduler(NewFleetRunner(stubLister{tenants: tenants("a")}, runner, 1, 0), locks, time.Hour)

	if _, err := s.RunNow(context.Background()); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("RunNow() error = %v, want ErrRunInProgress", err)
	}
	if len(runner.seen) != 0 {
		t.Error("fleet should not run while another holder has the lock")
	}

	_ = held.Release(context.Background())
	summary, err := s.RunNow(context.Background())
	if err != nil {
		t.Fatalf("RunNow() error: %v", err)
	}
	if summary.Tenants != 1 {
		t.Errorf("Tenants = %d, want 1", summary.Tenants)
	}
}

func TestScheduler_RunNowCountsAbortedRuns(t *testing.T) {
	s := NewScheduler(NewFleetRunner(stubLister{err: errors.New("boom")}, &stubRunner{}, 1, 0), nil, time.Hour)

	if _, err := s.RunNow(context.Background()); err == nil {
		t.Fatal("RunNow() should fail when tenants cannot be listed")
	}
	if got := s.Stats()["aborted"]; got != 1 {
		t.Errorf("aborted = %d, want 1", got)
	}
}

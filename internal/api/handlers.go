package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/ignite/campaign-targeting/internal/domain"
	"github.com/ignite/campaign-targeting/internal/pkg/httputil"
	"github.com/ignite/campaign-targeting/internal/worker"
)

// TenantResolver maps an account id to its tenant config.
type TenantResolver interface {
	Resolve(ctx context.Context, accountID string) (domain.TenantConfig, error)
}

// CampaignRunner processes campaigns for one tenant.
type CampaignRunner interface {
	ProcessCampaign(ctx context.Context, tenant domain.TenantConfig, t domain.CampaignType) domain.Outcome
	RunAll(ctx context.Context, tenant domain.TenantConfig) domain.TenantResult
}

// FleetTrigger starts a run over every provisioned tenant.
type FleetTrigger interface {
	RunNow(ctx context.Context) (*worker.FleetSummary, error)
}

// Handlers contains the trigger endpoints.
type Handlers struct {
	tenants   TenantResolver
	campaigns CampaignRunner
	fleet     FleetTrigger
}

// NewHandlers creates the trigger handlers. fleet may be nil, in which case
// a trigger without an account id is rejected.
func NewHandlers(tenants TenantResolver, campaigns CampaignRunner, fleet FleetTrigger) *Handlers {
	return &Handlers{tenants: tenants, campaigns: campaigns, fleet: fleet}
}

type triggerRequest struct {
	AccountID string `json:"accountId"`
}

type triggerResponse struct {
	Success   bool             `json:"success"`
	Message   string           `json:"message,omitempty"`
	AccountID string           `json:"accountId"`
	TaxID     string           `json:"taxId"`
	RunID     string           `json:"runId,omitempty"`
	Targets   int              `json:"targets"`
	Outcomes  []domain.Outcome `json:"outcomes,omitempty"`
}

type fleetResponse struct {
	Success bool                 `json:"success"`
	Message string               `json:"message"`
	Summary *worker.FleetSummary `json:"summary"`
}

// TriggerCampaign runs one campaign for one account.
//
//	POST /triggers/{campaignType}
func (h *Handlers) TriggerCampaign(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "campaignType")
	campaign, err := domain.ParseCampaignType(raw)
	if err != nil {
		respondError(w, fmt.Errorf("%w: %q", err, raw))
		return
	}

	var req triggerRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	tenant, ok := h.resolve(w, r, req.AccountID)
	if !ok {
		return
	}

	out := h.campaigns.ProcessCampaign(r.Context(), tenant, campaign)
	if out.Failed() {
		respondError(w, outcomeError(out))
		return
	}

	httputil.OK(w, triggerResponse{
		Success:   true,
		Message:   outcomeMessage(out),
		AccountID: tenant.AccountID,
		TaxID:     tenant.TaxID,
		RunID:     out.RunID,
		Targets:   out.Staged,
	})
}

// TriggerAll runs every campaign for one account, or for the whole fleet
// when the request has no body. A body without an account id is rejected.
//
//	POST /triggers/all
func (h *Handlers) TriggerAll(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	empty, ok := httputil.DecodeOptional(w, r, &req)
	if !ok {
		return
	}
	if empty {
		h.triggerFleet(w, r)
		return
	}

	tenant, ok := h.resolve(w, r, req.AccountID)
	if !ok {
		return
	}

	res := h.campaigns.RunAll(r.Context(), tenant)
	targets := 0
	for _, o := range res.Outcomes {
		targets += o.Staged
	}
	failed := len(res.Failures())
	msg := fmt.Sprintf("%d campaigns processed, %d targets staged", len(res.Outcomes), targets)
	if failed > 0 {
		msg = fmt.Sprintf("%s, %d failed", msg, failed)
	}

	// A failing campaign does not fail its siblings, so the run as a whole
	// still answers 200 and reports per-campaign status.
	httputil.OK(w, triggerResponse{
		Success:   true,
		Message:   msg,
		AccountID: tenant.AccountID,
		TaxID:     tenant.TaxID,
		RunID:     res.RunID,
		Targets:   targets,
		Outcomes:  res.Outcomes,
	})
}

func (h *Handlers) triggerFleet(w http.ResponseWriter, r *http.Request) {
	if h.fleet == nil {
		httputil.BadRequest(w, "accountId is required")
		return
	}
	summary, err := h.fleet.RunNow(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.OK(w, fleetResponse{
		Success: true,
		Message: fmt.Sprintf("%d tenants processed, %d with failures", summary.Tenants, summary.Failed),
		Summary: summary,
	})
}

func (h *Handlers) resolve(w http.ResponseWriter, r *http.Request, accountID string) (domain.TenantConfig, bool) {
	if strings.TrimSpace(accountID) == "" {
		httputil.BadRequest(w, "accountId is required")
		return domain.TenantConfig{}, false
	}
	tenant, err := h.tenants.Resolve(r.Context(), accountID)
	if err != nil {
		respondError(w, err)
		return domain.TenantConfig{}, false
	}
	return tenant, true
}

func outcomeError(out domain.Outcome) error {
	if out.Err != nil {
		return out.Err
	}
	return errors.New(out.Error)
}

func outcomeMessage(out domain.Outcome) string {
	if out.Status == domain.OutcomeSkipped {
		return fmt.Sprintf("%s campaign skipped: %s", out.CampaignType, out.Reason)
	}
	if out.Reason != "" {
		return fmt.Sprintf("%s campaign completed: %s", out.CampaignType, out.Reason)
	}
	return fmt.Sprintf("%s campaign completed: %d targets staged", out.CampaignType, out.Staged)
}

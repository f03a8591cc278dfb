package eligibility

import (
	"context"
	"errors"
	"fmt"

	"github.com/ignite/campaign-targeting/internal/domain"
	"github.com/ignite/campaign-targeting/internal/pkg/logger"
	"github.com/ignite/campaign-targeting/internal/snowflake"
)

// Querier is the slice of the warehouse client the rules need.
type Querier interface {
	Query(ctx context.Context, query string, args ...any) ([]snowflake.Row, error)
}

// QueryBuilder renders a rule's SQL and bind arguments.
type QueryBuilder func(t Tables, w Window, s domain.CampaignSettings) (string, []any, error)

// RowMapper converts one warehouse row into a target. Phone is left raw;
// normalization happens afterwards.
type RowMapper func(row snowflake.Row) domain.Target

// Gate decides whether a campaign runs at all today. The string explains a
// closed gate.
type Gate func(w Window) (bool, string)

// Rule is one campaign's eligibility definition.
type Rule struct {
	Type  domain.CampaignType
	Gate  Gate
	Query QueryBuilder
	Map   RowMapper
}

// Result is what evaluating a rule produced.
type Result struct {
	Campaign   domain.CampaignType
	Gated      bool
	GateReason string
	Candidates int
	Targets    []domain.Target
	Dropped    []Dropped
}

var registry = []Rule{
	birthdayRule,
	welcomeRule,
	reactivationRule,
	loyaltyRule,
}

// Rules returns every rule in processing order.
func Rules() []Rule {
	out := make([]Rule, len(registry))
	copy(out, registry)
	return out
}

// Lookup returns the rule for a campaign type.
func Lookup(t domain.CampaignType) (Rule, error) {
	for _, r := range registry {
		if r.Type == t {
			return r, nil
		}
	}
	return Rule{}, fmt.Errorf("%w: %q", domain.ErrUnknownCampaign, t)
}

// Open reports whether the rule's gate allows a run in window w.
func (r Rule) Open(w Window) (bool, string) {
	if r.Gate == nil {
		return true, ""
	}
	return r.Gate(w)
}

// Evaluate runs the rule for one tenant: gate, scoped query, mapping and
// normalization. Warehouse and identifier failures come back as
// *domain.QueryError.
func (r Rule) Evaluate(ctx context.Context, q Querier, taxID string, w Window, settings domain.CampaignSettings) (*Result, error) {
	res := &Result{Campaign: r.Type}
	if ok, reason := r.Open(w); !ok {
		res.Gated = true
		res.GateReason = reason
		return res, nil
	}

	tables, err := TablesFor(taxID)
	if err != nil {
		return nil, &domain.QueryError{Campaign: r.Type, TaxID: taxID, Err: err}
	}
	query, args, err := r.Query(tables, w, settings.WithDefaults())
	if err != nil {
		return nil, err
	}

	logger.Debug("Running eligibility query", "campaign", string(r.Type), "taxId", taxID, "args", len(args))
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, &domain.QueryError{
			Campaign: r.Type,
			TaxID:    taxID,
			Timeout:  errors.Is(err, domain.ErrQueryTimeout) || errors.Is(err, context.DeadlineExceeded),
			Err:      err,
		}
	}

	res.Candidates = len(rows)
	res.Targets, res.Dropped = Normalize(r.Type, rows, r.Map)
	for _, d := range res.Dropped {
		logger.Warn("Dropping target with invalid phone",
			"campaign", string(r.Type), "taxId", taxID, "customerId", d.CustomerID, "phone", d.Phone)
	}
	return res, nil
}

package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the resolver, query builder, stager and API.
var (
	ErrConfiguration       = errors.New("configuration error")
	ErrTenantNotFound      = fmt.Errorf("%w: tenant not found", ErrConfiguration)
	ErrTenantNotConfigured = fmt.Errorf("%w: tenant has no tax id", ErrConfiguration)

	ErrQueryFailure = errors.New("warehouse query failed")
	ErrQueryTimeout = fmt.Errorf("%w: timeout", ErrQueryFailure)

	ErrInvalidTenantIdentifier = errors.New("invalid tenant identifier")
	ErrInvalidPhoneFormat      = errors.New("invalid phone format")
	ErrPartialStage            = errors.New("stage partially applied")
	ErrStageBusy               = errors.New("stage already in progress")
	ErrUnknownCampaign         = errors.New("unknown campaign type")
	ErrInvalidMessageEvent     = errors.New("message event missing required fields")
)

// QueryError wraps a warehouse failure with its tenant and campaign.
type QueryError struct {
	Campaign CampaignType
	TaxID    string
	Timeout  bool
	Err      error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s query for tenant %s: %v", e.Campaign, e.TaxID, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// Is matches ErrQueryFailure always and ErrQueryTimeout when the query
// exceeded its deadline.
func (e *QueryError) Is(target error) bool {
	if target == ErrQueryFailure {
		return true
	}
	return target == ErrQueryTimeout && e.Timeout
}

// StageError reports how far a failed stage got before stopping.
type StageError struct {
	AccountID string
	Campaign  CampaignType
	Deleted   int
	Written   int
	Err       error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s/%s: deleted %d, wrote %d: %v",
		e.AccountID, e.Campaign, e.Deleted, e.Written, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Is matches ErrPartialStage once any mutation has been applied.
func (e *StageError) Is(target error) bool {
	return target == ErrPartialStage && (e.Deleted > 0 || e.Written > 0)
}

package domain

import (
	"time"
)

// CampaignType identifies one of the four automated campaigns.
type CampaignType string

const (
	CampaignBirthday     CampaignType = "birthday"
	CampaignWelcome      CampaignType = "welcome"
	CampaignReactivation CampaignType = "reactivation"
	CampaignLoyalty      CampaignType = "loyalty"
)

// CampaignTypes lists every campaign in processing order.
var CampaignTypes = []CampaignType{
	CampaignBirthday,
	CampaignWelcome,
	CampaignReactivation,
	CampaignLoyalty,
}

// Valid reports whether t is one of the known campaign types.
func (t CampaignType) Valid() bool {
	switch t {
	case CampaignBirthday, CampaignWelcome, CampaignReactivation, CampaignLoyalty:
		return true
	}
	return false
}

// ParseCampaignType converts a path or payload value into a CampaignType.
func ParseCampaignType(s string) (CampaignType, error) {
	t := CampaignType(s)
	if !t.Valid() {
		return "", ErrUnknownCampaign
	}
	return t, nil
}

// DeliveryStatus enumerates the states of a staged target. Only pending is
// written here; the rest belong to the messaging pipeline.
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliverySent      DeliveryStatus = "sent"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
)

// Target is one customer's eligibility for one campaign at one point in time.
type Target struct {
	CustomerID   string         `json:"customerId" dynamodbav:"customerId"`
	Name         string         `json:"name" dynamodbav:"name"`
	Phone        string         `json:"phone" dynamodbav:"phone"`
	CampaignType CampaignType   `json:"campaignType" dynamodbav:"campaignType"`
	Data         map[string]any `json:"data" dynamodbav:"data"`
	Message      string         `json:"message,omitempty" dynamodbav:"message,omitempty"`
	Coupon       string         `json:"coupon,omitempty" dynamodbav:"coupon,omitempty"`
}

// StagedTarget is a Target as persisted for the messaging pipeline.
type StagedTarget struct {
	Target
	AccountID string         `json:"accountId" dynamodbav:"accountId"`
	RunID     string         `json:"runId" dynamodbav:"runId"`
	Status    DeliveryStatus `json:"status" dynamodbav:"status"`
	Attempts  int            `json:"attempts" dynamodbav:"attempts"`
	CreatedAt time.Time      `json:"createdAt" dynamodbav:"createdAt"`
}

// CampaignSettings holds the per-account configuration of one campaign.
// Zero values fall back to the defaults below.
type CampaignSettings struct {
	Type               CampaignType `json:"type" dynamodbav:"type"`
	Enabled            bool         `json:"enabled" dynamodbav:"enabled"`
	Message            string       `json:"message" dynamodbav:"message"`
	Coupon             string       `json:"coupon,omitempty" dynamodbav:"coupon,omitempty"`
	InactiveDays       int          `json:"inactiveDays,omitempty" dynamodbav:"inactiveDays,omitempty"`
	CouponValidityDays int          `json:"couponValidityDays,omitempty" dynamodbav:"couponValidityDays,omitempty"`
	MinimumPurchases   int          `json:"minimumPurchases,omitempty" dynamodbav:"minimumPurchases,omitempty"`
	ProgramStart       string       `json:"programStart,omitempty" dynamodbav:"programStart,omitempty"`
	CooldownDays       int          `json:"cooldownDays,omitempty" dynamodbav:"cooldownDays,omitempty"`
}

const (
	DefaultInactiveDays     = 90
	DefaultMinimumPurchases = 5
	DefaultCooldownDays     = 30
	DefaultProgramStart     = "2024-01-01"
)

// DefaultCampaignSettings is used when an account has no settings document
// for a campaign.
func DefaultCampaignSettings(t CampaignType) CampaignSettings {
	return CampaignSettings{Type: t, Enabled: true}.WithDefaults()
}

// WithDefaults fills unset rule parameters.
func (s CampaignSettings) WithDefaults() CampaignSettings {
	if s.InactiveDays <= 0 {
		s.InactiveDays = DefaultInactiveDays
	}
	if s.MinimumPurchases <= 0 {
		s.MinimumPurchases = DefaultMinimumPurchases
	}
	if s.CooldownDays <= 0 {
		s.CooldownDays = DefaultCooldownDays
	}
	if s.ProgramStart == "" {
		s.ProgramStart = DefaultProgramStart
	}
	return s
}

// OutcomeStatus is the result of one campaign processor run.
type OutcomeStatus string

const (
	OutcomeCompleted OutcomeStatus = "completed"
	OutcomeSkipped   OutcomeStatus = "skipped"
	OutcomeFailed    OutcomeStatus = "failed"
)

// Outcome reports what one campaign processor did for one tenant.
type Outcome struct {
	CampaignType CampaignType  `json:"campaignType"`
	RunID        string        `json:"runId,omitempty"`
	Status       OutcomeStatus `json:"status"`
	Candidates   int           `json:"candidates"`
	Staged       int           `json:"staged"`
	Dropped      int           `json:"dropped"`
	Reason       string        `json:"reason,omitempty"`
	Error        string        `json:"error,omitempty"`
	Duration     time.Duration `json:"duration"`

	// Err keeps the typed error for classification; it is not serialized.
	Err error `json:"-"`
}

// Failed reports whether the processor ended in error.
func (o Outcome) Failed() bool { return o.Status == OutcomeFailed }

// TenantResult aggregates the four outcomes of one tenant run.
type TenantResult struct {
	RunID      string    `json:"runId"`
	AccountID  string    `json:"accountId"`
	TaxID      string    `json:"taxId"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Outcomes   []Outcome `json:"outcomes"`
}

// Failures returns the outcomes that ended in error.
func (r TenantResult) Failures() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Failed() {
			out = append(out, o)
		}
	}
	return out
}

// Outcome returns the outcome of the given campaign, if it ran.
func (r TenantResult) Outcome(t CampaignType) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.CampaignType == t {
			return o, true
		}
	}
	return Outcome{}, false
}

package history

import (
	"context"
	"fmt"
	"time"

	"github.com/ignite/campaign-targeting/internal/domain"
	"github.com/ignite/campaign-targeting/internal/eligibility"
	"github.com/ignite/campaign-targeting/internal/pkg/logger"
)

// Execer runs a warehouse statement.
type Execer interface {
	Exec(ctx context.Context, query string, args ...any) error
}

// TenantResolver maps an account to its tenant config.
type TenantResolver interface {
	Resolve(ctx context.Context, accountID string) (domain.TenantConfig, error)
}

// Recorder appends message events to the tenant's MESSAGE_HISTORY table.
type Recorder struct {
	warehouse Execer
	tenants   TenantResolver
	now       func() time.Time
}

// NewRecorder creates a recorder.
func NewRecorder(warehouse Execer, tenants TenantResolver) *Recorder {
	return &Recorder{warehouse: warehouse, tenants: tenants, now: time.Now}
}

const insertHistory = `INSERT INTO %s
  (USER_ID, CAMPAIGN_TYPE, SENT_AT, STATUS, PREVIOUS_STATUS, MESSAGE_CONTENT, PHONE, MESSAGE_ID, SOURCE, RECORDED_AT)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Record appends evt. Status updates that do not change the status are
// ignored and reported as not recorded.
func (r *Recorder) Record(ctx context.Context, evt domain.MessageEvent) (bool, error) {
	if err := evt.Validate(); err != nil {
		return false, err
	}
	if evt.Source == "" {
		evt.Source = domain.SourceMessageCreated
	}
	if !evt.StatusChanged() {
		logger.Debug("Ignoring status update without change", "accountId", evt.AccountID, "messageId", evt.MessageID)
		return false, nil
	}

	tenant, err := r.tenants.Resolve(ctx, evt.AccountID)
	if err != nil {
		return false, err
	}
	tables, err := eligibility.TablesFor(tenant.TaxID)
	if err != nil {
		return false, err
	}

	err = r.warehouse.Exec(ctx, fmt.Sprintf(insertHistory, tables.MessageHistory),
		evt.UserID,
		string(evt.CampaignType),
		evt.SentAt.UTC(),
		evt.Status,
		nullable(evt.PreviousStatus),
		evt.Content,
		evt.Phone,
		nullable(evt.MessageID),
		string(evt.Source),
		r.now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("recording message history for %s: %w", evt.AccountID, err)
	}

	logger.Info("Message history recorded", "accountId", evt.AccountID, "campaign", string(evt.CampaignType),
		"messageId", evt.MessageID, "status", evt.Status, "source", string(evt.Source))
	return true, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

package domain

import "time"

// MessageEventSource tells how a history row was produced.
type MessageEventSource string

const (
	SourceMessageCreated MessageEventSource = "message-created"
	SourceStatusUpdate   MessageEventSource = "status-update"
)

// MessageEvent is one send or status-change fact emitted by the messaging
// pipeline. It becomes an append-only row in the tenant's message history.
type MessageEvent struct {
	AccountID      string             `json:"accountId"`
	CampaignType   CampaignType       `json:"campaignType"`
	MessageID      string             `json:"messageId"`
	UserID         string             `json:"userId"`
	SentAt         time.Time          `json:"sentAt"`
	Status         string             `json:"status"`
	PreviousStatus string             `json:"previousStatus,omitempty"`
	Content        string             `json:"content,omitempty"`
	Phone          string             `json:"phone,omitempty"`
	Source         MessageEventSource `json:"source,omitempty"`
}

// Validate checks the fields required to record the event.
func (e MessageEvent) Validate() error {
	if e.AccountID == "" || e.UserID == "" || e.Status == "" || e.SentAt.IsZero() {
		return ErrInvalidMessageEvent
	}
	if !e.CampaignType.Valid() {
		return ErrUnknownCampaign
	}
	return nil
}

// StatusChanged reports whether a status-update event carries a real change.
func (e MessageEvent) StatusChanged() bool {
	return e.Source != SourceStatusUpdate || e.PreviousStatus != e.Status
}

// StagedNotification is published after a campaign's targets are replaced.
type StagedNotification struct {
	AccountID    string       `json:"accountId"`
	CampaignType CampaignType `json:"campaignType"`
	RunID        string       `json:"runId"`
	Count        int          `json:"count"`
	StagedAt     time.Time    `json:"stagedAt"`
}

package domain

import "time"

// ProvisioningStatus is owned by the external provisioning system.
type ProvisioningStatus string

const (
	ProvisioningPending     ProvisioningStatus = "pending"
	ProvisioningInProgress  ProvisioningStatus = "provisioning"
	ProvisioningProvisioned ProvisioningStatus = "provisioned"
	ProvisioningError       ProvisioningStatus = "error"
)

// TenantConfig maps an account to the tax id that scopes its warehouse data.
type TenantConfig struct {
	AccountID string             `json:"accountId" dynamodbav:"accountId"`
	TaxID     string             `json:"taxId" dynamodbav:"taxId"`
	Status    ProvisioningStatus `json:"status" dynamodbav:"status"`
	CreatedAt time.Time          `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt" dynamodbav:"updatedAt"`
}

// Provisioned reports whether the tenant takes part in scheduled runs.
func (c TenantConfig) Provisioned() bool {
	return c.Status == ProvisioningProvisioned && c.TaxID != ""
}

// Package eligibility decides which customers are due a campaign message.
//
// Each campaign is a Rule: a gate on the local calendar, a parameterized
// warehouse query over the tenant's scoped tables, and a row mapper. Rules
// are looked up through a registry instead of per-campaign types. All
// calendar arithmetic happens in the tenants' fixed UTC-3 zone so that
// eligibility never depends on where the process runs.
package eligibility

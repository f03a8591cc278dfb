// Package tenant resolves accounts to the warehouse identity their data
// lives under.
//
// Tenant configuration is provisioned by another system; this package only
// reads it and refuses accounts that cannot be queried yet.
package tenant

// Package history records message events into each tenant's warehouse
// message history, which the eligibility rules read back for their
// exclusion windows.
//
// Events arrive from the messaging pipeline through an SQS queue (Consumer)
// or an HTTP hook (Handler). Staged-target notifications flow the other way
// through Publisher.
package history

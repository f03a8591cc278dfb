// Package campaign runs the targeting campaigns for a tenant.
//
// A processor evaluates one campaign's eligibility rule, renders the
// campaign message, and stages the result for the messaging pipeline inside
// a per-account critical section. RunAll runs the four processors
// concurrently and reports each outcome on its own; one campaign failing
// never affects the others.
//
// Collaborators are interfaces defined here. The DynamoDB store, the
// Snowflake client, the lock factory and the SQS/S3 adapters satisfy them.
package campaign

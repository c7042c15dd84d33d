// Package contracts defines the shared types of the polling protocol.
//
// The bridge hands requests to the remote client as PendingClaim values and
// receives ResponseSubmission values back. Error kinds surfaced to submitters
// are limited to timeout, connection-closed, and remote execution errors;
// transport-level failures never reach the submitting caller directly.
package contracts

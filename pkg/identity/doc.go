// Package identity maps federated login assertions onto local accounts.
//
// The reconciler looks accounts up by email first and provider subject id
// second, creates missing accounts with the configured default role, and
// corrects drift (provider-side email changes, unlinked provider ids,
// dormant accounts) on the ones it finds. It never returns an inactive
// account.
package identity

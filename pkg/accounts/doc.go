// Package accounts holds the account and role model, its SQL persistence,
// and the service layer enforcing account lifecycle rules: email uniqueness,
// password management policy for SSO-linked accounts, and the guards around
// the privileged Admin role.
package accounts

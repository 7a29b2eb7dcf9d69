// Package api wires the HTTP surface: authentication, user and role
// administration, currency management, and the audit trail.
package api

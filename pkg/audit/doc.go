// Package audit records security-relevant events: logins, federated
// reconciliations, permission denials, and admin mutations.
//
// Recording is best effort. A failed audit write is logged and dropped;
// it never fails the request that triggered it.
package audit

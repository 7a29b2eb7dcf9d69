// Package middleware provides the bearer-token authentication layer.
//
// Authorization gates (permissions, roles, currency access) live next to
// the subsystems that own them; this package only establishes who the
// caller is and loads their account into the request context.
package middleware

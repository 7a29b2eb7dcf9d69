// Package auth provides credential primitives: bcrypt password hashing
// behind a capability interface, and HS256 access tokens carrying the
// authenticated account ID as their subject.
package auth

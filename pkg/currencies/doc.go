// Package currencies manages the currency catalog, per-account currency
// assignments, and the per-request currency context.
//
// Every account resolves to exactly one currency per request, in order of
// precedence: explicit query parameter, the account's default assignment,
// the account's stored currency code, then the system default.
package currencies

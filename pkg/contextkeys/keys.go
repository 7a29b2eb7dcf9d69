// Package contextkeys provides centralized context key definitions.
//
// All context keys used across the application are defined here. This
// prevents typos, documents dependencies, and makes key usage discoverable.
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// AccountKey contains the authenticated *accounts.Account
	// Set by: middleware.AuthMiddleware (pkg/middleware/auth.go)
	// Required by: all protected API endpoints, RBAC middleware
	AccountKey Key = "account"

	// RequestIDKey contains request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	// Used by: logger, audit trail
	RequestIDKey Key = "request_id"

	// UserIDKey contains the authenticated account ID string
	// Set by: middleware.AuthMiddleware
	// Used by: logger, audit trail
	UserIDKey Key = "user_id"

	// CurrencyKey contains the resolved currency code for the request
	// Set by: api currency context middleware
	// Used by: handlers rendering money amounts
	CurrencyKey Key = "currency"
)

// WithAccount adds the authenticated account to the context
func WithAccount(ctx context.Context, account interface{}) context.Context {
	return context.WithValue(ctx, AccountKey, account)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithUserID adds the authenticated account ID to the context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// WithCurrency adds the resolved currency code to the context
func WithCurrency(ctx context.Context, code string) context.Context {
	return context.WithValue(ctx, CurrencyKey, code)
}

// RequestID extracts the request ID from the context, or "" if unset
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// UserID extracts the authenticated account ID from the context, or "" if unset
func UserID(ctx context.Context) string {
	if id, ok := ctx.Value(UserIDKey).(string); ok {
		return id
	}
	return ""
}

// Currency extracts the resolved currency code from the context, or "" if unset
func Currency(ctx context.Context) string {
	if code, ok := ctx.Value(CurrencyKey).(string); ok {
		return code
	}
	return ""
}

package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/meridianhq/meridian/pkg/accounts"
	"github.com/meridianhq/meridian/pkg/auth"
	"github.com/meridianhq/meridian/pkg/contextkeys"
	"github.com/meridianhq/meridian/pkg/httputil"
	"github.com/meridianhq/meridian/pkg/observability"
)

// AccountLoader resolves an authenticated subject id to an account
type AccountLoader interface {
	GetByID(ctx context.Context, id int64) (*accounts.Account, error)
}

// AuthMiddleware validates bearer tokens and loads the caller's account.
// When optional is true, requests without an Authorization header pass
// through anonymously; malformed or invalid tokens are still rejected.
type AuthMiddleware struct {
	tokens   *auth.TokenManager
	loader   AccountLoader
	metrics  *observability.Metrics
	optional bool
}

// NewAuthMiddleware creates an authentication middleware. metrics may be
// nil.
func NewAuthMiddleware(tokens *auth.TokenManager, loader AccountLoader, metrics *observability.Metrics, optional bool) *AuthMiddleware {
	return &AuthMiddleware{
		tokens:   tokens,
		loader:   loader,
		metrics:  metrics,
		optional: optional,
	}
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteUnauthorized(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			httputil.WriteUnauthorized(w, "invalid authorization header format")
			return
		}

		accountID, err := m.tokens.Validate(parts[1])
		if err != nil {
			m.observe(false)
			httputil.WriteUnauthorized(w, "invalid or expired token")
			return
		}

		account, err := m.loader.GetByID(r.Context(), accountID)
		if err != nil {
			m.observe(false)
			httputil.WriteUnauthorized(w, "account not found")
			return
		}
		if !account.Active {
			m.observe(false)
			httputil.WriteForbidden(w, "account is inactive")
			return
		}
		m.observe(true)

		ctx := contextkeys.WithAccount(r.Context(), account)
		ctx = contextkeys.WithUserID(ctx, strconv.FormatInt(account.ID, 10))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) observe(valid bool) {
	if m.metrics != nil {
		m.metrics.ObserveTokenValidation(valid)
	}
}

// AccountFromContext returns the authenticated account, or nil
func AccountFromContext(ctx context.Context) *accounts.Account {
	account, _ := ctx.Value(contextkeys.AccountKey).(*accounts.Account)
	return account
}

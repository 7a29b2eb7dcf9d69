package currencies

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/meridianhq/meridian/pkg/accounts"
	"github.com/meridianhq/meridian/pkg/contextkeys"
	"github.com/meridianhq/meridian/pkg/httputil"
	"github.com/meridianhq/meridian/pkg/observability"
)

// Resolver determines the currency context for a request
type Resolver struct {
	store         *Store
	systemDefault string
	logger        *observability.Logger
}

// NewResolver creates a currency context resolver
func NewResolver(store *Store, systemDefault string, logger *observability.Logger) *Resolver {
	return &Resolver{store: store, systemDefault: systemDefault, logger: logger}
}

// Resolve picks the currency for a request. Precedence: explicit query
// parameter, the account's default assignment, the account's stored code,
// then the system default. account may be nil for anonymous requests.
func (cr *Resolver) Resolve(ctx context.Context, r *http.Request, account *accounts.Account) string {
	if code := r.URL.Query().Get("currency"); code != "" {
		return code
	}

	if account != nil {
		assignment, err := cr.store.GetDefaultForAccount(ctx, account.ID)
		if err != nil {
			cr.logger.WithError(err).Warn("could not load default currency assignment")
		} else if assignment != nil {
			return assignment.CurrencyCode
		}
		if account.CurrencyCode != "" {
			return account.CurrencyCode
		}
	}

	return cr.systemDefault
}

// Middleware stores the resolved currency in the request context
func (cr *Resolver) Middleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			account, _ := r.Context().Value(contextkeys.AccountKey).(*accounts.Account)
			code := cr.Resolve(r.Context(), r, account)
			next.ServeHTTP(w, r.WithContext(contextkeys.WithCurrency(r.Context(), code)))
		})
	}
}

// RequireAccess rejects requests whose account holds no assignment for
// the resolved currency context.
func (cr *Resolver) RequireAccess() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			account, _ := r.Context().Value(contextkeys.AccountKey).(*accounts.Account)
			if account == nil {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}

			code := contextkeys.Currency(r.Context())
			if code == "" {
				code = cr.Resolve(r.Context(), r, account)
			}

			ok, err := cr.store.HasAccess(r.Context(), account.ID, code)
			if err != nil {
				httputil.WriteInternalError(w, err)
				return
			}
			if !ok {
				httputil.WriteForbidden(w, "no access to currency context: "+code)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

package currencies

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianhq/meridian/pkg/accounts"
	"github.com/meridianhq/meridian/pkg/contextkeys"
	"github.com/meridianhq/meridian/pkg/observability"
)

func setupResolver(t *testing.T) (*Resolver, *Store) {
	t.Helper()
	store := NewStore(setupTestDB(t))
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	return NewResolver(store, "SGD", logger), store
}

func TestResolvePrecedence(t *testing.T) {
	resolver, store := setupResolver(t)
	ctx := context.Background()
	seedCatalog(t, store, "USD", "EUR")

	account := &accounts.Account{ID: 1, CurrencyCode: "EUR"}

	// Query parameter wins
	r := httptest.NewRequest(http.MethodGet, "/orders?currency=USD", nil)
	assert.Equal(t, "USD", resolver.Resolve(ctx, r, account))

	// No parameter, no default assignment: stored account code
	r = httptest.NewRequest(http.MethodGet, "/orders", nil)
	assert.Equal(t, "EUR", resolver.Resolve(ctx, r, account))

	// Default assignment beats the stored code
	_, err := store.Assign(ctx, 1, "USD")
	require.NoError(t, err)
	require.NoError(t, store.SetDefault(ctx, 1, "USD"))
	assert.Equal(t, "USD", resolver.Resolve(ctx, r, account))

	// Anonymous requests fall back to the system default
	assert.Equal(t, "SGD", resolver.Resolve(ctx, r, nil))
}

func TestMiddlewareSetsCurrencyContext(t *testing.T) {
	resolver, _ := setupResolver(t)

	var seen string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = contextkeys.Currency(r.Context())
	})

	r := httptest.NewRequest(http.MethodGet, "/orders?currency=MYR", nil)
	resolver.Middleware()(handler).ServeHTTP(httptest.NewRecorder(), r)

	assert.Equal(t, "MYR", seen)
}

func TestRequireAccess(t *testing.T) {
	resolver, store := setupResolver(t)
	ctx := context.Background()
	seedCatalog(t, store, "USD")

	_, err := store.Assign(ctx, 1, "USD")
	require.NoError(t, err)

	account := &accounts.Account{ID: 1, Active: true, CurrencyCode: "USD"}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Assigned currency passes
	r := httptest.NewRequest(http.MethodGet, "/orders?currency=USD", nil)
	r = r.WithContext(contextkeys.WithAccount(r.Context(), account))
	rec := httptest.NewRecorder()
	resolver.RequireAccess()(handler).ServeHTTP(rec, r)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Unassigned currency is forbidden
	r = httptest.NewRequest(http.MethodGet, "/orders?currency=JPY", nil)
	r = r.WithContext(contextkeys.WithAccount(r.Context(), account))
	rec = httptest.NewRecorder()
	resolver.RequireAccess()(handler).ServeHTTP(rec, r)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Anonymous is unauthorized
	r = httptest.NewRequest(http.MethodGet, "/orders", nil)
	rec = httptest.NewRecorder()
	resolver.RequireAccess()(handler).ServeHTTP(rec, r)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

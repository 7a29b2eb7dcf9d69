package rbac

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/meridianhq/meridian/pkg/accounts"
	"github.com/meridianhq/meridian/pkg/contextkeys"
	"github.com/meridianhq/meridian/pkg/httputil"
	"github.com/meridianhq/meridian/pkg/observability"
)

// Checker is the decision interface the gates consult
type Checker interface {
	Grants(ctx context.Context, roleName, permission string) bool
}

// Local adapts a plain Resolver to Checker for deployments without a
// decision cache.
type Local struct {
	Resolver *Resolver
}

// Grants implements Checker
func (l Local) Grants(_ context.Context, roleName, permission string) bool {
	return l.Resolver.Grants(roleName, permission)
}

// Gate builds authorization middleware over a Checker. Metrics and OnDeny
// are optional; OnDeny fires on every denial so the caller can audit it.
type Gate struct {
	Checker Checker
	Metrics *observability.Metrics
	OnDeny  func(ctx context.Context, account *accounts.Account, permission string)
}

func accountFromContext(ctx context.Context) *accounts.Account {
	account, _ := ctx.Value(contextkeys.AccountKey).(*accounts.Account)
	return account
}

func (g *Gate) deny(w http.ResponseWriter, r *http.Request, account *accounts.Account, permission, message string) {
	if g.Metrics != nil {
		g.Metrics.ObservePermissionCheck(false)
	}
	if g.OnDeny != nil {
		g.OnDeny(r.Context(), account, permission)
	}
	httputil.WriteForbidden(w, message)
}

// RequirePermission gates a route on a concrete "resource.action"
// permission. The authenticated account must already be in the request
// context.
func (g *Gate) RequirePermission(permission string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			account := accountFromContext(r.Context())
			if account == nil {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}
			if !account.Active {
				g.deny(w, r, account, permission, "account is inactive")
				return
			}
			if account.Role == nil {
				g.deny(w, r, account, permission, "no role assigned")
				return
			}
			if !g.Checker.Grants(r.Context(), account.Role.Name, permission) {
				g.deny(w, r, account, permission, "missing required permission: "+permission)
				return
			}
			if g.Metrics != nil {
				g.Metrics.ObservePermissionCheck(true)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole gates a route on role names rather than permissions. Names
// match case-insensitively; when "Admin" is among the required roles, the
// lenient IsAdminRoleNameFuzzy check also admits administrator-variant
// names. This gate is deliberately coarser than RequirePermission.
func (g *Gate) RequireRole(roles ...string) mux.MiddlewareFunc {
	wantAdmin := false
	for _, role := range roles {
		if strings.EqualFold(role, AdminRoleName) {
			wantAdmin = true
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			account := accountFromContext(r.Context())
			if account == nil {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}
			if account.Role == nil {
				httputil.WriteForbidden(w, "insufficient permissions")
				return
			}

			name := account.Role.Name
			for _, role := range roles {
				if strings.EqualFold(role, name) {
					next.ServeHTTP(w, r)
					return
				}
			}
			if wantAdmin && IsAdminRoleNameFuzzy(name) {
				next.ServeHTTP(w, r)
				return
			}

			httputil.WriteForbidden(w, "insufficient permissions")
		})
	}
}

// RequireAdmin gates a route on the Admin role or a recognized variant
func (g *Gate) RequireAdmin() mux.MiddlewareFunc {
	return g.RequireRole(AdminRoleName)
}

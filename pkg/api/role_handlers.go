package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/meridianhq/meridian/pkg/accounts"
	"github.com/meridianhq/meridian/pkg/audit"
	"github.com/meridianhq/meridian/pkg/httputil"
	"github.com/meridianhq/meridian/pkg/rbac"
)

func (s *Server) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := s.deps.Accounts.Store().ListRoles(r.Context())
	if err != nil {
		httputil.WriteAPIError(w, err)
		return
	}
	httputil.WriteSuccess(w, roles)
}

type roleRequest struct {
	Name string `json:"name"`
}

func (s *Server) createRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	role, err := s.deps.Accounts.CreateRole(r.Context(), req.Name)
	if err != nil {
		httputil.WriteAPIError(w, err)
		return
	}

	s.recordAdmin(r, audit.ActionRoleCreated, role.Name)
	httputil.WriteCreated(w, role)
}

func (s *Server) renameRole(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req roleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	role, err := s.deps.Accounts.RenameRole(r.Context(), id, req.Name)
	if err != nil {
		httputil.WriteAPIError(w, err)
		return
	}

	s.recordAdmin(r, audit.ActionRoleUpdated, role.Name)
	httputil.WriteSuccess(w, role)
}

func (s *Server) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := s.deps.Accounts.DeleteRole(r.Context(), id); err != nil {
		httputil.WriteAPIError(w, err)
		return
	}

	s.recordAdmin(r, audit.ActionRoleDeleted, "")
	httputil.WriteNoContent(w)
}

type rolePermissionsResponse struct {
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

// rolePermissions lists the expanded permission set for a role name. The
// canonical Admin role reports the full universe to match what Grants
// actually allows it.
func (s *Server) rolePermissions(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	var permissions []string
	if rbac.IsExactlyAdmin(name) {
		permissions = s.deps.Resolver.Universe().Slice()
	} else {
		permissions = s.deps.Resolver.EffectivePermissions(name).Slice()
	}

	httputil.WriteSuccess(w, rolePermissionsResponse{Role: name, Permissions: permissions})
}

// auditDenial records permission denials on the audit trail
func (s *Server) auditDenial(ctx context.Context, account *accounts.Account, permission string) {
	var accountID *int64
	if account != nil {
		accountID = &account.ID
	}
	s.deps.Recorder.Record(ctx, accountID, audit.ActionPermissionDenied, audit.OutcomeDenied, permission)
}

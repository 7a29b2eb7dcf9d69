package api

import (
	"net/http"

	"github.com/meridianhq/meridian/pkg/accounts"
	"github.com/meridianhq/meridian/pkg/audit"
	"github.com/meridianhq/meridian/pkg/httputil"
	"github.com/meridianhq/meridian/pkg/middleware"
)

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	limit := httputil.QueryInt(r, "limit", 50)
	offset := httputil.QueryInt(r, "offset", 0)

	users, err := s.deps.Accounts.Store().List(r.Context(), limit, offset)
	if err != nil {
		httputil.WriteAPIError(w, err)
		return
	}
	httputil.WriteSuccess(w, users)
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	account, err := s.deps.Accounts.Store().GetByID(r.Context(), id)
	if err != nil {
		httputil.WriteAPIError(w, err)
		return
	}
	httputil.WriteSuccess(w, account)
}

type createUserRequest struct {
	Email        string `json:"email"`
	Name         string `json:"name"`
	Password     string `json:"password,omitempty"`
	RoleID       *int64 `json:"role_id,omitempty"`
	Active       *bool  `json:"is_active,omitempty"`
	CurrencyCode string `json:"currency_code,omitempty"`
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	account, err := s.deps.Accounts.CreateUser(r.Context(), accounts.CreateUserInput{
		Email:        req.Email,
		Name:         req.Name,
		Password:     req.Password,
		RoleID:       req.RoleID,
		Active:       req.Active,
		CurrencyCode: req.CurrencyCode,
	})
	if err != nil {
		httputil.WriteAPIError(w, err)
		return
	}

	s.recordAdmin(r, audit.ActionAccountCreated, account.Email)
	httputil.WriteCreated(w, account)
}

type updateUserRequest struct {
	Email        *string `json:"email,omitempty"`
	Name         *string `json:"name,omitempty"`
	Active       *bool   `json:"is_active,omitempty"`
	CurrencyCode *string `json:"currency_code,omitempty"`
	Password     *string `json:"password,omitempty"`
	SetRole      bool    `json:"set_role,omitempty"`
	RoleID       *int64  `json:"role_id,omitempty"`
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req updateUserRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	// A role_id in the payload implies a role change even without set_role
	setRole := req.SetRole || req.RoleID != nil

	account, err := s.deps.Accounts.UpdateUser(r.Context(), id, accounts.UpdateUserInput{
		Email:        req.Email,
		Name:         req.Name,
		Active:       req.Active,
		CurrencyCode: req.CurrencyCode,
		Password:     req.Password,
		SetRole:      setRole,
		RoleID:       req.RoleID,
	})
	if err != nil {
		httputil.WriteAPIError(w, err)
		return
	}

	s.recordAdmin(r, audit.ActionAccountUpdated, account.Email)
	httputil.WriteSuccess(w, account)
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	requester := middleware.AccountFromContext(r.Context())
	if err := s.deps.Accounts.DeleteUser(r.Context(), requester.ID, id); err != nil {
		httputil.WriteAPIError(w, err)
		return
	}

	s.recordAdmin(r, audit.ActionAccountDeleted, "")
	httputil.WriteNoContent(w)
}

func (s *Server) recordAdmin(r *http.Request, action audit.Action, detail string) {
	requester := middleware.AccountFromContext(r.Context())
	var actorID *int64
	if requester != nil {
		actorID = &requester.ID
	}
	s.deps.Recorder.Record(r.Context(), actorID, action, audit.OutcomeSuccess, detail)
}

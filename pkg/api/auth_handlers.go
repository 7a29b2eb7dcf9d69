package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meridianhq/meridian/pkg/accounts"
	"github.com/meridianhq/meridian/pkg/audit"
	"github.com/meridianhq/meridian/pkg/httputil"
	"github.com/meridianhq/meridian/pkg/middleware"
)

// stateStore holds pending OAuth state tokens. States expire after ten
// minutes and are single use.
type stateStore struct {
	mu     sync.Mutex
	states map[string]time.Time
}

func newStateStore() *stateStore {
	return &stateStore{states: make(map[string]time.Time)}
}

func (s *stateStore) issue() string {
	state := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, expiry := range s.states {
		if time.Now().After(expiry) {
			delete(s.states, token)
		}
	}
	s.states[state] = time.Now().Add(10 * time.Minute)
	return state
}

func (s *stateStore) consume(state string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	expiry, ok := s.states[state]
	if !ok {
		return false
	}
	delete(s.states, state)
	return time.Now().Before(expiry)
}

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token   string            `json:"token"`
	Account *accounts.Account `json:"account"`
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Password == "" {
		httputil.WriteBadRequest(w, "password is required")
		return
	}

	account, err := s.deps.Accounts.CreateUser(r.Context(), accounts.CreateUserInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		httputil.WriteAPIError(w, err)
		return
	}

	s.deps.Recorder.Record(r.Context(), &account.ID, audit.ActionAccountCreated, audit.OutcomeSuccess, "self registration")
	s.issueToken(w, r, account, http.StatusCreated)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	account, err := s.deps.Accounts.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		s.observeLogin("local", "failure")
		s.deps.Recorder.Record(r.Context(), nil, audit.ActionLogin, audit.OutcomeFailure, req.Email)
		httputil.WriteAPIError(w, err)
		return
	}

	s.observeLogin("local", "success")
	s.deps.Recorder.Record(r.Context(), &account.ID, audit.ActionLogin, audit.OutcomeSuccess, "")
	s.issueToken(w, r, account, http.StatusOK)
}

func (s *Server) googleLogin(w http.ResponseWriter, r *http.Request) {
	state := s.states.issue()
	http.Redirect(w, r, s.deps.Google.AuthURL(state), http.StatusFound)
}

func (s *Server) googleCallback(w http.ResponseWriter, r *http.Request) {
	if !s.states.consume(r.URL.Query().Get("state")) {
		httputil.WriteBadRequest(w, "invalid or expired state")
		return
	}

	assertion, err := s.deps.Google.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		s.observeLogin("google", "failure")
		httputil.WriteAPIError(w, err)
		return
	}

	outcome, err := s.deps.Reconciler.Reconcile(r.Context(), assertion)
	if err != nil {
		s.observeLogin("google", "failure")
		s.deps.Recorder.Record(r.Context(), nil, audit.ActionSSOLogin, audit.OutcomeFailure, assertion.Email)
		httputil.WriteAPIError(w, err)
		return
	}

	account := outcome.Account
	detail := "existing account"
	if outcome.Created {
		detail = "account created"
	}
	s.observeLogin("google", "success")
	s.deps.Recorder.Record(r.Context(), &account.ID, audit.ActionSSOLogin, audit.OutcomeSuccess, detail)
	s.issueToken(w, r, account, http.StatusOK)
}

func (s *Server) issueToken(w http.ResponseWriter, r *http.Request, account *accounts.Account, status int) {
	token, err := s.deps.Tokens.Issue(account.ID)
	if err != nil {
		s.deps.Logger.WithError(err).Error("failed to issue token")
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteJSON(w, status, tokenResponse{Token: token, Account: account})
}

func (s *Server) currentAccount(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, middleware.AccountFromContext(r.Context()))
}

type profileRequest struct {
	Name            *string `json:"name,omitempty"`
	CurrencyCode    *string `json:"currency_code,omitempty"`
	CurrentPassword string  `json:"current_password,omitempty"`
	NewPassword     string  `json:"new_password,omitempty"`
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	account := middleware.AccountFromContext(r.Context())

	var req profileRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	updated, err := s.deps.Accounts.UpdateProfile(r.Context(), account.ID, accounts.ProfileInput{
		Name:            req.Name,
		CurrencyCode:    req.CurrencyCode,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		httputil.WriteAPIError(w, err)
		return
	}

	s.deps.Recorder.Record(r.Context(), &account.ID, audit.ActionAccountUpdated, audit.OutcomeSuccess, "profile update")
	httputil.WriteSuccess(w, updated)
}

func (s *Server) observeLogin(method, outcome string) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.ObserveLogin(method, outcome)
	}
}

package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/meridianhq/meridian/pkg/contextkeys"
	"github.com/meridianhq/meridian/pkg/currencies"
	"github.com/meridianhq/meridian/pkg/httputil"
	"github.com/meridianhq/meridian/pkg/middleware"
)

type currencyListResponse struct {
	Currencies []currencies.Currency `json:"currencies"`
	Context    string                `json:"currency_context"`
}

func (s *Server) listCurrencies(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Currencies.List(r.Context(), !httputil.QueryBool(r, "include_inactive"))
	if err != nil {
		httputil.WriteAPIError(w, err)
		return
	}
	httputil.WriteSuccess(w, currencyListResponse{
		Currencies: list,
		Context:    contextkeys.Currency(r.Context()),
	})
}

type currencyRequest struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
	Active *bool  `json:"is_active,omitempty"`
}

func (s *Server) createCurrency(w http.ResponseWriter, r *http.Request) {
	var req currencyRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if len(req.Code) != 3 {
		httputil.WriteBadRequest(w, "currency code must be 3 letters")
		return
	}
	if req.Name == "" || req.Symbol == "" {
		httputil.WriteBadRequest(w, "name and symbol are required")
		return
	}

	currency := &currencies.Currency{Code: req.Code, Name: req.Name, Symbol: req.Symbol, Active: true}
	if req.Active != nil {
		currency.Active = *req.Active
	}
	if err := s.deps.Currencies.Create(r.Context(), currency); err != nil {
		httputil.WriteAPIError(w, err)
		return
	}
	httputil.WriteCreated(w, currency)
}

func (s *Server) updateCurrency(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	current, err := s.deps.Currencies.Get(r.Context(), code)
	if err != nil {
		httputil.WriteAPIError(w, err)
		return
	}

	var req currencyRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if req.Name != "" {
		current.Name = req.Name
	}
	if req.Symbol != "" {
		current.Symbol = req.Symbol
	}
	if req.Active != nil {
		current.Active = *req.Active
	}

	if err := s.deps.Currencies.Update(r.Context(), current); err != nil {
		httputil.WriteAPIError(w, err)
		return
	}
	httputil.WriteSuccess(w, current)
}

func (s *Server) deleteCurrency(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Currencies.Delete(r.Context(), mux.Vars(r)["code"]); err != nil {
		httputil.WriteAPIError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) listMyCurrencies(w http.ResponseWriter, r *http.Request) {
	account := middleware.AccountFromContext(r.Context())

	assignments, err := s.deps.Currencies.ListForAccount(r.Context(), account.ID)
	if err != nil {
		httputil.WriteAPIError(w, err)
		return
	}
	httputil.WriteSuccess(w, assignments)
}

func (s *Server) setDefaultCurrency(w http.ResponseWriter, r *http.Request) {
	account := middleware.AccountFromContext(r.Context())
	code := mux.Vars(r)["code"]

	if err := s.deps.Currencies.SetDefault(r.Context(), account.ID, code); err != nil {
		httputil.WriteAPIError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]string{"default_currency": code})
}

type assignCurrencyRequest struct {
	Code string `json:"code"`
}

func (s *Server) assignCurrency(w http.ResponseWriter, r *http.Request) {
	accountID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req assignCurrencyRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	assignment, err := s.deps.Currencies.Assign(r.Context(), accountID, req.Code)
	if err != nil {
		httputil.WriteAPIError(w, err)
		return
	}
	httputil.WriteCreated(w, assignment)
}

func (s *Server) unassignCurrency(w http.ResponseWriter, r *http.Request) {
	accountID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := s.deps.Currencies.Unassign(r.Context(), accountID, mux.Vars(r)["code"]); err != nil {
		httputil.WriteAPIError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

package api

import (
	"net/http"

	"github.com/meridianhq/meridian/pkg/audit"
	"github.com/meridianhq/meridian/pkg/httputil"
)

func (s *Server) listAuditEvents(w http.ResponseWriter, r *http.Request) {
	query := audit.Query{
		Action: audit.Action(r.URL.Query().Get("action")),
		Limit:  httputil.QueryInt(r, "limit", 100),
		Offset: httputil.QueryInt(r, "offset", 0),
	}
	if r.URL.Query().Get("account_id") != "" {
		id := int64(httputil.QueryInt(r, "account_id", 0))
		query.AccountID = &id
	}

	events, err := s.deps.AuditStore.List(r.Context(), query)
	if err != nil {
		httputil.WriteAPIError(w, err)
		return
	}
	httputil.WriteSuccess(w, events)
}

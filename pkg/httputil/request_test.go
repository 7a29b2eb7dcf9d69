package httputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"email":"a@x.com"}`))

	var dest struct {
		Email string `json:"email"`
	}
	require.NoError(t, ParseJSON(req, &dest))
	assert.Equal(t, "a@x.com", dest.Email)
}

func TestParseJSONInvalid(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{broken`))

	var dest map[string]interface{}
	assert.Error(t, ParseJSON(req, &dest))
}

func TestParsePathInt64(t *testing.T) {
	router := mux.NewRouter()
	var got int64
	var gotErr error
	router.HandleFunc("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		got, gotErr = ParsePathInt64(r, "id")
	})

	req := httptest.NewRequest("GET", "/users/42", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	require.NoError(t, gotErr)
	assert.Equal(t, int64(42), got)
}

func TestParsePathInt64Invalid(t *testing.T) {
	router := mux.NewRouter()
	var gotErr error
	router.HandleFunc("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		_, gotErr = ParsePathInt64(r, "id")
	})

	req := httptest.NewRequest("GET", "/users/abc", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	assert.Error(t, gotErr)
}

func TestQueryInt(t *testing.T) {
	req := httptest.NewRequest("GET", "/?limit=25", nil)
	assert.Equal(t, 25, QueryInt(req, "limit", 10))
	assert.Equal(t, 10, QueryInt(req, "offset", 10))
}

func TestRequestIDMiddleware(t *testing.T) {
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	// Upstream-provided IDs are preserved.
	rec = httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(RequestIDHeader, "upstream-id")
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "upstream-id", rec.Header().Get(RequestIDHeader))
}
